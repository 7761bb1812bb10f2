package inquiry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_SendsBodyAndHeaders(t *testing.T) {
	b := &mockBackend{createResp: map[string]any{"code": 0, "data": 42, "msg": "ok"}}
	srv := b.server(t)

	c := newTestClient(srv, map[string]string{"Authorization": "Bearer t", "Content-Type": "application/json;charset=UTF-8"})
	resp, err := c.Create(context.Background(), BuildCreateRequest(scenarioContext(), "300476"))
	require.NoError(t, err)

	assert.Equal(t, RequestID("42"), resp.Data)
	assert.JSONEq(t, `{
		"stockCode": "300476",
		"type": 0,
		"scale": 1000000,
		"deadline": "1m",
		"structures": ["90c"],
		"vendors": ["GF", "ZJ"]
	}`, b.lastCreateBody())
	assert.Equal(t, "Bearer t", b.header("Authorization"))
}

func TestResult_PassesID(t *testing.T) {
	b := &mockBackend{results: []any{itemsResult(map[string]any{"structure": "90c", "brokerName": "GF", "offer": "0.07"})}}
	srv := b.server(t)

	resp, err := newTestClient(srv, nil).Result(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, []string{"42"}, b.polledIDs())
}

func TestResult_EmptyIDRejected(t *testing.T) {
	b := &mockBackend{}
	srv := b.server(t)

	_, err := newTestClient(srv, nil).Result(context.Background(), "")
	assert.Error(t, err)
	assert.Zero(t, b.resultCount())
}

func TestRequestID_Decoding(t *testing.T) {
	tests := []struct {
		in   string
		want RequestID
	}{
		{`{"data": 42}`, "42"},
		{`{"data": "abc"}`, "abc"},
		{`{"data": null}`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		var r CreateResponse
		require.NoError(t, json.Unmarshal([]byte(tt.in), &r), tt.in)
		assert.Equal(t, tt.want, r.Data, tt.in)
	}
}

func TestOffer_Decoding(t *testing.T) {
	var items []ResultItem
	require.NoError(t, json.Unmarshal([]byte(`[
		{"structure":"90c","brokerName":"GF","offer":"0.0725"},
		{"structure":"90c","brokerName":"ZJ","offer":0.05},
		{"structure":"90c","brokerName":"YHDR","offer":null},
		{"structure":"90c","brokerName":"GJFXZ"},
		{"structure":"90c","brokerName":"ZX","offer":{"bid":1}}
	]`), &items))

	assert.Equal(t, OfferOf("0.0725"), items[0].Offer)
	assert.Equal(t, OfferOf("0.05"), items[1].Offer)
	assert.False(t, items[2].Offer.Valid)
	assert.False(t, items[3].Offer.Valid)
	assert.Equal(t, OfferOf(`{"bid":1}`), items[4].Offer, "kept verbatim for the cell parser to reject")

	b, err := json.Marshal(items[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"structure":"90c","brokerName":"GF","offer":"0.0725"}`, string(b))
}
