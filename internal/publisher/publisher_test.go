package publisher

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/eventbus"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// --- mock types ---

type mockJetStream struct {
	mu        sync.Mutex
	published []*nats.Msg
	fail      bool
}

func (m *mockJetStream) PublishMsg(msg *nats.Msg, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if m.fail {
		return nil, errors.New("mock publish error")
	}
	m.mu.Lock()
	m.published = append(m.published, msg)
	m.mu.Unlock()
	return &nats.PubAck{Stream: "ASKPRICE"}, nil
}

type mockStreamManager struct {
	nats.JetStreamManager
	infoErr error
	added   *nats.StreamConfig
}

func (m *mockStreamManager) StreamInfo(string, ...nats.JSOpt) (*nats.StreamInfo, error) {
	if m.infoErr != nil {
		return nil, m.infoErr
	}
	return &nats.StreamInfo{}, nil
}

func (m *mockStreamManager) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	m.added = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func newTestPublisher(js *mockJetStream) *Publisher {
	return &Publisher{js: js, service: "ask-price", logger: zap.NewNop()}
}

// --- tests ---

func TestPublishEvent_SubjectAndHeaders(t *testing.T) {
	js := &mockJetStream{}
	p := newTestPublisher(js)

	require.NoError(t, p.PublishEvent(model.TermCompleted{RunID: "run-1", Term: "1m", Quoted: 3}))
	require.Len(t, js.published, 1)

	msg := js.published[0]
	assert.Equal(t, "evt.askprice.term.completed.v1", msg.Subject)
	assert.Equal(t, "term.completed", msg.Header.Get("event_type"))
	assert.Equal(t, "run-1", msg.Header.Get("run_id"))
	assert.NotEmpty(t, msg.Header.Get(nats.MsgIdHdr))

	var env model.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, "run-1", env.RunID)
	assert.JSONEq(t, `3`, string(mustField(t, env.Payload, "quoted")))
}

func TestPublishEvent_Failure(t *testing.T) {
	p := newTestPublisher(&mockJetStream{fail: true})
	assert.Error(t, p.PublishEvent(model.RunStarted{RunID: "run-1"}))
}

func TestAttach_ForwardsBusEvents(t *testing.T) {
	js := &mockJetStream{}
	bus := eventbus.New()
	newTestPublisher(js).Attach(bus)

	bus.Publish(model.RunStarted{RunID: "r"})
	bus.Publish(model.RunCompleted{RunID: "r"})
	bus.Wait()

	js.mu.Lock()
	defer js.mu.Unlock()
	assert.Len(t, js.published, 2)
}

func TestEnsureStream(t *testing.T) {
	existing := &mockStreamManager{}
	require.NoError(t, EnsureStream(existing, "ASKPRICE"))
	assert.Nil(t, existing.added)

	missing := &mockStreamManager{infoErr: nats.ErrStreamNotFound}
	require.NoError(t, EnsureStream(missing, "ASKPRICE"))
	require.NotNil(t, missing.added)
	assert.Equal(t, []string{SubjectWildcard}, missing.added.Subjects)

	broken := &mockStreamManager{infoErr: errors.New("timeout")}
	assert.Error(t, EnsureStream(broken, "ASKPRICE"))
}

func mustField(t *testing.T, payload json.RawMessage, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &m))
	return m[key]
}
