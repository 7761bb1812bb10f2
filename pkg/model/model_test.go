package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) Layout {
	t.Helper()
	l, err := NewLayout(
		[]Structure{{Code: "90c", Label: "ITM90"}, {Code: "100c", Label: "ATM100"}},
		[]string{"GF", "ZJ", "YHDR"},
	)
	require.NoError(t, err)
	return l
}

func TestNewLayout_Validation(t *testing.T) {
	_, err := NewLayout(nil, []string{"GF"})
	assert.Error(t, err)

	_, err = NewLayout([]Structure{{Code: "90c"}}, nil)
	assert.Error(t, err)

	_, err = NewLayout([]Structure{{Code: "90c"}, {Code: "90c"}}, []string{"GF"})
	assert.ErrorContains(t, err, "duplicate structure")

	_, err = NewLayout([]Structure{{Code: " "}}, []string{"GF"})
	assert.ErrorContains(t, err, "empty code")

	l, err := NewLayout([]Structure{{Code: "90c"}}, []string{"GF"})
	require.NoError(t, err)
	assert.Equal(t, "90c", l.Structures()[0].Label, "label falls back to code")
}

func TestLayout_IndexAndOrder(t *testing.T) {
	l := testLayout(t)

	assert.Equal(t, 6, l.Size())
	assert.Equal(t, []string{"90c", "100c"}, l.StructureCodes())
	assert.Equal(t, []string{"GF", "ZJ", "YHDR"}, l.Vendors())

	i, ok := l.VendorIndex("ZJ")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = l.StructureIndex("105c")
	assert.False(t, ok)
}

func TestLayout_AccessorsReturnCopies(t *testing.T) {
	l := testLayout(t)
	v := l.Vendors()
	v[0] = "MUTATED"
	assert.Equal(t, "GF", l.Vendors()[0])
}

func TestLayout_Fingerprint(t *testing.T) {
	a := testLayout(t)
	b := testLayout(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := MustLayout([]Structure{{Code: "90c"}, {Code: "100c"}}, []string{"ZJ", "GF", "YHDR"})
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint(), "vendor order is part of the keyspace")
}

func TestQuoteTable_FullKeyspace(t *testing.T) {
	l := testLayout(t)
	qt := NewQuoteTable(l)

	assert.Equal(t, l.Size(), qt.Len())
	assert.Equal(t, 0, qt.Present())

	qt.Set(1, 2, Quoted(0.05))
	assert.Equal(t, Quoted(0.05), qt.Get("100c", "YHDR"))
	assert.Equal(t, Absent, qt.Get("100c", "GF"))
	assert.Equal(t, Absent, qt.Get("105c", "GF"), "unknown structure is absent")
	assert.Equal(t, 1, qt.Present())
}

func TestQuoteTable_MarshalJSON(t *testing.T) {
	l := MustLayout([]Structure{{Code: "90c", Label: "ITM90"}}, []string{"GF", "ZJ"})
	qt := NewQuoteTable(l)
	qt.Set(0, 0, Quoted(0.0725))

	b, err := json.Marshal(qt)
	require.NoError(t, err)
	assert.JSONEq(t, `{"90c":{"GF":0.0725,"ZJ":null}}`, string(b))
}

func TestCell_JSONRoundTrip(t *testing.T) {
	var cells []Cell
	require.NoError(t, json.Unmarshal([]byte(`[7.25, null]`), &cells))
	assert.Equal(t, []Cell{Quoted(7.25), Absent}, cells)
}

func TestQuoteTable_Equal(t *testing.T) {
	l := testLayout(t)
	a, b := NewQuoteTable(l), NewQuoteTable(l)
	assert.True(t, a.Equal(b))
	a.Set(0, 0, Quoted(1))
	assert.False(t, a.Equal(b))
}

func TestBaseID(t *testing.T) {
	assert.Equal(t, "300476", BaseID("300476.XSHE"))
	assert.Equal(t, "000001", BaseID(" 000001.XSHE "))
	assert.Equal(t, "600000", BaseID("600000"))
}

func TestReport_CellAndHeaders(t *testing.T) {
	r := Report{
		Columns: []Column{
			{Header: "ITM90 1m", Structure: "90c", Vendor: "GF"},
			{Header: "ITM90 1m", Structure: "90c", Vendor: "ZJ"},
		},
		Rows: []Row{
			{Instrument: "300476.XSHE", Cells: []Cell{Quoted(7.25), Absent}},
			{Instrument: "000001.XSHE", Cells: []Cell{Absent, Absent}},
		},
	}

	c, ok := r.Cell("300476.XSHE", "ITM90 1m", "GF")
	require.True(t, ok)
	assert.Equal(t, 7.25, c.Value)

	_, ok = r.Cell("300476.XSHE", "ITM90 1m", "YHDR")
	assert.False(t, ok)

	assert.Equal(t, []string{"ITM90 1m"}, r.Headers())
	assert.Equal(t, 1, r.Quoted())
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope("run-1", TermFailed{RunID: "run-1", Term: "1m", Error: "disk full"})
	require.NoError(t, err)
	assert.Equal(t, "evt.askprice.term.failed.v1", env.Topic)
	assert.Equal(t, "term.failed", env.EventType)
	assert.JSONEq(t, `{"run_id":"run-1","term":"1m","output_path":"","error":"disk full","timestamp":"0001-01-01T00:00:00Z"}`,
		string(env.Payload))
}

func TestRunIDOf(t *testing.T) {
	assert.Equal(t, "r1", RunIDOf(TermStarted{RunID: "r1"}))
	assert.Equal(t, "r2", RunIDOf(RunCompleted{RunID: "r2"}))
	assert.Empty(t, RunIDOf(nil))
}
