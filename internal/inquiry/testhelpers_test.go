package inquiry

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// writeJSON encodes v as JSON into w.
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("test helper writeJSON: " + err.Error())
	}
}

// mockBackend fakes the creation and result endpoints.
// Result answers are served in order; the last one repeats.
type mockBackend struct {
	mu          sync.Mutex
	createBody  string
	createResp  any
	createCalls int
	results     []any
	resultCalls int
	resultIDs   []string
	headers     http.Header
}

func (b *mockBackend) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.headers = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/create":
			body, _ := io.ReadAll(r.Body)
			b.createBody = string(body)
			b.createCalls++
			if b.createResp == nil {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeJSON(w, b.createResp)

		case r.Method == http.MethodGet && r.URL.Path == "/result":
			b.resultIDs = append(b.resultIDs, r.URL.Query().Get("id"))
			i := b.resultCalls
			b.resultCalls++
			if len(b.results) == 0 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if i >= len(b.results) {
				i = len(b.results) - 1
			}
			if b.results[i] == nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			writeJSON(w, b.results[i])

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func emptyResult() map[string]any {
	return map[string]any{"code": 0, "data": map[string]any{"items": []any{}}}
}

func itemsResult(items ...map[string]any) map[string]any {
	return map[string]any{"code": 0, "data": map[string]any{"items": items}}
}

func newTestClient(srv *httptest.Server, headers map[string]string) *Client {
	return NewClient(zap.NewNop(), ClientConfig{
		CreateURL: srv.URL + "/create",
		ResultURL: srv.URL + "/result",
	}, nil, StaticHeaders(headers), srv.Client())
}

// scenarioContext is the single-structure, two-vendor run used across tests.
func scenarioContext() model.RunContext {
	return model.RunContext{
		RunID:       "run-1",
		Term:        model.Term{Code: "1m", Label: "1m"},
		Layout:      model.MustLayout([]model.Structure{{Code: "90c", Label: "ITM90"}}, []string{"GF", "ZJ"}),
		ProductType: 0,
		Scale:       1_000_000,
	}
}

const fastPoll = time.Millisecond

func (b *mockBackend) createCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createCalls
}

func (b *mockBackend) resultCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resultCalls
}

func (b *mockBackend) polledIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.resultIDs...)
}

func (b *mockBackend) lastCreateBody() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createBody
}

func (b *mockBackend) header(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.headers.Get(key)
}
