package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/archive"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/runner"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/source"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/config"
)

type fakeDesk struct {
	creates atomic.Int32
	polls   atomic.Int32
}

func (d *fakeDesk) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/create":
			d.creates.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": 42, "msg": "success"})
		case "/result":
			// first poll per request is empty, the second carries the quote
			if d.polls.Add(1)%2 == 1 {
				_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"items": []any{}}})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"items": []any{
				map[string]any{"structure": "90c", "brokerName": "GF", "offer": "0.0725"},
				map[string]any{"structure": "100c", "brokerName": "ZJ", "offer": "0"},
			}}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "input.csv")
	require.NoError(t, os.WriteFile(input, []byte("300476.XSHE\n"), 0o644))

	return &config.Config{
		ServiceName:     "ask-price",
		CatalogFile:     filepath.Join(dir, "missing-catalog.yaml"),
		InputFile:       input,
		OutputPattern:   filepath.Join(dir, "output_{term}", "final_result_{term}.xlsx"),
		CreateURL:       backend + "/create",
		ResultURL:       backend + "/result",
		HTTPTimeout:     5 * time.Second,
		InquiryScale:    1_000_000,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 3,
		Concurrency:     1,
		ArchiveDriver:   "none",
		SecretCacheTTL:  time.Hour,
		ResultCacheTTL:  time.Minute,
	}
}

func TestPlan_DefaultsAndOverrides(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	plan, err := a.Plan(context.Background(), runner.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"300476.XSHE"}, plan.Instruments)
	assert.Len(t, plan.Terms, 3, "built-in catalog terms")
	assert.Equal(t, 1_000_000, plan.Scale)
	assert.Contains(t, plan.OutputPath(plan.Terms[1]), "final_result_2m.xlsx")

	plan, err = a.Plan(context.Background(), runner.RunRequest{Terms: []string{"3m"}})
	require.NoError(t, err)
	require.Len(t, plan.Terms, 1)
	assert.Equal(t, "3m", plan.Terms[0].Code)

	_, err = a.Plan(context.Background(), runner.RunRequest{Terms: []string{"6m"}})
	assert.ErrorContains(t, err, "unknown term")

	_, err = a.Plan(context.Background(), runner.RunRequest{Input: filepath.Join(t.TempDir(), "nope.xlsx")})
	assert.ErrorIs(t, err, source.ErrInputMissing)
}

func TestNew_UnknownArchiveDriver(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.ArchiveDriver = "mongo"
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unknown archive driver")
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNew_ClassifiesFailures(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.CatalogFile = filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(cfg.CatalogFile, []byte("terms: [unclosed"), 0o644))
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, ErrConfig, "unreadable catalog is a config problem")

	cfg = testConfig(t, "http://127.0.0.1:1")
	cfg.NATSURL = "nats://127.0.0.1:1"
	_, err = New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfig, "unreachable NATS is an infrastructure problem")
}

// ─── End to end ──────────────────────────────────────────────────────────────

func TestRun_EndToEndWithCacheAndArchive(t *testing.T) {
	desk := &fakeDesk{}
	srv := desk.server(t)
	mr := miniredis.RunT(t)

	cfg := testConfig(t, srv.URL)
	cfg.RedisAddr = mr.Addr()
	cfg.ArchiveDriver = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "archive.db")

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	plan, err := a.Plan(context.Background(), runner.RunRequest{Terms: []string{"1m"}})
	require.NoError(t, err)

	res, err := a.Controller.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, res.Terms, 1)
	assert.Equal(t, runner.StateDone, res.Terms[0].State)
	assert.Equal(t, 1, res.Terms[0].Stats.Quoted)
	assert.Equal(t, 1, res.Terms[0].Archived)
	assert.Equal(t, int32(1), desk.creates.Load())

	// the second run is served from the result cache
	_, err = a.Controller.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, int32(1), desk.creates.Load())
	a.Close()

	out := cfg.OutputPath(plan.Terms[0])
	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	a1, err := f.GetCellValue(f.GetSheetName(0), "A3")
	require.NoError(t, err)
	assert.Equal(t, "300476.XSHE", a1)

	lite, err := archive.OpenSQLite(context.Background(), cfg.SQLitePath, zap.NewNop())
	require.NoError(t, err)
	defer lite.Close()
	v, ok, err := lite.Latest(context.Background(), "300476.XSHE", "1m", "90c", "GF")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 7.25, v, 1e-9)

	_, ok, err = lite.Latest(context.Background(), "300476.XSHE", "1m", "100c", "ZJ")
	require.NoError(t, err)
	assert.False(t, ok, "a zero offer is not archived")
}
