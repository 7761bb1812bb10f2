package api

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/store"
)

func TestHealth_NoDependencies(t *testing.T) {
	resp, err := newTestApp(&mockRunService{}).Test(httpGet("/health"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "disabled", body.Checks["store"])
	assert.Equal(t, "disabled", body.Checks["nats"])
}

func TestHealth_StoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	st, err := store.NewRedis(mr.Addr(), 0, "", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	app := fiber.New()
	RegisterRoutes(app, nil, st, NewRunHandler(zap.NewNop(), &mockRunService{}))

	resp, err := app.Test(httpGet("/health"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	mr.Close()
	resp, err = app.Test(httpGet("/health"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	resp, err := newTestApp(&mockRunService{}).Test(httpGet("/metrics"), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
