package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"livevision/internal/domain/entity"
)

type fakeController struct {
	startErr  error
	threshold float32
	snapshot  entity.Snapshot
	stats     entity.LoopStats
	frame     []byte
	frameErr  error
}

func (c *fakeController) Start(ctx context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.snapshot.Status = entity.StatusDetecting
	c.snapshot.IsDetecting = true
	return nil
}

func (c *fakeController) Stop() error {
	if !c.snapshot.IsDetecting {
		return entity.ErrNotDetecting
	}
	c.snapshot.Status = entity.StatusReady
	c.snapshot.IsDetecting = false
	return nil
}

func (c *fakeController) SetThreshold(v float32) error {
	if v < 0 || v > 1 {
		return entity.ErrInvalidThreshold
	}
	c.threshold = v
	return nil
}

func (c *fakeController) Threshold() float32      { return c.threshold }
func (c *fakeController) Status() entity.Snapshot { return c.snapshot }
func (c *fakeController) Stats() entity.LoopStats { return c.stats }

func (c *fakeController) AnnotatedFrame() ([]byte, entity.Snapshot, error) {
	return c.frame, c.snapshot, c.frameErr
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func newTestServer(t *testing.T, c *fakeController) http.Handler {
	return NewServer(":0", c, zaptest.NewLogger(t)).Handler()
}

func TestServer_StatusStartStop(t *testing.T) {
	c := &fakeController{threshold: 0.5, snapshot: entity.Snapshot{Status: entity.StatusReady, Detections: []entity.Detection{}}}
	h := newTestServer(t, c)

	rec := do(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Equal(t, "ready", raw["status"])
	require.InDelta(t, 0.5, raw["threshold"], 1e-6)
	require.Equal(t, false, raw["is_detecting"])
	require.NotContains(t, raw, "Frame")

	rec = do(t, h, http.MethodPost, "/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[StatusResponse](t, rec).IsDetecting)

	rec = do(t, h, http.MethodPost, "/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/stop", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "not_detecting", decode[ErrorResponse](t, rec).Code)
}

func TestServer_StartErrors(t *testing.T) {
	cases := map[error]int{
		entity.ErrNotLoaded:        http.StatusConflict,
		entity.ErrLoading:          http.StatusConflict,
		entity.ErrAlreadyDetecting: http.StatusConflict,
		&entity.AcquisitionError{Source: "camera:0", Err: errors.New("busy")}: http.StatusServiceUnavailable,
		errors.New("boom"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		h := newTestServer(t, &fakeController{startErr: err})
		rec := do(t, h, http.MethodPost, "/start", "")
		require.Equal(t, want, rec.Code, err.Error())
		require.Equal(t, err.Error(), decode[ErrorResponse](t, rec).Message)
	}
}

func TestServer_Threshold(t *testing.T) {
	c := &fakeController{threshold: 0.5}
	h := newTestServer(t, c)

	rec := do(t, h, http.MethodPut, "/threshold", `{"threshold":0.7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.InDelta(t, 0.7, c.threshold, 1e-6)
	require.InDelta(t, 0.7, decode[StatusResponse](t, rec).Threshold, 1e-6)

	rec = do(t, h, http.MethodPut, "/threshold", `{"threshold":1.7}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_threshold", decode[ErrorResponse](t, rec).Code)

	rec = do(t, h, http.MethodPut, "/threshold", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/threshold", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.InDelta(t, 0.7, c.threshold, 1e-6)

	rec = do(t, h, http.MethodGet, "/threshold", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_MetricsAndHealth(t *testing.T) {
	c := &fakeController{
		snapshot: entity.Snapshot{FPS: 8, FrameCount: 42},
		stats:    entity.LoopStats{Completed: 42, Failed: 1, Skipped: 3},
	}
	h := newTestServer(t, c)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[MetricsResponse](t, rec)
	require.Equal(t, uint64(42), m.Completed)
	require.Equal(t, uint64(3), m.Skipped)
	require.Equal(t, 8, m.FPS)

	rec = do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Snapshot(t *testing.T) {
	c := &fakeController{frameErr: entity.ErrNoFrame}
	h := newTestServer(t, c)

	rec := do(t, h, http.MethodGet, "/snapshot.jpg", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	c.frameErr = nil
	c.frame = []byte{0xff, 0xd8, 0xff, 0xe0}
	rec = do(t, h, http.MethodGet, "/snapshot.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	require.Equal(t, c.frame, rec.Body.Bytes())
}
