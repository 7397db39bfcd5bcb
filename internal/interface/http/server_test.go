package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clanhub/achievement-engine/internal/application/command"
	"github.com/clanhub/achievement-engine/internal/domain/shared"
	"github.com/clanhub/achievement-engine/internal/interface/http/handlers"
	"github.com/clanhub/achievement-engine/pkg/logger"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeSink struct {
	envelopes []shared.Envelope
	err       error
}

func (f *fakeSink) Enqueue(envelope shared.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.envelopes = append(f.envelopes, envelope)
	return nil
}

type fakeStats struct {
	depth, dedup      int
	dropped, rejected int64
}

func (f *fakeStats) Len() int                         { return f.depth }
func (f *fakeStats) DedupSize() int                   { return f.dedup }
func (f *fakeStats) Stats() (dropped, rejected int64) { return f.dropped, f.rejected }

// newTestServer builds a server without rate limiting and with a silent logger
// so tests exercise routing and handlers only.
func newTestServer(t *testing.T, mutate func(*Config, *Dependencies)) *Server {
	t.Helper()

	config := DefaultConfig()
	config.RateLimitPerMinute = 0

	deps := Dependencies{
		Logger: logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError}),
	}

	if mutate != nil {
		mutate(&config, &deps)
	}

	return NewServer(config, deps)
}

func doRequest(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ─────────────────────────────────────────────────────────────────────────────
// Event ingestion
// ─────────────────────────────────────────────────────────────────────────────

func TestTrackEventAccepted(t *testing.T) {
	sink := &fakeSink{}
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.TrackEventHandler = command.NewTrackEventHandler(sink)
	})

	body := []byte(`{"user_id":42,"group_id":-100500,"type":"message_sent","data":{"length":12}}`)
	rec := doRequest(s, http.MethodPost, "/api/v1/events", body)

	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	require.Len(t, sink.envelopes, 1)
	envelope := sink.envelopes[0]
	assert.Equal(t, shared.EventMessageSent, envelope.Type)
	assert.Equal(t, shared.UserID(42), envelope.UserID)
	assert.Equal(t, shared.GroupID(-100500), envelope.GroupID)
	assert.NotEmpty(t, envelope.ID)
}

func TestTrackEventRejectsUnknownType(t *testing.T) {
	sink := &fakeSink{}
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.TrackEventHandler = command.NewTrackEventHandler(sink)
	})

	body := []byte(`{"user_id":42,"group_id":-100500,"type":"coffee_brewed"}`)
	rec := doRequest(s, http.MethodPost, "/api/v1/events", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_request", resp.Error.Code)
	assert.Empty(t, sink.envelopes)
}

func TestTrackEventQueueFull(t *testing.T) {
	sink := &fakeSink{err: shared.ErrEventQueueFull}
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.TrackEventHandler = command.NewTrackEventHandler(sink)
	})

	body := []byte(`{"user_id":42,"group_id":-100500,"type":"message_sent"}`)
	rec := doRequest(s, http.MethodPost, "/api/v1/events", body)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "queue_full", resp.Error.Code)
}

func TestTrackEventMalformedJSON(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.TrackEventHandler = command.NewTrackEventHandler(&fakeSink{})
	})

	rec := doRequest(s, http.MethodPost, "/api/v1/events", []byte(`{"user_id":`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_request", resp.Error.Code)
}

func TestTrackEventNotConfigured(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodPost, "/api/v1/events", []byte(`{}`))

	require.Equal(t, http.StatusNotImplemented, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_implemented", resp.Error.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Path parsing
// ─────────────────────────────────────────────────────────────────────────────

func TestPathKeyParsesNegativeGroup(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("group_id", "-100500")
	req.SetPathValue("user_id", "42")
	rec := httptest.NewRecorder()

	userID, groupID, ok := s.pathKey(rec, req)
	require.True(t, ok)
	assert.Equal(t, shared.UserID(42), userID)
	assert.Equal(t, shared.GroupID(-100500), groupID)
}

func TestPathKeyRejectsGarbage(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("group_id", "abc")
	req.SetPathValue("user_id", "42")
	rec := httptest.NewRecorder()

	_, _, ok := s.pathKey(rec, req)
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Status endpoints
// ─────────────────────────────────────────────────────────────────────────────

func TestRootListsEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Achievement Engine API", data["name"])
}

func TestHealthWithChecker(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.HealthChecker = handlers.NewNoopHealthChecker()
	})

	rec := doRequest(s, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Success)
}

func TestMetricsIncludesQueueCounters(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.StatsSource = &fakeStats{depth: 3, dedup: 2, dropped: 7, rejected: 1}
	})

	rec := doRequest(s, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)

	queue, ok := data["queue"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), queue["depth"])
	assert.Equal(t, float64(2), queue["dedup_size"])
	assert.Equal(t, float64(7), queue["dropped"])
	assert.Equal(t, float64(1), queue["rejected"])
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

func TestAdminRouteRequiresAPIKey(t *testing.T) {
	s := newTestServer(t, func(config *Config, _ *Dependencies) {
		config.APIKeys = []string{"secret"}
	})

	rec := doRequest(s, http.MethodPost, "/api/v1/groups/-100500/users/42/recheck", []byte(`{}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/-100500/users/42/recheck", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	// Authenticated, but the recheck handler is not configured in this test.
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRateLimitExceeded(t *testing.T) {
	s := newTestServer(t, func(config *Config, _ *Dependencies) {
		config.RateLimitPerMinute = 1
	})

	rec := doRequest(s, http.MethodGet, "/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/live", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
