package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"DigitalHuman-server/config"
	"DigitalHuman-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFal(t *testing.T, h http.Handler) *FalClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewFalClient(config.FalConfig{
		BaseURL:      srv.URL,
		APIKey:       "secret",
		PollInterval: 5 * time.Millisecond,
		Timeout:      time.Second,
	}, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestFalClient_RunPollsUntilCompleted(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /fal-ai/video", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key secret", r.Header.Get("Authorization"))
		var args map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "dance", args["prompt"])
		writeJSON(w, map[string]string{"request_id": "req-1"})
	})
	mux.HandleFunc("GET /fal-ai/video/requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			writeJSON(w, map[string]string{"status": "IN_PROGRESS"})
			return
		}
		writeJSON(w, map[string]string{"status": "COMPLETED"})
	})
	mux.HandleFunc("GET /fal-ai/video/requests/req-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"video": map[string]string{"url": "https://cdn/v.mp4"}})
	})

	fal := newTestFal(t, mux)
	var out videoOutput
	require.NoError(t, fal.Run(context.Background(), "fal-ai/video", map[string]string{"prompt": "dance"}, &out))
	require.NotNil(t, out.Video)
	assert.Equal(t, "https://cdn/v.mp4", out.Video.URL)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(3))
}

func TestFalClient_ErrorStatusStopsPolling(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /app", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"request_id": "r"})
	})
	mux.HandleFunc("GET /app/requests/r/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ERROR", "error": "nsfw"})
	})

	err := newTestFal(t, mux).Run(context.Background(), "app", struct{}{}, &struct{}{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExternalFailure))
	assert.Contains(t, err.Error(), "nsfw")
}

func TestFalClient_SubmitRejected(t *testing.T) {
	fal := newTestFal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := fal.Submit(context.Background(), "app", struct{}{})
	assert.True(t, errors.Is(err, models.ErrExternalFailure))
}

func TestFalClient_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /app", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"request_id": "r"})
	})
	mux.HandleFunc("GET /app/requests/r/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "IN_QUEUE"})
	})
	fal := newTestFal(t, mux)
	fal.timeout = 30 * time.Millisecond

	err := fal.Run(context.Background(), "app", struct{}{}, &struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
