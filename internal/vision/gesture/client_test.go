package gesture

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"presence-kiosk-go/internal/config"
	"presence-kiosk-go/internal/core/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classifyServer(t *testing.T, gestures []map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/classify", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"gestures": gestures})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDetectReturnsTopGesture(t *testing.T) {
	server := classifyServer(t, []map[string]interface{}{
		{"label": "open_palm", "confidence": 0.4},
		{"label": "thumbs_up", "confidence": 0.9},
	})

	client := NewClient(config.GestureConfig{URL: server.URL, TimeoutSeconds: 5})
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	result, err := client.Detect(context.Background(), &session.Frame{JPEG: []byte("jpeg")}, at)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "thumbs_up", result.Label)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)
	assert.Equal(t, at, result.Timestamp)
}

func TestDetectNoHandVisible(t *testing.T) {
	server := classifyServer(t, nil)

	client := NewClient(config.GestureConfig{URL: server.URL, TimeoutSeconds: 5})
	result, err := client.Detect(context.Background(), &session.Frame{JPEG: []byte("jpeg")}, time.Now())

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDetectServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.GestureConfig{URL: server.URL, TimeoutSeconds: 5})
	_, err := client.Detect(context.Background(), &session.Frame{JPEG: []byte("jpeg")}, time.Now())

	require.Error(t, err)
}

func TestReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.GestureConfig{URL: server.URL, TimeoutSeconds: 5})
	assert.NoError(t, client.Ready(context.Background()))
}
