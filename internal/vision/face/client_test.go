package face

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"presence-kiosk-go/internal/config"
	"presence-kiosk-go/internal/core/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectMapsBoxesToRegions(t *testing.T) {
	var gotThreshold, gotPlugins, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/detect", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		gotThreshold = r.FormValue("det_prob_threshold")
		gotPlugins = r.FormValue("face_plugins")
		gotKey = r.Header.Get("x-api-key")

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		file.Close()

		json.NewEncoder(w).Encode(map[string]interface{}{
			"faces": []map[string]interface{}{
				{
					"box": map[string]interface{}{
						"x_min": 100, "y_min": 50, "x_max": 300, "y_max": 250,
						"probability": 0.98,
					},
					"expressions": map[string]float64{"happy": 0.8},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(config.FaceConfig{
		URL:              server.URL,
		APIKey:           "secret",
		DetProbThreshold: 0.8,
		TimeoutSeconds:   5,
	})

	detections, err := client.Detect(context.Background(), &session.Frame{JPEG: []byte("jpeg"), Width: 1280, Height: 720})

	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, session.Region{X: 100, Y: 50, Width: 200, Height: 200}, detections[0].Region)
	assert.Equal(t, 0.8, detections[0].Expressions["happy"])
	assert.Equal(t, "0.80", gotThreshold)
	assert.Equal(t, "expressions", gotPlugins)
	assert.Equal(t, "secret", gotKey)
}

func TestDetectEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"faces": []interface{}{}})
	}))
	defer server.Close()

	client := NewClient(config.FaceConfig{URL: server.URL, TimeoutSeconds: 5})
	detections, err := client.Detect(context.Background(), &session.Frame{JPEG: []byte("jpeg")})

	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestDetectServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(config.FaceConfig{URL: server.URL, TimeoutSeconds: 5})
	_, err := client.Detect(context.Background(), &session.Frame{JPEG: []byte("jpeg")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(config.FaceConfig{URL: server.URL, TimeoutSeconds: 5})
	assert.NoError(t, client.Ready(context.Background()))
}

func TestReadyUnreachable(t *testing.T) {
	client := NewClient(config.FaceConfig{URL: "http://127.0.0.1:1", TimeoutSeconds: 1})
	assert.Error(t, client.Ready(context.Background()))
}
