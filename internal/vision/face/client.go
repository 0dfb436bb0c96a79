// Package face talks to the external face inference service. How faces are
// detected and expressions scored is the service's business; this client only
// carries frames over and detections back.
package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"presence-kiosk-go/internal/config"
	"presence-kiosk-go/internal/core/session"

	log "github.com/sirupsen/logrus"
)

// Box is the service's bounding box representation.
type Box struct {
	Probability float64 `json:"probability"`
	XMin        int     `json:"x_min"`
	YMin        int     `json:"y_min"`
	XMax        int     `json:"x_max"`
	YMax        int     `json:"y_max"`
}

// Detection is one face as reported by the service.
type Detection struct {
	Box         Box                `json:"box"`
	Expressions map[string]float64 `json:"expressions"`
}

type detectResponse struct {
	Faces []Detection `json:"faces"`
}

// Client is an HTTP client for the face inference service.
type Client struct {
	cfg        config.FaceConfig
	httpClient *http.Client
}

// NewClient creates a face service client with a bounded request timeout.
func NewClient(cfg config.FaceConfig) *Client {
	timeout := 10 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ready checks that the service is reachable. Used once at session start;
// a failure is treated as a model-load failure by the orchestrator.
func (c *Client) Ready(ctx context.Context) error {
	apiURL, err := url.JoinPath(c.cfg.URL, "/api/v1/health")
	if err != nil {
		return fmt.Errorf("failed to create API URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("face service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service not ready (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// Detect sends one frame for detection. Errors are soft for the caller: the
// orchestrator treats them as "no faces this tick".
func (c *Client) Detect(ctx context.Context, frame *session.Frame) ([]session.FaceDetection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(frame.JPEG); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	threshold := fmt.Sprintf("%.2f", c.cfg.DetProbThreshold)
	if err := writer.WriteField("det_prob_threshold", threshold); err != nil {
		log.Warnf("Failed to add det_prob_threshold parameter: %v", err)
	}
	if err := writer.WriteField("face_plugins", "expressions"); err != nil {
		log.Warnf("Failed to add face_plugins parameter: %v", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	apiURL, err := url.JoinPath(c.cfg.URL, "/api/v1/detect")
	if err != nil {
		return nil, fmt.Errorf("failed to create API URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service returned error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	detections := make([]session.FaceDetection, 0, len(result.Faces))
	for _, face := range result.Faces {
		detections = append(detections, session.FaceDetection{
			Region: session.Region{
				X:      face.Box.XMin,
				Y:      face.Box.YMin,
				Width:  face.Box.XMax - face.Box.XMin,
				Height: face.Box.YMax - face.Box.YMin,
			},
			Expressions: face.Expressions,
		})
	}

	log.Debugf("Face service reported %d face(s)", len(detections))
	return detections, nil
}
