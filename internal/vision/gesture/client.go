// Package gesture talks to the external hand-gesture classification service.
package gesture

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

type classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type classifyResponse struct {
	Gestures []classification `json:"gestures"`
}

// Client is an HTTP client for the gesture classification service.
type Client struct {
	cfg        config.GestureConfig
	httpClient *http.Client
}

// NewClient creates a gesture service client with a bounded request timeout.
func NewClient(cfg config.GestureConfig) *Client {
	timeout := 10 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ready checks that the service is reachable.
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
		return fmt.Errorf("gesture service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gesture service not ready (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// Detect sends one frame for classification and returns the top gesture, or
// nil when no hand is visible. Runs on its own cadence, independent of the
// face observer.
func (c *Client) Detect(ctx context.Context, frame *session.Frame, at time.Time) (*session.GestureResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(frame.JPEG); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	apiURL, err := url.JoinPath(c.cfg.URL, "/api/v1/classify")
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
		return nil, fmt.Errorf("gesture service returned error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Gestures) == 0 {
		return nil, nil
	}

	top := result.Gestures[0]
	for _, g := range result.Gestures[1:] {
		if g.Confidence > top.Confidence {
			top = g
		}
	}

	log.Debugf("Gesture service reported %q (%.2f)", top.Label, top.Confidence)
	return &session.GestureResult{
		Label:      top.Label,
		Confidence: top.Confidence,
		Timestamp:  at,
	}, nil
}
