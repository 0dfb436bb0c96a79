// Package gateway is the network boundary to the attendance backend of
// record. Phase 1 (identify) has no ledger effect and is cheap to retry;
// Phase 2 (commit) may mutate the ledger, so outcomes are reported instead
// of retried.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"presence-kiosk-go/internal/config"
	"presence-kiosk-go/internal/core/session"

	log "github.com/sirupsen/logrus"
)

// Client implements the two-phase protocol against the backend.
type Client struct {
	cfg        config.BackendConfig
	httpClient *http.Client

	mu        sync.Mutex
	csrfToken string
}

type identifyRequest struct {
	Frame string `json:"frame"`
}

type identifyResponse struct {
	Status         string `json:"status"`
	RecognizedName string `json:"recognized_name"`
	Message        string `json:"message"`
}

type commitRequest struct {
	RecognizedName string   `json:"recognized_name"`
	Gesture        string   `json:"gesture"`
	EmotionalState *string  `json:"emotional_state"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
}

type commitResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	AttendanceType string `json:"attendance_type"`
	IsLate         bool   `json:"is_late"`
}

type csrfResponse struct {
	Token string `json:"csrfToken"`
}

type activityResponse struct {
	Status      string `json:"status"`
	RecordsHTML string `json:"records_html"`
}

// NewClient creates a backend client with a bounded request timeout.
func NewClient(cfg config.BackendConfig) *Client {
	timeout := 15 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Identify resolves a captured frame to an identity (Phase 1). Any transport
// failure or non-2xx status maps to a transport error, never to an identity.
func (c *Client) Identify(ctx context.Context, image []byte) session.RecognitionOutcome {
	payload, err := json.Marshal(identifyRequest{
		Frame: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return transportOutcome(fmt.Sprintf("failed to encode request: %v", err))
	}

	var result identifyResponse
	if err := c.postJSON(ctx, "/api/recognize-face/", payload, &result); err != nil {
		log.WithError(err).Warn("Phase 1 identify failed")
		return transportOutcome(err.Error())
	}

	if result.Status == "success" && result.RecognizedName != "" && result.RecognizedName != "Unknown" {
		return session.RecognitionOutcome{
			Status:  session.RecognitionIdentified,
			Name:    result.RecognizedName,
			Message: result.Message,
		}
	}
	return session.RecognitionOutcome{
		Status:  session.RecognitionUnknown,
		Name:    "Unknown",
		Message: result.Message,
	}
}

// Commit records an attendance event (Phase 2). Backend declines ("info",
// "failure") are rejections, not errors: they drive feedback but no retry.
func (c *Client) Commit(ctx context.Context, req session.CommitRequest) session.AttendanceOutcome {
	payload, err := json.Marshal(commitRequest{
		RecognizedName: req.RecognizedName,
		Gesture:        req.Gesture,
		EmotionalState: req.EmotionalState,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	})
	if err != nil {
		return session.AttendanceOutcome{
			Status:  session.AttendanceTransportError,
			Message: fmt.Sprintf("failed to encode request: %v", err),
		}
	}

	var result commitResponse
	if err := c.postJSON(ctx, "/api/mark-attendance/", payload, &result); err != nil {
		log.WithError(err).Warn("Phase 2 commit failed")
		return session.AttendanceOutcome{
			Status:  session.AttendanceTransportError,
			Message: err.Error(),
		}
	}

	if result.Status == "success" && result.AttendanceType != "" {
		return session.AttendanceOutcome{
			Status:  session.AttendanceCommitted,
			Kind:    session.AttendanceKind(result.AttendanceType),
			Message: result.Message,
			IsLate:  result.IsLate,
		}
	}
	return session.AttendanceOutcome{
		Status:  session.AttendanceRejected,
		Message: result.Message,
	}
}

// RecentActivity fetches the rendered recent-records fragment.
func (c *Client) RecentActivity(ctx context.Context) (string, error) {
	apiURL, err := url.JoinPath(c.cfg.URL, "/api/recent-records/")
	if err != nil {
		return "", fmt.Errorf("failed to create API URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("backend returned error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result activityResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.RecordsHTML, nil
}

// postJSON sends a payload with the anti-forgery token attached, refreshing
// the token once on a 403 before giving up.
func (c *Client) postJSON(ctx context.Context, path string, payload []byte, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.token(ctx, attempt > 0)
		if err != nil {
			return fmt.Errorf("failed to obtain anti-forgery token: %w", err)
		}

		apiURL, err := url.JoinPath(c.cfg.URL, path)
		if err != nil {
			return fmt.Errorf("failed to create API URL: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-CSRFToken", token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}

		if resp.StatusCode == http.StatusForbidden && attempt == 0 {
			resp.Body.Close()
			log.Debug("Backend rejected anti-forgery token, refreshing")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("backend returned error (status %d): %s", resp.StatusCode, string(bodyBytes))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("backend rejected anti-forgery token")
}

// token returns the cached CSRF token, fetching it when missing or forced.
func (c *Client) token(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.csrfToken != "" && !refresh {
		return c.csrfToken, nil
	}

	apiURL, err := url.JoinPath(c.cfg.URL, "/api/csrf/")
	if err != nil {
		return "", fmt.Errorf("failed to create API URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var result csrfResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	c.csrfToken = result.Token
	return c.csrfToken, nil
}

func transportOutcome(message string) session.RecognitionOutcome {
	return session.RecognitionOutcome{
		Status:  session.RecognitionTransportError,
		Message: message,
	}
}
