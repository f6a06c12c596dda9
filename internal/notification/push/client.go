// Package push provides the HTTP client for the external push-notification
// provider.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

type pushRequest struct {
	AgencyID string          `json:"agencyId"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
}

// NewClient returns nil when the provider is not configured; a nil client
// silently drops sends.
func NewClient(cfg config.PushConfig, log *logger.Logger) *Client {
	if !cfg.IsPushEnabled() {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetPushURL(), "/"),
		apiKey:  cfg.GetPushAPIKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Send delivers one notification payload to the provider.
func (c *Client) Send(ctx context.Context, agencyID uuid.UUID, kind string, payload json.RawMessage) error {
	if c == nil {
		return nil
	}

	body, err := json.Marshal(pushRequest{
		AgencyID: agencyID.String(),
		Kind:     kind,
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/notify", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push provider returned %d: %s", resp.StatusCode, string(snippet))
	}

	return nil
}
