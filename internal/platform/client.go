// Package platform talks to the chat platform's REST API: channel
// listings, slowmode updates, message deletion, and notifications.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 15 * time.Second

// APIError reports a non-2xx platform response.
type APIError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform api error: status=%d method=%s path=%s body=%q",
		e.Status, e.Method, e.Path, e.Body)
}

// IsNotFound reports whether err is a platform 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client implements interfaces.Platform against a REST API. All requests
// pass through a shared rate limiter so slowmode sweeps cannot trip the
// platform's request quota.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a platform client. requestsPerSec bounds the steady
// request rate; burst allows short spikes during scheduler ticks.
func NewClient(baseURL, token string, requestsPerSec float64, burst int) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), burst),
	}
}

type channelInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ListWatchableChannels returns the ids of text channels visible to the
// bot in a tenant, as a set for membership checks.
func (c *Client) ListWatchableChannels(ctx context.Context, tenantID string) (map[string]struct{}, error) {
	var channels []channelInfo
	err := c.do(ctx, http.MethodGet, "/tenants/"+tenantID+"/channels", nil, &channels)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		if ch.Type == "text" || ch.Type == "" {
			ids[ch.ID] = struct{}{}
		}
	}
	return ids, nil
}

// SetChannelSlowmode applies a slowmode interval in seconds to a channel.
func (c *Client) SetChannelSlowmode(ctx context.Context, channelID string, seconds int) error {
	body := map[string]interface{}{"rate_limit_per_user": seconds}
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID, body, nil)
}

// DeleteMessage removes a message, typically an expired menu prompt.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+channelID+"/messages/"+messageID, nil, nil)
}

// Notify posts a message to a channel and returns the created message id.
func (c *Client) Notify(ctx context.Context, channelID string, payload map[string]interface{}) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", payload, &created)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Status: resp.StatusCode,
			Method: method,
			Path:   path,
			Body:   string(data),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
