package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carecall-platform/internal/config"
)

// Client talks to the ElevenLabs conversational agent API.
//
// The HTTP side only mints signed websocket URLs; everything else happens on
// the websocket session (see session.go).
type Client struct {
	cfg        config.AgentConfig
	httpClient *http.Client
}

func NewClient(cfg config.AgentConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient overrides the HTTP client; used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// SignedURL requests a short-lived authenticated websocket URL for agentID.
// An empty agentID falls back to the configured default agent.
func (c *Client) SignedURL(ctx context.Context, agentID string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("agent: api key is required")
	}
	if agentID = strings.TrimSpace(agentID); agentID == "" {
		agentID = c.cfg.AgentID
	}
	if agentID == "" {
		return "", fmt.Errorf("agent: agent id is required")
	}

	endpoint := fmt.Sprintf("%s/v1/convai/conversation/get-signed-url?agent_id=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.QueryEscape(agentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent: signed url request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agent: signed url http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("agent: signed url response unreadable: %w", err)
	}
	if parsed.SignedURL == "" {
		return "", fmt.Errorf("agent: signed url response missing signed_url")
	}
	return parsed.SignedURL, nil
}
