package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carecall-platform/internal/config"

	"github.com/google/uuid"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// Client wraps outbound call initiation and SMS at the telephony carrier.
//
// Without credentials it runs in simulation mode: call and message sids are
// fabricated and logged instead of dialed, so the rest of the system works in
// development without a live carrier account.
type Client struct {
	cfg        config.TwilioConfig
	app        config.AppConfig
	httpClient *http.Client
	apiBase    string
}

func NewClient(cfg config.TwilioConfig, app config.AppConfig) *Client {
	return &Client{
		cfg:        cfg,
		app:        app,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiBase:    twilioAPIBase,
	}
}

// WithAPIBase overrides the carrier API endpoint; used by tests.
func (c *Client) WithAPIBase(base string) *Client {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
		c.apiBase = base
	}
	return c
}

func (c *Client) Simulated() bool { return !c.cfg.Configured() }

// PlaceCall dials destination and returns the carrier call sid. The carrier
// fetches call-control instructions from the voice webhook URL (which carries
// the recipient and agent identifiers) and reports lifecycle events to the
// status callback URL.
func (c *Client) PlaceCall(ctx context.Context, destination, recipientID, agentID string) (string, error) {
	to, err := NormalizePhone(destination)
	if err != nil {
		return "", err
	}

	voiceURL := fmt.Sprintf("%s/webhooks/twilio/voice?recipient_id=%s&agent_id=%s",
		c.app.PublicBaseURL, url.QueryEscape(recipientID), url.QueryEscape(agentID))
	statusURL := c.app.PublicBaseURL + "/webhooks/twilio/status"

	if c.Simulated() {
		sid := simulatedSID("SIM")
		slog.Info("simulation mode: call not dialed",
			"call_sid", sid, "to", to, "recipient_id", recipientID, "voice_url", voiceURL)
		return sid, nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Url", voiceURL)
	form.Set("StatusCallback", statusURL)
	form.Add("StatusCallbackEvent", "completed")
	form.Add("StatusCallbackEvent", "no-answer")

	sid, err := c.post(ctx, "/Calls.json", form)
	if err != nil {
		return "", fmt.Errorf("place call to %s: %w", to, err)
	}
	return sid, nil
}

// SendSMS sends a text message and returns the carrier message sid.
func (c *Client) SendSMS(ctx context.Context, destination, body string) (string, error) {
	to, err := NormalizePhone(destination)
	if err != nil {
		return "", err
	}

	if c.Simulated() {
		sid := simulatedSID("SIMSMS")
		slog.Info("simulation mode: sms not sent", "message_sid", sid, "to", to, "body", body)
		return sid, nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Body", body)

	sid, err := c.post(ctx, "/Messages.json", form)
	if err != nil {
		return "", fmt.Errorf("send sms to %s: %w", to, err)
	}
	return sid, nil
}

// EndCall asks the carrier to terminate an in-progress call. The terminal
// status callback that follows closes out bookkeeping.
func (c *Client) EndCall(ctx context.Context, callSID string) error {
	if c.Simulated() {
		slog.Info("simulation mode: call not terminated", "call_sid", callSID)
		return nil
	}

	form := url.Values{}
	form.Set("Status", "completed")
	if _, err := c.post(ctx, "/Calls/"+url.PathEscape(callSID)+".json", form); err != nil {
		return fmt.Errorf("end call %s: %w", callSID, err)
	}
	return nil
}

type twilioAPIResponse struct {
	SID     string `json:"sid"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  any    `json:"status"`
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (string, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s%s", c.apiBase, c.cfg.AccountSID, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed twilioAPIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("carrier response unreadable (http %d)", resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		logCarrierErrorGuidance(parsed.Code)
		return "", fmt.Errorf("carrier error %d: %s", parsed.Code, parsed.Message)
	}
	return parsed.SID, nil
}

// logCarrierErrorGuidance surfaces actionable guidance for the two carrier
// error classes operators hit most in practice.
func logCarrierErrorGuidance(code int) {
	switch code {
	case 21219:
		slog.Warn("carrier rejected call: trial accounts can only dial verified numbers",
			"carrier_code", code,
			"guidance", "verify the destination in the Twilio console or upgrade the account")
	case 21215:
		slog.Warn("carrier rejected call: geographic permissions not enabled for this destination",
			"carrier_code", code,
			"guidance", "enable the destination country under Voice Geographic Permissions")
	}
}

func simulatedSID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
