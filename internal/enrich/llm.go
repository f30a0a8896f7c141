package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"carecall-platform/internal/config"
)

// Analysis is the structured output of one transcript review.
type Analysis struct {
	Summary   string           `json:"summary"`
	Sentiment string           `json:"sentiment"`
	Memory    *MemoryCandidate `json:"memory"`
}

// MemoryCandidate is a durable fact the model proposes saving. At most one
// per call; absence means the call surfaced nothing worth keeping.
type MemoryCandidate struct {
	MemoryType      string   `json:"memory_type"`
	Content         string   `json:"content"`
	Tags            []string `json:"tags"`
	Context         string   `json:"context"`
	ImportanceScore int      `json:"importance_score"`
}

const analysisSystemPrompt = `You review transcripts of wellness check-in calls with elderly recipients.
Respond with a single JSON object and nothing else:
{
  "summary": "2-3 sentence summary of the conversation for the caregiver",
  "sentiment": "positive" | "neutral" | "negative",
  "memory": {
    "memory_type": "health" | "preference" | "family" | "general",
    "content": "one durable fact about the recipient worth remembering",
    "tags": ["short", "tags"],
    "context": "what part of the conversation this came from",
    "importance_score": 0-100
  } or null if nothing durable came up
}`

// LLMClient calls an OpenAI-compatible chat completions endpoint to analyze
// call transcripts.
type LLMClient struct {
	cfg        config.LLMConfig
	httpClient *http.Client
}

func NewLLMClient(cfg config.LLMConfig) *LLMClient {
	return &LLMClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithHTTPClient overrides the HTTP client; used by tests.
func (c *LLMClient) WithHTTPClient(hc *http.Client) *LLMClient {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze reviews one flattened transcript. The returned Analysis is raw
// model output; the caller applies field defaulting.
func (c *LLMClient) Analyze(ctx context.Context, transcript string) (Analysis, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return Analysis{}, fmt.Errorf("enrich: llm api key is required")
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: analysisSystemPrompt},
			{Role: "user", Content: transcript},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return Analysis{}, err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return Analysis{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("enrich: llm request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Analysis{}, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Analysis{}, fmt.Errorf("enrich: llm response unreadable (http %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return Analysis{}, fmt.Errorf("enrich: llm http %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return Analysis{}, fmt.Errorf("enrich: llm response has no choices")
	}

	var analysis Analysis
	content := stripCodeFence(parsed.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("enrich: analysis not valid json: %w", err)
	}
	return analysis, nil
}

// stripCodeFence tolerates models that wrap JSON in a markdown fence despite
// instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
