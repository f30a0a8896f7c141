package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"carecall-platform/internal/config"
)

func llmConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{APIKey: "test-key", BaseURL: baseURL, Model: "gpt-4o-mini"}
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestAnalyze(t *testing.T) {
	var gotAuth, gotModel, gotTranscript string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = req.Model
		gotTranscript = req.Messages[len(req.Messages)-1].Content
		w.Write([]byte(chatReply(`{"summary":"Nice chat about the garden.","sentiment":"positive","memory":{"memory_type":"preference","content":"Grows tomatoes","tags":["garden"],"importance_score":55}}`)))
	}))
	defer srv.Close()

	a, err := NewLLMClient(llmConfig(srv.URL)).Analyze(context.Background(), "User: I planted tomatoes.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotModel != "gpt-4o-mini" {
		t.Errorf("model = %q", gotModel)
	}
	if gotTranscript != "User: I planted tomatoes." {
		t.Errorf("transcript = %q", gotTranscript)
	}
	if a.Summary != "Nice chat about the garden." || a.Sentiment != "positive" {
		t.Errorf("analysis = %+v", a)
	}
	if a.Memory == nil || a.Memory.Content != "Grows tomatoes" || a.Memory.ImportanceScore != 55 {
		t.Errorf("memory = %+v", a.Memory)
	}
}

func TestAnalyze_FencedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply("```json\n{\"summary\":\"ok\",\"sentiment\":\"neutral\",\"memory\":null}\n```")))
	}))
	defer srv.Close()

	a, err := NewLLMClient(llmConfig(srv.URL)).Analyze(context.Background(), "User: hi")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.Summary != "ok" || a.Memory != nil {
		t.Errorf("analysis = %+v", a)
	}
}

func TestAnalyze_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit"}}`))
	}))
	defer srv.Close()

	if _, err := NewLLMClient(llmConfig(srv.URL)).Analyze(context.Background(), "User: hi"); err == nil {
		t.Fatal("expected error for http 429")
	}
}

func TestAnalyze_NonJSONAnalysis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply("The call went well overall.")))
	}))
	defer srv.Close()

	if _, err := NewLLMClient(llmConfig(srv.URL)).Analyze(context.Background(), "User: hi"); err == nil {
		t.Fatal("expected error for non-json analysis")
	}
}

func TestAnalyze_RequiresKey(t *testing.T) {
	c := NewLLMClient(config.LLMConfig{BaseURL: "http://localhost", Model: "m"})
	if _, err := c.Analyze(context.Background(), "User: hi"); err == nil {
		t.Fatal("expected error without api key")
	}
}
