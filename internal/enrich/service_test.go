package enrich

import (
	"context"
	"errors"
	"testing"

	"carecall-platform/internal/calls"
	"carecall-platform/internal/memories"
)

type fakeStore struct {
	saved      bool
	id         string
	transcript string
	summary    string
	sentiment  string
	err        error
}

func (f *fakeStore) SaveEnrichment(ctx context.Context, id, transcript, summary, sentiment string) error {
	f.saved = true
	f.id = id
	f.transcript = transcript
	f.summary = summary
	f.sentiment = sentiment
	return f.err
}

type fakeMemories struct {
	created []memories.Memory
	err     error
}

func (f *fakeMemories) Create(ctx context.Context, m memories.Memory) (memories.Memory, error) {
	f.created = append(f.created, m)
	return m, f.err
}

type fakeTranscripts struct {
	transcript string
	deleted    []string
}

func (f *fakeTranscripts) Flatten(callSID string) string { return f.transcript }
func (f *fakeTranscripts) Delete(callSID string)         { f.deleted = append(f.deleted, callSID) }

type fakeAnalyzer struct {
	analysis Analysis
	err      error
	calls    int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, transcript string) (Analysis, error) {
	f.calls++
	return f.analysis, f.err
}

func testCall() calls.Call {
	return calls.Call{ID: "call-1", RecipientID: "rec-1", CallSID: "CA100"}
}

func TestProcessCompletedCall_FullAnalysis(t *testing.T) {
	store := &fakeStore{}
	mems := &fakeMemories{}
	transcripts := &fakeTranscripts{transcript: "User: I planted tomatoes.\nAgent: Lovely!"}
	analyzer := &fakeAnalyzer{analysis: Analysis{
		Summary:   "Talked about the garden.",
		Sentiment: calls.SentimentPositive,
		Memory: &MemoryCandidate{
			MemoryType:      "preference",
			Content:         "Grows tomatoes in the garden",
			Tags:            []string{"garden"},
			ImportanceScore: 60,
		},
	}}
	svc := NewService(store, mems, transcripts, analyzer)

	if err := svc.ProcessCompletedCall(context.Background(), testCall()); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if store.summary != "Talked about the garden." || store.sentiment != calls.SentimentPositive {
		t.Errorf("stored (%q, %q)", store.summary, store.sentiment)
	}
	if store.transcript != transcripts.transcript {
		t.Errorf("transcript not stored: %q", store.transcript)
	}
	if len(mems.created) != 1 || mems.created[0].Content != "Grows tomatoes in the garden" {
		t.Errorf("memories = %+v", mems.created)
	}
	if mems.created[0].RecipientID != "rec-1" || mems.created[0].CallID != "call-1" {
		t.Errorf("memory not linked to call: %+v", mems.created[0])
	}
	if len(transcripts.deleted) != 1 || transcripts.deleted[0] != "CA100" {
		t.Errorf("transcript buffer not released: %v", transcripts.deleted)
	}
}

func TestProcessCompletedCall_EmptyTranscriptSkipsModel(t *testing.T) {
	store := &fakeStore{}
	mems := &fakeMemories{}
	transcripts := &fakeTranscripts{transcript: "   "}
	analyzer := &fakeAnalyzer{}
	svc := NewService(store, mems, transcripts, analyzer)

	if err := svc.ProcessCompletedCall(context.Background(), testCall()); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if analyzer.calls != 0 {
		t.Error("model must not run on empty transcripts")
	}
	if store.summary != summaryNoContent || store.sentiment != calls.SentimentNeutral {
		t.Errorf("stored (%q, %q)", store.summary, store.sentiment)
	}
	if len(mems.created) != 0 {
		t.Errorf("no memory expected: %+v", mems.created)
	}
	if len(transcripts.deleted) != 1 {
		t.Error("transcript buffer must still be released")
	}
}

func TestProcessCompletedCall_ModelFailureStoresDefaults(t *testing.T) {
	store := &fakeStore{}
	transcripts := &fakeTranscripts{transcript: "User: hello"}
	analyzer := &fakeAnalyzer{err: errors.New("rate limited")}
	svc := NewService(store, &fakeMemories{}, transcripts, analyzer)

	if err := svc.ProcessCompletedCall(context.Background(), testCall()); err != nil {
		t.Fatalf("model failure must not fail the pipeline: %v", err)
	}
	if store.summary != summaryError || store.sentiment != calls.SentimentNeutral {
		t.Errorf("stored (%q, %q)", store.summary, store.sentiment)
	}
	if store.transcript != "User: hello" {
		t.Errorf("raw transcript must still be stored: %q", store.transcript)
	}
}

func TestProcessCompletedCall_FieldDefaulting(t *testing.T) {
	cases := []struct {
		name          string
		analysis      Analysis
		wantSummary   string
		wantSentiment string
		wantMemories  int
	}{
		{
			name:          "all fields missing",
			analysis:      Analysis{},
			wantSummary:   summaryNotAvailable,
			wantSentiment: calls.SentimentNeutral,
		},
		{
			name:          "invalid sentiment",
			analysis:      Analysis{Summary: "ok", Sentiment: "ecstatic"},
			wantSummary:   "ok",
			wantSentiment: calls.SentimentNeutral,
		},
		{
			name:          "memory without content dropped",
			analysis:      Analysis{Summary: "ok", Sentiment: "negative", Memory: &MemoryCandidate{Content: "  "}},
			wantSummary:   "ok",
			wantSentiment: calls.SentimentNegative,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			mems := &fakeMemories{}
			svc := NewService(store, mems, &fakeTranscripts{transcript: "User: hi"}, &fakeAnalyzer{analysis: tc.analysis})

			if err := svc.ProcessCompletedCall(context.Background(), testCall()); err != nil {
				t.Fatalf("process failed: %v", err)
			}
			if store.summary != tc.wantSummary || store.sentiment != tc.wantSentiment {
				t.Errorf("stored (%q, %q), want (%q, %q)", store.summary, store.sentiment, tc.wantSummary, tc.wantSentiment)
			}
			if len(mems.created) != tc.wantMemories {
				t.Errorf("memories = %d, want %d", len(mems.created), tc.wantMemories)
			}
		})
	}
}

func TestProcessCompletedCall_MemorySaveFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{}
	mems := &fakeMemories{err: errors.New("db down")}
	analyzer := &fakeAnalyzer{analysis: Analysis{
		Summary:   "ok",
		Sentiment: calls.SentimentNeutral,
		Memory:    &MemoryCandidate{Content: "fact"},
	}}
	svc := NewService(store, mems, &fakeTranscripts{transcript: "User: hi"}, analyzer)

	if err := svc.ProcessCompletedCall(context.Background(), testCall()); err != nil {
		t.Fatalf("memory failure must not fail the pipeline: %v", err)
	}
	if !store.saved {
		t.Error("summary must still be stored")
	}
}

func TestDiscardTranscript(t *testing.T) {
	transcripts := &fakeTranscripts{}
	svc := NewService(&fakeStore{}, &fakeMemories{}, transcripts, &fakeAnalyzer{})

	svc.DiscardTranscript("CA200")
	if len(transcripts.deleted) != 1 || transcripts.deleted[0] != "CA200" {
		t.Errorf("deleted = %v", transcripts.deleted)
	}
}
