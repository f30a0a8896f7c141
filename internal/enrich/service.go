package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"carecall-platform/internal/calls"
	"carecall-platform/internal/memories"
)

// Summaries stored when the model produced nothing usable.
const (
	summaryNotAvailable = "Summary not available."
	summaryNoContent    = "The call completed but no conversation was captured."
	summaryError        = "The call completed but the summary could not be generated."
)

// TranscriptSource hands over a call's transcript. Satisfied by
// *bridge.ConversationStore.
type TranscriptSource interface {
	Flatten(callSID string) string
	Delete(callSID string)
}

// Store persists enrichment results on the call row.
type Store interface {
	SaveEnrichment(ctx context.Context, id, transcript, summary, sentiment string) error
}

// MemoryCreator persists extracted memories. Satisfied by
// *memories.Repository.
type MemoryCreator interface {
	Create(ctx context.Context, m memories.Memory) (memories.Memory, error)
}

// Analyzer reviews a transcript. Satisfied by *LLMClient.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (Analysis, error)
}

// Service turns a completed call's transcript into a summary, a sentiment
// label and at most one memory record. Model failures degrade to stored
// defaults; they never fail the call.
type Service struct {
	store       Store
	memories    MemoryCreator
	transcripts TranscriptSource
	llm         Analyzer
}

func NewService(store Store, mems MemoryCreator, transcripts TranscriptSource, llm Analyzer) *Service {
	return &Service{
		store:       store,
		memories:    mems,
		transcripts: transcripts,
		llm:         llm,
	}
}

// ProcessCompletedCall runs the pipeline for one completed call. The
// transcript buffer is released no matter which path runs.
func (s *Service) ProcessCompletedCall(ctx context.Context, call calls.Call) error {
	transcript := s.transcripts.Flatten(call.CallSID)
	defer s.transcripts.Delete(call.CallSID)

	if strings.TrimSpace(transcript) == "" {
		slog.Info("no transcript captured, storing defaults", "call_id", call.ID, "call_sid", call.CallSID)
		return s.save(ctx, call, "", summaryNoContent, calls.SentimentNeutral, nil)
	}

	analysis, err := s.llm.Analyze(ctx, transcript)
	if err != nil {
		slog.Error("transcript analysis failed, storing defaults", "call_id", call.ID, "error", err)
		return s.save(ctx, call, transcript, summaryError, calls.SentimentNeutral, nil)
	}

	summary, sentiment, memory := applyDefaults(analysis)
	return s.save(ctx, call, transcript, summary, sentiment, memory)
}

// DiscardTranscript drops the buffered transcript of a call that ended
// without completing.
func (s *Service) DiscardTranscript(callSID string) {
	s.transcripts.Delete(callSID)
}

// applyDefaults fills in any field the model omitted or got wrong, so a
// partially valid analysis still produces a stored result.
func applyDefaults(a Analysis) (summary, sentiment string, memory *MemoryCandidate) {
	summary = strings.TrimSpace(a.Summary)
	if summary == "" {
		summary = summaryNotAvailable
	}

	switch a.Sentiment {
	case calls.SentimentPositive, calls.SentimentNeutral, calls.SentimentNegative:
		sentiment = a.Sentiment
	default:
		sentiment = calls.SentimentNeutral
	}

	if a.Memory != nil && strings.TrimSpace(a.Memory.Content) != "" {
		memory = a.Memory
	}
	return summary, sentiment, memory
}

func (s *Service) save(ctx context.Context, call calls.Call, transcript, summary, sentiment string, memory *MemoryCandidate) error {
	if err := s.store.SaveEnrichment(ctx, call.ID, transcript, summary, sentiment); err != nil {
		return fmt.Errorf("save enrichment: %w", err)
	}

	if memory != nil && s.memories != nil {
		_, err := s.memories.Create(ctx, memories.Memory{
			RecipientID:     call.RecipientID,
			CallID:          call.ID,
			MemoryType:      memory.MemoryType,
			Content:         memory.Content,
			Tags:            memory.Tags,
			Context:         memory.Context,
			ImportanceScore: memory.ImportanceScore,
		})
		if err != nil {
			// The summary is already stored; a lost memory is not worth
			// failing the callback over.
			slog.Error("memory save failed", "call_id", call.ID, "error", err)
		}
	}

	slog.Info("call enriched", "call_id", call.ID, "sentiment", sentiment, "memory_saved", memory != nil)
	return nil
}
