package bridge

import (
	"strings"
	"sync"
	"time"
)

// Speaker tags a transcript line with who said it.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Entry is one finalized transcript line.
type Entry struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// ConversationStore accumulates transcript lines for live calls, keyed by
// carrier call sid. Entries live in memory only; post-call enrichment reads
// and then deletes them.
type ConversationStore struct {
	mu     sync.Mutex
	byCall map[string][]Entry
	clock  func() time.Time
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		byCall: make(map[string][]Entry),
		clock:  time.Now,
	}
}

// Append records one transcript line. Blank lines are dropped.
func (s *ConversationStore) Append(callSID string, speaker Speaker, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCall[callSID] = append(s.byCall[callSID], Entry{
		Speaker: speaker,
		Text:    text,
		At:      s.clock(),
	})
}

// Entries returns a copy of the transcript so far, in arrival order.
func (s *ConversationStore) Entries(callSID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.byCall[callSID]
	out := make([]Entry, len(src))
	copy(out, src)
	return out
}

// Flatten renders the transcript as speaker-prefixed lines for prompt text.
// An empty transcript flattens to "".
func (s *ConversationStore) Flatten(callSID string) string {
	entries := s.Entries(callSID)
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch e.Speaker {
		case SpeakerAgent:
			b.WriteString("Agent: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(e.Text)
	}
	return b.String()
}

// Delete discards a call's transcript.
func (s *ConversationStore) Delete(callSID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byCall, callSID)
}
