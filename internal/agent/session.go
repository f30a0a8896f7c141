package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// SessionParams personalizes a conversation before the first exchange.
type SessionParams struct {
	// AgentID overrides the configured default agent when set.
	AgentID string
	// UserName is how the agent addresses the person on the call.
	UserName string
	// Context is free-form background the agent folds into its prompt.
	Context string
}

// Callbacks receive server events. All callbacks are invoked from the
// session's single read loop; nil callbacks are skipped.
type Callbacks struct {
	// OnAudio receives base64-encoded audio to play to the caller.
	OnAudio func(audioB64 string)
	// OnUserTranscript receives finalized transcriptions of caller speech.
	OnUserTranscript func(text string)
	// OnAgentResponse receives the agent's spoken replies as text.
	OnAgentResponse func(text string)
}

// Session is a live websocket conversation with the voice agent.
//
// After StartSession returns, the session is connected but not yet ready:
// the agent acknowledges the initiation payload asynchronously. Callers
// must hold audio until Ready() is closed.
type Session struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// StartSession mints a signed URL, dials the agent websocket, sends the
// initiation payload and starts the event read loop.
func (c *Client) StartSession(ctx context.Context, params SessionParams, cb Callbacks) (*Session, error) {
	signedURL, err := c.SignedURL(ctx, params.AgentID)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("agent: dial: %w", err)
	}

	s := &Session{
		conn:  conn,
		log:   slog.Default().With("component", "agent"),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}

	if err := s.writeJSON(initiationPayload(params)); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("agent: initiation: %w", err)
	}

	go s.readLoop(cb)
	return s, nil
}

func initiationPayload(params SessionParams) map[string]any {
	payload := map[string]any{
		"type": "conversation_initiation_client_data",
	}
	if params.UserName != "" {
		payload["dynamic_variables"] = map[string]any{
			"user_name": params.UserName,
		}
	}
	if params.Context != "" {
		payload["conversation_config_override"] = map[string]any{
			"agent": map[string]any{
				"prompt": map[string]any{
					"prompt": params.Context,
				},
			},
		}
	}
	return payload
}

// Ready is closed once the agent has acknowledged the conversation and will
// accept audio.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Done is closed when the websocket is gone, whichever side ended it.
func (s *Session) Done() <-chan struct{} { return s.done }

// SendAudio forwards one base64-encoded caller audio chunk to the agent.
func (s *Session) SendAudio(audioB64 string) error {
	if audioB64 == "" {
		return nil
	}
	return s.writeJSON(map[string]any{"user_audio_chunk": audioB64})
}

// Close tears down the websocket. Safe to call more than once and from any
// goroutine.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

type serverEvent struct {
	Type string `json:"type"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
	} `json:"audio_event"`

	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event"`

	PingEvent *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event"`
}

func (s *Session) readLoop(cb Callbacks) {
	defer close(s.done)
	defer s.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.ready:
				// Normal teardown path once the conversation was live.
			default:
				s.log.Warn("agent socket closed before ready", "err", err)
			}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Warn("unreadable agent event skipped", "err", err)
			continue
		}

		switch ev.Type {
		case "conversation_initiation_metadata":
			s.readyOnce.Do(func() { close(s.ready) })

		case "audio":
			if ev.AudioEvent != nil && cb.OnAudio != nil {
				cb.OnAudio(ev.AudioEvent.AudioBase64)
			}

		case "user_transcript":
			if ev.UserTranscriptionEvent != nil && cb.OnUserTranscript != nil {
				cb.OnUserTranscript(ev.UserTranscriptionEvent.UserTranscript)
			}

		case "agent_response":
			if ev.AgentResponseEvent != nil && cb.OnAgentResponse != nil {
				cb.OnAgentResponse(ev.AgentResponseEvent.AgentResponse)
			}

		case "ping":
			// Answered inline so the agent's keepalive never times out
			// behind queued audio writes.
			if ev.PingEvent != nil {
				if err := s.writeJSON(map[string]any{
					"type":     "pong",
					"event_id": ev.PingEvent.EventID,
				}); err != nil {
					s.log.Warn("pong write failed", "event_id", ev.PingEvent.EventID, "err", err)
				}
			}

		case "interruption", "vad_score", "internal_tentative_agent_response":
			s.log.Debug("agent event ignored", "type", ev.Type)

		default:
			s.log.Debug("unknown agent event", "type", ev.Type)
		}
	}
}
