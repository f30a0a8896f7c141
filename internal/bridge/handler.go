package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"carecall-platform/internal/agent"
	"carecall-platform/internal/carrier"
	"carecall-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const carrierWriteTimeout = 5 * time.Second

// Session is the slice of an agent conversation the bridge needs.
// Satisfied by *agent.Session.
type Session interface {
	Ready() <-chan struct{}
	Done() <-chan struct{}
	SendAudio(audioB64 string) error
	Close() error
}

// SessionStarter opens agent conversations.
type SessionStarter interface {
	StartSession(ctx context.Context, params agent.SessionParams, cb agent.Callbacks) (Session, error)
}

// AgentStarter adapts *agent.Client to SessionStarter.
type AgentStarter struct {
	Client *agent.Client
}

func (a AgentStarter) StartSession(ctx context.Context, params agent.SessionParams, cb agent.Callbacks) (Session, error) {
	s, err := a.Client.StartSession(ctx, params, cb)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Handler relays audio between a carrier media stream and a voice agent
// session, one websocket connection per live call.
type Handler struct {
	Agent         SessionStarter
	Conversations *ConversationStore

	upgrader websocket.Upgrader
}

func NewHandler(starter SessionStarter, conversations *ConversationStore) *Handler {
	return &Handler{
		Agent:         starter,
		Conversations: conversations,
		upgrader: websocket.Upgrader{
			// The carrier dials from its own cloud; there is no browser
			// origin to enforce.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// carrierEvent is the inbound media stream message envelope.
type carrierEvent struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`

	Start *struct {
		StreamSid        string            `json:"streamSid"`
		CallSid          string            `json:"callSid"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start"`

	Media *struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type outboundMedia struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// HandleMediaStream upgrades the carrier's connection and runs the relay
// until either side hangs up.
func (h *Handler) HandleMediaStream(c *gin.Context) {
	log := logger.FromGin(c).With("component", "bridge", "call_sid", c.Param("call_sid"))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("media stream upgrade failed", "err", err)
		return
	}

	h.run(c.Request.Context(), c.Param("call_sid"), conn, log)
}

func (h *Handler) run(parent context.Context, callSID string, conn *websocket.Conn, log *slog.Logger) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer conn.Close()

	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(carrierWriteTimeout))
		return conn.WriteJSON(v)
	}

	var (
		sess      Session
		streamSid string
		pending   []string
		flushed   bool
		bufMu     sync.Mutex
	)
	// The transcript outlives the socket: enrichment reads it when the
	// terminal status callback lands, and deletes it afterwards.
	defer func() {
		if sess != nil {
			_ = sess.Close()
		}
	}()

	// Forwards one caller chunk, or buffers it while the agent session is
	// still bootstrapping. Buffered chunks flush in arrival order.
	forward := func(payload string) {
		bufMu.Lock()
		defer bufMu.Unlock()
		if sess == nil || !flushed {
			pending = append(pending, payload)
			return
		}
		if err := sess.SendAudio(payload); err != nil {
			log.Warn("caller audio forward failed", "err", err)
		}
	}
	flush := func() {
		bufMu.Lock()
		defer bufMu.Unlock()
		for _, p := range pending {
			if err := sess.SendAudio(p); err != nil {
				log.Warn("buffered audio flush failed", "err", err)
				break
			}
		}
		pending = nil
		flushed = true
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info("carrier stream closed", "err", err)
			return
		}

		var ev carrierEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Warn("unreadable carrier frame skipped", "err", err)
			continue
		}

		switch ev.Event {
		case "connected":
			log.Debug("carrier stream connected")

		case "start":
			if ev.Start == nil {
				log.Warn("start event without start payload")
				continue
			}
			if sess != nil {
				log.Warn("duplicate start event ignored")
				continue
			}
			streamSid = ev.Start.StreamSid
			if ev.Start.CallSid != "" {
				callSID = ev.Start.CallSid
				log = log.With("call_sid", callSID)
			}

			params := agent.SessionParams{
				UserName: ev.Start.CustomParameters[carrier.ParamRecipientName],
				Context:  ev.Start.CustomParameters[carrier.ParamContext],
			}
			sid := callSID
			started, err := h.Agent.StartSession(ctx, params, agent.Callbacks{
				OnAudio: func(b64 string) {
					out := outboundMedia{Event: "media", StreamSid: streamSid}
					out.Media.Payload = b64
					if err := writeJSON(out); err != nil {
						log.Warn("agent audio relay failed", "err", err)
					}
				},
				OnUserTranscript: func(text string) {
					h.Conversations.Append(sid, SpeakerUser, text)
				},
				OnAgentResponse: func(text string) {
					h.Conversations.Append(sid, SpeakerAgent, text)
				},
			})
			if err != nil {
				log.Error("agent session start failed", "err", err)
				return
			}
			sess = started
			log.Info("media stream started", "stream_sid", streamSid, "user_name", params.UserName)

			go func() {
				select {
				case <-started.Ready():
					flush()
				case <-started.Done():
				case <-ctx.Done():
				}
			}()
			go func() {
				select {
				case <-started.Done():
					// Agent hangup closes the carrier leg too.
					conn.Close()
				case <-ctx.Done():
				}
			}()

		case "media":
			if ev.Media == nil || ev.Media.Payload == "" {
				continue
			}
			forward(ev.Media.Payload)

		case "stop":
			log.Info("media stream stopped", "stream_sid", streamSid)
			return

		default:
			log.Debug("carrier event ignored", "event", ev.Event)
		}
	}
}
