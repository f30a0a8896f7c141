package carrier

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"carecall-platform/internal/calls"
	"carecall-platform/internal/config"
	"carecall-platform/internal/recipients"
	"carecall-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Stream parameter names passed to the media bridge via the carrier.
const (
	ParamRecipientName = "recipient_name"
	ParamContext       = "context"
)

// Fixed SMS keyword sets. Matching is case-insensitive and exact.
var (
	optOutKeywords = map[string]struct{}{
		"STOP": {}, "STOPALL": {}, "UNSUBSCRIBE": {}, "CANCEL": {}, "END": {}, "QUIT": {},
	}
	optInKeywords = map[string]struct{}{
		"START": {}, "YES": {}, "UNSTOP": {},
	}
	helpKeywords = map[string]struct{}{
		"HELP": {}, "INFO": {},
	}
)

const (
	optOutReply = "You have been unsubscribed from care call updates. No more messages will be sent. Reply START to resubscribe."
	optInReply  = "You are subscribed to care call updates again. Reply HELP for help or STOP to unsubscribe."
	helpReply   = "Care call updates: reply STOP to unsubscribe, START to resubscribe. Msg&Data rates may apply."
)

// StatusApplier drives the call lifecycle from status callbacks.
// Satisfied by *calls.Service.
type StatusApplier interface {
	ApplyStatusCallback(ctx context.Context, callSID, carrierStatus string, durationSeconds int) (calls.Call, error)
}

// RecipientReader resolves the recipient named in the voice webhook query.
type RecipientReader interface {
	GetByID(ctx context.Context, id string) (recipients.Recipient, error)
}

// WebhookHandler translates carrier webhooks into internal calls and TwiML.
// No business logic here beyond response shaping.
type WebhookHandler struct {
	Cfg        config.Config
	Recipients RecipientReader
	Calls      StatusApplier
}

// HandleVoice answers the carrier's instruction fetch for an outbound call:
// it directs the carrier to open a bidirectional media stream to this
// process, forwarding the recipient's preferred name and personalization
// context as stream parameters.
func (h WebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	callSID := c.PostForm("CallSid")
	if callSID == "" {
		callSID = c.Query("CallSid")
	}
	recipientID := c.Query("recipient_id")
	if callSID == "" || recipientID == "" {
		log.Warn("voice webhook missing identifiers", "call_sid", callSID, "recipient_id", recipientID)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CallSid and recipient_id required"})
		return
	}

	var params []StreamParameter
	if h.Recipients != nil {
		rec, err := h.Recipients.GetByID(c.Request.Context(), recipientID)
		if err != nil {
			// Proceed without personalization rather than rejecting the call.
			log.Error("recipient lookup failed for voice webhook", "recipient_id", recipientID, "err", err)
		} else {
			params = append(params,
				StreamParameter{Name: ParamRecipientName, Value: rec.DisplayName()},
				StreamParameter{Name: ParamContext, Value: rec.PersonalizationContext()},
			)
		}
	}

	twiml, err := RenderStreamTwiML(h.Cfg.MediaStreamURL(callSID), params)
	if err != nil {
		log.Error("stream twiml render failed", "call_sid", callSID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}

	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

// HandleStatus receives {CallSid, CallStatus, CallDuration} lifecycle events.
// It always acknowledges with 200 so the carrier does not retry; failures are
// logged and resolved out of band.
func (h WebhookHandler) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	callSID := c.PostForm("CallSid")
	status := c.PostForm("CallStatus")
	if callSID == "" || status == "" {
		log.Warn("status webhook missing fields", "call_sid", callSID, "status", status)
		c.Status(http.StatusOK)
		return
	}

	duration := 0
	if d := c.PostForm("CallDuration"); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			duration = n
		}
	}

	if h.Calls != nil {
		if _, err := h.Calls.ApplyStatusCallback(c.Request.Context(), callSID, status, duration); err != nil {
			log.Error("status callback apply failed", "call_sid", callSID, "status", status, "err", err)
		}
	}
	c.Status(http.StatusOK)
}

// HandleSMS answers inbound SMS with carrier auto-responses for the standard
// opt-out/opt-in/help keywords, and with an empty response otherwise.
func (h WebhookHandler) HandleSMS(c *gin.Context) {
	log := logger.FromGin(c)

	body := strings.ToUpper(strings.TrimSpace(c.PostForm("Body")))
	from := c.PostForm("From")

	reply := ""
	switch {
	case keywordMatch(optOutKeywords, body):
		reply = optOutReply
	case keywordMatch(optInKeywords, body):
		reply = optInReply
	case keywordMatch(helpKeywords, body):
		reply = helpReply
	}
	if reply != "" {
		log.Info("sms keyword auto-response", "from", from, "keyword", body)
	}

	twiml, err := RenderSMSReplyTwiML(reply)
	if err != nil {
		log.Error("sms twiml render failed", "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

func keywordMatch(set map[string]struct{}, body string) bool {
	_, ok := set[body]
	return ok
}
