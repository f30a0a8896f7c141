package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"carecall-platform/internal/audit"
	"carecall-platform/internal/auth"
	"carecall-platform/internal/calls"
	"carecall-platform/internal/memories"
	"carecall-platform/internal/notify"
	"carecall-platform/internal/rbac"
	"carecall-platform/internal/recipients"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

// CallService is the lifecycle surface exposed over HTTP.
// Satisfied by *calls.Service.
type CallService interface {
	Dispatch(ctx context.Context, rec recipients.Recipient) (calls.Call, error)
	Hangup(ctx context.Context, callSID string) error
}

// CallReader lists call history. Satisfied by *calls.Repository.
type CallReader interface {
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]calls.Call, error)
}

// RecipientReader resolves recipients for dispatch and scope checks.
type RecipientReader interface {
	GetByID(ctx context.Context, id string) (recipients.Recipient, error)
}

// NotificationStore is the caregiver-facing notification surface.
type NotificationStore interface {
	ListByCaregiver(ctx context.Context, caregiverID string, limit int) ([]notify.Notification, error)
	MarkRead(ctx context.Context, caregiverID, id string) error
}

// MemoryReader lists extracted memories. Satisfied by *memories.Repository.
type MemoryReader interface {
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]memories.Memory, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth          *auth.Manager
	Calls         CallService
	CallHistory   CallReader
	Recipients    RecipientReader
	Notifications NotificationStore
	Memories      MemoryReader

	// Audit is optional; logging failures never block the request.
	Audit *audit.Service
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id"`
	CaregiverID string `json:"caregiver_id"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.CaregiverID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, caregiver_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.CaregiverID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type testCallRequest struct {
	RecipientID string `json:"recipient_id"`
	// PhoneNumber overrides the recipient's stored number when set.
	PhoneNumber string `json:"phone_number"`
}

// TestCall dispatches an immediate call to one recipient, outside any
// schedule. Meant for trying out a recipient's profile after editing it.
func (h Handlers) TestCall(c *gin.Context) {
	var req testCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.RecipientID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "recipient_id required"})
		return
	}

	rec, ok := h.scopedRecipient(c, req.RecipientID)
	if !ok {
		return
	}
	if req.PhoneNumber != "" {
		rec.Phone = req.PhoneNumber
	}

	if h.Audit != nil {
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		if err := h.Audit.LogManualCall(c.Request.Context(), userID, role, rec.CaregiverID, c.ClientIP(), rec.ID); err != nil {
			slog.Warn("audit write failed", "type", "manual_call", "error", err)
		}
	}

	call, err := h.Calls.Dispatch(c.Request.Context(), rec)
	if err != nil {
		if errors.Is(err, calls.ErrCapacity) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "live call capacity reached, try again shortly"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "call could not be placed"})
		return
	}
	c.JSON(http.StatusCreated, call)
}

// Hangup requests carrier-side termination of an in-progress call.
func (h Handlers) Hangup(c *gin.Context) {
	callSID := c.Param("call_sid")
	if callSID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_sid required"})
		return
	}

	if h.Audit != nil {
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		caregiverID, _ := auth.CaregiverID(c.Request.Context())
		if err := h.Audit.LogHangup(c.Request.Context(), userID, role, caregiverID, c.ClientIP(), callSID); err != nil {
			slog.Warn("audit write failed", "type", "hangup_request", "error", err)
		}
	}

	if err := h.Calls.Hangup(c.Request.Context(), callSID); err != nil {
		switch {
		case errors.Is(err, calls.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		case errors.Is(err, calls.ErrInvalidTransition):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already ended"})
		default:
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "hangup failed"})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"call_sid": callSID, "status": "hangup_requested"})
}

// ListCalls returns one recipient's call history, newest first.
func (h Handlers) ListCalls(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "recipient_id required"})
		return
	}
	if _, ok := h.scopedRecipient(c, recipientID); !ok {
		return
	}

	out, err := h.CallHistory.ListByRecipient(c.Request.Context(), recipientID, listLimit(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

// --- Notifications ---

// ListNotifications returns the caller's notifications, newest first.
func (h Handlers) ListNotifications(c *gin.Context) {
	caregiverID, err := auth.CaregiverID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "caregiver_id required"})
		return
	}

	out, err := h.Notifications.ListByCaregiver(c.Request.Context(), caregiverID, listLimit(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notification listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

// MarkNotificationRead marks one of the caller's notifications as read.
func (h Handlers) MarkNotificationRead(c *gin.Context) {
	caregiverID, err := auth.CaregiverID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "caregiver_id required"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	if err := h.Notifications.MarkRead(c.Request.Context(), caregiverID, id); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "mark read failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Memories ---

// ListMemories returns the durable facts extracted for one recipient.
func (h Handlers) ListMemories(c *gin.Context) {
	recipientID := c.Param("recipient_id")
	if _, ok := h.scopedRecipient(c, recipientID); !ok {
		return
	}

	out, err := h.Memories.ListByRecipient(c.Request.Context(), recipientID, listLimit(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "memory listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": out})
}

// scopedRecipient resolves a recipient and enforces that the caller may see
// them: caregivers only reach their own recipients, admins reach all.
func (h Handlers) scopedRecipient(c *gin.Context, recipientID string) (recipients.Recipient, bool) {
	rec, err := h.Recipients.GetByID(c.Request.Context(), recipientID)
	if err != nil {
		if errors.Is(err, recipients.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "recipient lookup failed"})
		}
		return recipients.Recipient{}, false
	}

	role, _ := auth.Role(c.Request.Context())
	if rbac.IsAdmin(role) {
		return rec, true
	}
	caregiverID, err := auth.CaregiverID(c.Request.Context())
	if err != nil || rec.CaregiverID != caregiverID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return recipients.Recipient{}, false
	}
	return rec, true
}

func listLimit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			return n
		}
	}
	return defaultListLimit
}

// Convenience middleware bundles.

func RequireCaregiverAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireCaregiverScope(), rbac.RequireAnyRole(roles...)}
}
