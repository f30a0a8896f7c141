package main

import (
	"carecall-platform/internal/audit"
	"carecall-platform/internal/auth"
	"carecall-platform/internal/bridge"
	"carecall-platform/internal/calls"
	"carecall-platform/internal/carrier"
	"carecall-platform/internal/config"
	"carecall-platform/internal/httpapi"
	"carecall-platform/internal/memories"
	"carecall-platform/internal/notify"
	"carecall-platform/internal/rbac"
	"carecall-platform/internal/recipients"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	cfg           config.Config
	authManager   *auth.Manager
	callService   *calls.Service
	callRepo      *calls.Repository
	recipientRepo *recipients.Repository
	memoryRepo    *memories.Repository
	notifyRepo    *notify.Repository
	auditSvc      *audit.Service
	mediaBridge   *bridge.Handler
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Carrier webhooks and the media stream (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	{
		wh := carrier.WebhookHandler{
			Cfg:        deps.cfg,
			Recipients: deps.recipientRepo,
			Calls:      deps.callService,
		}
		r.POST("/webhooks/twilio/voice", wh.HandleVoice)
		r.POST("/webhooks/twilio/status", wh.HandleStatus)
		r.POST("/webhooks/twilio/sms", wh.HandleSMS)

		r.GET("/media-stream/:call_sid", deps.mediaBridge.HandleMediaStream)
	}

	h := httpapi.Handlers{
		Auth:          deps.authManager,
		Calls:         deps.callService,
		CallHistory:   deps.callRepo,
		Recipients:    deps.recipientRepo,
		Notifications: deps.notifyRepo,
		Memories:      deps.memoryRepo,
		Audit:         deps.auditSvc,
	}

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.authManager))
	v1.Use(httpapi.RequireCaregiverAndAnyRole(rbac.RoleCaregiver)...)
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			cgID, _ := auth.CaregiverID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "caregiver_id": cgID, "role": role})
		})

		v1.POST("/calls/test", h.TestCall)
		v1.POST("/calls/:call_sid/hangup", h.Hangup)
		v1.GET("/calls", h.ListCalls)

		v1.GET("/notifications", h.ListNotifications)
		v1.POST("/notifications/:id/read", h.MarkNotificationRead)

		v1.GET("/recipients/:recipient_id/memories", h.ListMemories)
	}
}
