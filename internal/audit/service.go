package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It MUST be append-only; no Update or Delete exists.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs operator actions on live calls.
//
// Audit is internal-only; these records are not exposed to caregivers.
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ActorUserID == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogManualCall records an operator dispatching a call outside any schedule.
func (s *Service) LogManualCall(ctx context.Context, actorUserID, actorRole, caregiverID, ip, recipientID string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeManualCall,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		CaregiverID: caregiverID,
		IPAddress:   ip,
		RecipientID: recipientID,
		Message:     "manual test call dispatched",
	})
}

// LogHangup records an operator terminating a live call.
func (s *Service) LogHangup(ctx context.Context, actorUserID, actorRole, caregiverID, ip, callSID string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeHangup,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		CaregiverID: caregiverID,
		IPAddress:   ip,
		CallSID:     callSID,
		Message:     "hangup requested",
	})
}
