package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carecall-platform/internal/notify"
	"carecall-platform/internal/recipients"
	"carecall-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// ErrCapacity is returned when the live-call concurrency cap is exhausted.
// The scheduler treats it like any other dispatch failure for logging, but a
// capped call simply waits for its next scheduled occurrence.
var ErrCapacity = errors.New("calls: concurrent call capacity reached")

const (
	activeCallsCapKey = "calls:active"

	// Cap slots self-expire so a crashed process cannot leak capacity forever.
	activeCallsCapTTL = 2 * time.Hour
)

// Store is the persistence contract the lifecycle service needs.
// Satisfied by *Repository.
type Store interface {
	Create(ctx context.Context, recipientID string, scheduledAt time.Time) (Call, error)
	MarkInProgress(ctx context.Context, id, callSID string, startedAt time.Time) error
	MarkFailed(ctx context.Context, id, notes string) error
	ApplyStatus(ctx context.Context, callSID string, to Status, durationSeconds int, now time.Time) (Call, error)
	GetBySID(ctx context.Context, callSID string) (Call, error)
}

// Carrier places and terminates calls at the telephony provider.
type Carrier interface {
	PlaceCall(ctx context.Context, destination, recipientID, agentID string) (string, error)
	EndCall(ctx context.Context, callSID string) error
}

// RecipientReader resolves recipients for notification addressing.
type RecipientReader interface {
	GetByID(ctx context.Context, id string) (recipients.Recipient, error)
}

// Notifier records a caregiver notification. Best-effort.
type Notifier interface {
	Send(ctx context.Context, n notify.Notification) error
}

// Enricher runs the post-call pipeline for a completed call. It also owns
// the in-memory transcript buffer, which must be discarded when a call ends
// without completing.
type Enricher interface {
	ProcessCompletedCall(ctx context.Context, call Call) error
	DiscardTranscript(callSID string)
}

// Service owns the call lifecycle state machine: dispatch, carrier status
// callbacks, and administrative hang-up. It is the only writer of call status.
type Service struct {
	store     Store
	carrier   Carrier
	recReader RecipientReader
	notifier  Notifier
	enricher  Enricher
	rdb       *redis.Client
	agentID   string
	maxActive int
	clock     func() time.Time
}

func NewService(store Store, carrier Carrier, recReader RecipientReader, notifier Notifier, enricher Enricher, rdb *redis.Client, agentID string, maxActive int) *Service {
	if maxActive <= 0 {
		maxActive = 50
	}
	return &Service{
		store:     store,
		carrier:   carrier,
		recReader: recReader,
		notifier:  notifier,
		enricher:  enricher,
		rdb:       rdb,
		agentID:   agentID,
		maxActive: maxActive,
		clock:     time.Now,
	}
}

// Dispatch creates a call record and places the call at the carrier.
// On placement failure the call is marked failed and a call_failed
// notification is emitted. There is no retry inside the tick; the schedule's
// next occurrence retries naturally.
func (s *Service) Dispatch(ctx context.Context, rec recipients.Recipient) (Call, error) {
	if s.rdb != nil {
		ok, err := utils.AcquireConcurrencyCap(ctx, s.rdb, activeCallsCapKey, s.maxActive, activeCallsCapTTL)
		if err != nil {
			slog.Warn("concurrency cap check failed; dispatching anyway", "recipient_id", rec.ID, "error", err)
		} else if !ok {
			return Call{}, ErrCapacity
		}
	}

	now := s.clock().UTC()
	call, err := s.store.Create(ctx, rec.ID, now)
	if err != nil {
		s.releaseCap(ctx)
		return Call{}, fmt.Errorf("create call: %w", err)
	}

	s.sendNotification(ctx, rec, call.ID, notify.TypeCallInitiated,
		fmt.Sprintf("Calling %s now.", rec.DisplayName()))

	sid, err := s.carrier.PlaceCall(ctx, rec.Phone, rec.ID, s.agentID)
	if err != nil {
		slog.Error("call placement failed", "call_id", call.ID, "recipient_id", rec.ID, "error", err)
		if markErr := s.store.MarkFailed(ctx, call.ID, err.Error()); markErr != nil {
			slog.Error("failed to mark call failed", "call_id", call.ID, "error", markErr)
		}
		s.releaseCap(ctx)
		s.sendNotification(ctx, rec, call.ID, notify.TypeCallFailed,
			fmt.Sprintf("The call to %s could not be placed.", rec.DisplayName()))
		return Call{}, err
	}

	if err := s.store.MarkInProgress(ctx, call.ID, sid, s.clock().UTC()); err != nil {
		return Call{}, fmt.Errorf("mark in progress: %w", err)
	}
	call.CallSID = sid
	call.Status = StatusInProgress

	slog.Info("call dispatched", "call_id", call.ID, "call_sid", sid, "recipient_id", rec.ID)
	return call, nil
}

// ApplyStatusCallback drives the state machine from a carrier status webhook.
// Non-terminal statuses are acknowledged without effect (in_progress is set
// at dispatch). Each terminal transition emits exactly one notification of a
// matching type; duplicate callbacks fail the transition check and emit
// nothing.
func (s *Service) ApplyStatusCallback(ctx context.Context, callSID, carrierStatus string, durationSeconds int) (Call, error) {
	to, ok := FromCarrierStatus(carrierStatus)
	if !ok {
		slog.Debug("ignoring carrier status", "call_sid", callSID, "status", carrierStatus)
		return Call{}, nil
	}
	if !to.IsTerminal() {
		return Call{}, nil
	}

	call, err := s.store.ApplyStatus(ctx, callSID, to, durationSeconds, s.clock())
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			slog.Warn("duplicate or late status callback ignored", "call_sid", callSID, "status", carrierStatus)
			return Call{}, nil
		}
		return Call{}, err
	}
	s.releaseCap(ctx)

	rec, recErr := s.recReader.GetByID(ctx, call.RecipientID)
	if recErr != nil {
		slog.Error("recipient lookup failed for notification", "call_id", call.ID, "recipient_id", call.RecipientID, "error", recErr)
	}

	switch to {
	case StatusCompleted:
		s.sendNotification(ctx, rec, call.ID, notify.TypeCallCompleted,
			fmt.Sprintf("The call with %s finished after %d seconds.", rec.DisplayName(), call.DurationSeconds))
		if s.enricher != nil {
			if err := s.enricher.ProcessCompletedCall(ctx, call); err != nil {
				// The pipeline degrades to defaults internally; an error here
				// means even the store write failed. The call stays completed.
				slog.Error("post-call enrichment failed", "call_id", call.ID, "call_sid", callSID, "error", err)
			}
		}
	case StatusMissed:
		s.sendNotification(ctx, rec, call.ID, notify.TypeCallMissed,
			fmt.Sprintf("%s did not answer the call.", rec.DisplayName()))
		if s.enricher != nil {
			s.enricher.DiscardTranscript(callSID)
		}
	case StatusFailed:
		s.sendNotification(ctx, rec, call.ID, notify.TypeCallFailed,
			fmt.Sprintf("The call to %s failed.", rec.DisplayName()))
		if s.enricher != nil {
			s.enricher.DiscardTranscript(callSID)
		}
	}

	slog.Info("call status applied", "call_id", call.ID, "call_sid", callSID, "status", to)
	return call, nil
}

// Hangup requests carrier-side termination of an in-progress call. Bookkeeping
// (terminal status, notification, enrichment) happens when the carrier's
// normal status callback arrives.
func (s *Service) Hangup(ctx context.Context, callSID string) error {
	call, err := s.store.GetBySID(ctx, callSID)
	if err != nil {
		return err
	}
	if call.Status.IsTerminal() {
		return fmt.Errorf("%w: call already %s", ErrInvalidTransition, call.Status)
	}
	return s.carrier.EndCall(ctx, callSID)
}

func (s *Service) sendNotification(ctx context.Context, rec recipients.Recipient, callID string, typ notify.Type, message string) {
	if s.notifier == nil || rec.CaregiverID == "" {
		return
	}
	n := notify.Notification{
		CaregiverID: rec.CaregiverID,
		RecipientID: rec.ID,
		CallID:      callID,
		Type:        typ,
		Message:     message,
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		slog.Error("notification send failed", "call_id", callID, "type", typ, "error", err)
	}
}

func (s *Service) releaseCap(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := utils.ReleaseConcurrencyCap(ctx, s.rdb, activeCallsCapKey); err != nil {
		slog.Warn("concurrency cap release failed", "error", err)
	}
}
