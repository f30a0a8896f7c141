package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"carecall-platform/internal/calls"
	"carecall-platform/internal/recipients"
	"carecall-platform/internal/schedules"
)

// dedupWindow suppresses a second dispatch to the same recipient within an
// hour, no matter how many schedules point at them.
const dedupWindow = 60 * time.Minute

// ScheduleSource lists schedules eligible for dispatch.
type ScheduleSource interface {
	ListActive(ctx context.Context) ([]schedules.Schedule, error)
}

// CallHistory answers whether a recipient was already called recently.
type CallHistory interface {
	HasCallSince(ctx context.Context, recipientID string, since time.Time) (bool, error)
}

// RecipientSource resolves the recipient for a due schedule.
type RecipientSource interface {
	GetByID(ctx context.Context, id string) (recipients.Recipient, error)
}

// Dispatcher places a call. Satisfied by *calls.Service.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec recipients.Recipient) (calls.Call, error)
}

// Scheduler wakes every minute, finds schedules due at that wall-clock
// minute and dispatches calls for them. Distinct recipients dispatch
// concurrently; one recipient never has two dispatches in flight. Missed
// ticks are not replayed.
type Scheduler struct {
	source    ScheduleSource
	history   CallHistory
	recSource RecipientSource
	calls     Dispatcher

	interval time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
}

func New(source ScheduleSource, history CallHistory, recSource RecipientSource, dispatcher Dispatcher) *Scheduler {
	return &Scheduler{
		source:    source,
		history:   history,
		recSource: recSource,
		calls:     dispatcher,
		interval:  time.Minute,
		inFlight:  make(map[string]bool),
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("call scheduler started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			slog.Info("call scheduler stopped")
			return
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick evaluates all active schedules against now and dispatches what is
// due. It returns after all dispatches started this tick have finished, so
// the dedup check in the next tick sees their call records.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	scheds, err := s.source.ListActive(ctx)
	if err != nil {
		slog.Error("schedule listing failed, skipping tick", "error", err)
		return
	}

	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for _, sc := range scheds {
		if sc.TimeOfDay == "" {
			slog.Warn("schedule has no time of day, skipping", "schedule_id", sc.ID, "recipient_id", sc.RecipientID)
			continue
		}
		if !sc.DueAt(now) {
			continue
		}
		if seen[sc.RecipientID] {
			continue
		}
		seen[sc.RecipientID] = true

		if !s.begin(sc.RecipientID) {
			slog.Debug("dispatch already in flight", "recipient_id", sc.RecipientID)
			continue
		}
		wg.Add(1)
		go func(sc schedules.Schedule) {
			defer wg.Done()
			defer s.end(sc.RecipientID)
			s.dispatchDue(ctx, sc, now)
		}(sc)
	}
	wg.Wait()
}

func (s *Scheduler) dispatchDue(ctx context.Context, sc schedules.Schedule, now time.Time) {
	recent, err := s.history.HasCallSince(ctx, sc.RecipientID, now.Add(-dedupWindow))
	if err != nil {
		slog.Error("dedup check failed, skipping schedule", "schedule_id", sc.ID, "recipient_id", sc.RecipientID, "error", err)
		return
	}
	if recent {
		slog.Debug("recipient called within dedup window, skipping", "recipient_id", sc.RecipientID)
		return
	}

	rec, err := s.recSource.GetByID(ctx, sc.RecipientID)
	if err != nil {
		slog.Error("recipient lookup failed, skipping schedule", "schedule_id", sc.ID, "recipient_id", sc.RecipientID, "error", err)
		return
	}

	call, err := s.calls.Dispatch(ctx, rec)
	if err != nil {
		if errors.Is(err, calls.ErrCapacity) {
			slog.Warn("live call cap reached, schedule deferred to its next slot", "recipient_id", rec.ID)
			return
		}
		slog.Error("scheduled dispatch failed", "schedule_id", sc.ID, "recipient_id", rec.ID, "error", err)
		return
	}
	slog.Info("scheduled call dispatched", "schedule_id", sc.ID, "recipient_id", rec.ID, "call_id", call.ID)
}

func (s *Scheduler) begin(recipientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[recipientID] {
		return false
	}
	s.inFlight[recipientID] = true
	return true
}

func (s *Scheduler) end(recipientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, recipientID)
}
