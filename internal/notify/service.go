package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Queue keys consumed by the external delivery worker.
const (
	queueKey   = "notifications:pending"
	pubsubChan = "notifications"
)

var ErrInvalidNotification = errors.New("notify: invalid notification")

// Inserter is the persistence contract; satisfied by *Repository.
type Inserter interface {
	Insert(ctx context.Context, n Notification) error
}

// Service records caregiver notifications and hands them to the external
// delivery mechanism via Redis. Callers should treat notification delivery
// as best-effort: a publish failure is logged, never propagated, because the
// call lifecycle must not depend on it.
type Service struct {
	repo  Inserter
	rdb   *redis.Client
	clock func() time.Time
}

func NewService(repo Inserter, rdb *redis.Client) *Service {
	return &Service{repo: repo, rdb: rdb, clock: time.Now}
}

func (s *Service) Send(ctx context.Context, n Notification) error {
	if s.repo == nil {
		return errors.New("notify: repository not configured")
	}
	if n.CaregiverID == "" {
		return ErrInvalidNotification
	}
	if n.Type == "" {
		return ErrInvalidNotification
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock().UTC()
	}

	if err := s.repo.Insert(ctx, n); err != nil {
		return err
	}
	s.publish(ctx, n)
	return nil
}

func (s *Service) publish(ctx context.Context, n Notification) {
	if s.rdb == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		slog.Error("notification marshal failed", "notification_id", n.ID, "error", err)
		return
	}
	if err := s.rdb.LPush(ctx, queueKey, payload).Err(); err != nil {
		slog.Error("notification queue push failed", "notification_id", n.ID, "error", err)
		return
	}
	if err := s.rdb.Publish(ctx, pubsubChan, n.ID).Err(); err != nil {
		slog.Warn("notification publish failed", "notification_id", n.ID, "error", err)
	}
}
