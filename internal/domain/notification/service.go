package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FanOut persists a batch of notifications in a single insert. Delivery is
// at-most-once: there is no retry, and callers treat a failure here as
// non-fatal relative to the state change that produced the batch.
func (s *Service) FanOut(ctx context.Context, items []*Notification) error {
	for _, n := range items {
		if n.UserID == uuid.Nil {
			return fmt.Errorf("notification user_id is required")
		}
		if !validUserTypes[n.UserType] {
			return fmt.Errorf("invalid notification user type: %s", n.UserType)
		}
		if n.Title == "" {
			return fmt.Errorf("notification title is required")
		}
	}
	return s.repo.CreateBatch(ctx, items)
}

// Get returns a single notification, scoped to its owner. A notification
// belonging to another user reads as absent.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("notification %s: not found", id)
	}
	return n, nil
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
