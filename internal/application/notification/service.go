package notification

import (
	"context"
	"errors"
	"time"

	"github.com/go-pregnancy-family/internal/domain"
	"github.com/go-pregnancy-family/internal/pkg/id"
)

// DefaultListLimit caps how many unread notifications one listing returns.
const DefaultListLimit = 50

type Service interface {
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
	// Broadcast stores one notification per recipient. The first store failure is returned
	// after every recipient has been attempted.
	Broadcast(ctx context.Context, familyID string, recipients []string, kind domain.NotificationKind, message string) error
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	ListUnread(ctx context.Context, userID string, limit int32) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
}

type service struct {
	repo  notificationStore
	now   func() time.Time
	newID id.Generator
}

type ServiceDeps struct {
	Repo  notificationStore
	Now   func() time.Time
	NewID id.Generator
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.Repo, now: deps.Now, newID: deps.NewID}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = id.New
	}
	return s
}

func (s *service) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	list, err := s.repo.ListUnread(ctx, userID, DefaultListLimit)
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	return list, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	n, err := s.repo.MarkRead(ctx, userID, notificationID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotificationNotFound
	}
	if err != nil {
		return nil, domain.StoreFailure(err)
	}
	return n, nil
}

func (s *service) Broadcast(ctx context.Context, familyID string, recipients []string, kind domain.NotificationKind, message string) error {
	now := s.now().UTC()
	var first error
	for _, uid := range recipients {
		n := &domain.Notification{
			NotificationID: s.newID(),
			UserID:         uid,
			FamilyID:       familyID,
			Kind:           kind,
			Message:        message,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.repo.Put(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
