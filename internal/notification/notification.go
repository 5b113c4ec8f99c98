// Package notification persists and delivers per-participant notices,
// such as character submissions awaiting review or review outcomes.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mhersch/gametable/internal/platform/id"
)

// Kind classifies a notification.
type Kind string

const (
	// KindCharacterSubmitted tells a host a character awaits review.
	KindCharacterSubmitted Kind = "CHARACTER_SUBMITTED"
	// KindCharacterApproved tells a player their character was approved.
	KindCharacterApproved Kind = "CHARACTER_APPROVED"
	// KindCharacterRejected tells a player their character was rejected.
	KindCharacterRejected Kind = "CHARACTER_REJECTED"
)

var (
	// ErrNotFound indicates no notification exists with the given ID.
	ErrNotFound = errors.New("notification not found")
	// ErrEmptyRecipient indicates a missing recipient.
	ErrEmptyRecipient = errors.New("notification recipient is required")
	// ErrEmptyTitle indicates a missing title.
	ErrEmptyTitle = errors.New("notification title is required")
	// ErrStoreNotConfigured indicates missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notification store is not configured")
)

// Notification is one notice addressed to one participant.
type Notification struct {
	ID                     string
	RecipientParticipantID string
	Kind                   Kind
	Title                  string
	Body                   string
	SessionID              string
	CharacterID            string
	CreatedAt              time.Time
	ReadAt                 *time.Time
}

// Store is the persistence boundary for notifications.
type Store interface {
	PutNotification(ctx context.Context, n Notification) error
	GetNotification(ctx context.Context, notificationID string) (Notification, error)
	ListNotificationsByRecipient(ctx context.Context, participantID string) ([]Notification, error)
}

// CreateInput describes a new notification.
type CreateInput struct {
	RecipientParticipantID string
	Kind                   Kind
	Title                  string
	Body                   string
	SessionID              string
	CharacterID            string
}

// Service exposes notification use-cases.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs notification use-cases.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{store: store, clock: clock, newID: newID}
}

// Create persists a new unread notification.
func (s *Service) Create(ctx context.Context, input CreateInput) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	input.RecipientParticipantID = strings.TrimSpace(input.RecipientParticipantID)
	if input.RecipientParticipantID == "" {
		return Notification{}, ErrEmptyRecipient
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Notification{}, ErrEmptyTitle
	}

	notificationID, err := s.newID()
	if err != nil {
		return Notification{}, fmt.Errorf("generate notification id: %w", err)
	}
	created := Notification{
		ID:                     notificationID,
		RecipientParticipantID: input.RecipientParticipantID,
		Kind:                   input.Kind,
		Title:                  input.Title,
		Body:                   strings.TrimSpace(input.Body),
		SessionID:              strings.TrimSpace(input.SessionID),
		CharacterID:            strings.TrimSpace(input.CharacterID),
		CreatedAt:              s.clock().UTC(),
	}
	if err := s.store.PutNotification(ctx, created); err != nil {
		return Notification{}, err
	}
	return created, nil
}

// ListByRecipient returns a participant's notifications, newest first.
func (s *Service) ListByRecipient(ctx context.Context, participantID string) ([]Notification, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return s.store.ListNotificationsByRecipient(ctx, strings.TrimSpace(participantID))
}

// MarkRead records the read time of a notification. Marking an already
// read notification again keeps the original read time.
func (s *Service) MarkRead(ctx context.Context, notificationID string) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	n, err := s.store.GetNotification(ctx, strings.TrimSpace(notificationID))
	if err != nil {
		return Notification{}, err
	}
	if n.ReadAt != nil {
		return n, nil
	}
	readAt := s.clock().UTC()
	n.ReadAt = &readAt
	if err := s.store.PutNotification(ctx, n); err != nil {
		return Notification{}, err
	}
	return n, nil
}
