// Package character holds the sheets players submit for host review.
package character

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mhersch/gametable/internal/platform/id"
)

var (
	// ErrNotFound indicates no character exists with the given ID.
	ErrNotFound = errors.New("character not found")
	// ErrEmptyName indicates a missing character name.
	ErrEmptyName = errors.New("character name is required")
	// ErrEmptyOwner indicates a missing owning participant.
	ErrEmptyOwner = errors.New("character owner is required")
	// ErrStoreNotConfigured indicates missing persistence wiring.
	ErrStoreNotConfigured = errors.New("character store is not configured")
)

// Character is a playable sheet owned by one participant.
type Character struct {
	ID                 string
	OwnerParticipantID string
	Name               string
	Class              string
	Level              int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Store is the persistence boundary for characters.
type Store interface {
	PutCharacter(ctx context.Context, c Character) error
	GetCharacter(ctx context.Context, characterID string) (Character, error)
	ListCharactersByOwner(ctx context.Context, participantID string) ([]Character, error)
}

// CreateInput describes a new character sheet.
type CreateInput struct {
	OwnerParticipantID string
	Name               string
	Class              string
	Level              int
}

// Service exposes character use-cases.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs character use-cases.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{store: store, clock: clock, newID: newID}
}

// Create registers a new character owned by a participant.
func (s *Service) Create(ctx context.Context, input CreateInput) (Character, error) {
	if s == nil || s.store == nil {
		return Character{}, ErrStoreNotConfigured
	}
	input.OwnerParticipantID = strings.TrimSpace(input.OwnerParticipantID)
	if input.OwnerParticipantID == "" {
		return Character{}, ErrEmptyOwner
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Character{}, ErrEmptyName
	}
	if input.Level < 1 {
		input.Level = 1
	}

	characterID, err := s.newID()
	if err != nil {
		return Character{}, fmt.Errorf("generate character id: %w", err)
	}
	now := s.clock().UTC()
	created := Character{
		ID:                 characterID,
		OwnerParticipantID: input.OwnerParticipantID,
		Name:               input.Name,
		Class:              strings.TrimSpace(input.Class),
		Level:              input.Level,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.PutCharacter(ctx, created); err != nil {
		return Character{}, err
	}
	return created, nil
}

// Get loads one character by ID.
func (s *Service) Get(ctx context.Context, characterID string) (Character, error) {
	if s == nil || s.store == nil {
		return Character{}, ErrStoreNotConfigured
	}
	return s.store.GetCharacter(ctx, strings.TrimSpace(characterID))
}

// ListByOwner returns all characters a participant owns.
func (s *Service) ListByOwner(ctx context.Context, participantID string) ([]Character, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return s.store.ListCharactersByOwner(ctx, strings.TrimSpace(participantID))
}
