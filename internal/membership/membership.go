// Package membership tracks which participants belong to a session, their
// role at the table, and the approval state of their character submission.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mhersch/gametable/internal/approval"
	"github.com/mhersch/gametable/internal/platform/id"
)

// Role describes a participant's privileges within a session.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleHost runs the session: story control, approvals, decisions.
	RoleHost
	// RolePlayer is a regular participant with a character.
	RolePlayer
)

// String returns the persisted representation of a role.
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "HOST"
	case RolePlayer:
		return "PLAYER"
	default:
		return "UNSPECIFIED"
	}
}

// RoleFromString parses a persisted role value.
func RoleFromString(value string) Role {
	switch value {
	case "HOST":
		return RoleHost
	case "PLAYER":
		return RolePlayer
	default:
		return RoleUnspecified
	}
}

var (
	// ErrNotFound indicates the participant is not a session member.
	ErrNotFound = errors.New("membership not found")
	// ErrConflict indicates the participant already joined the session.
	ErrConflict = errors.New("participant already in session")
	// ErrEmptySessionID indicates a missing session ID.
	ErrEmptySessionID = errors.New("session id is required")
	// ErrEmptyParticipantID indicates a missing participant ID.
	ErrEmptyParticipantID = errors.New("participant id is required")
	// ErrInvalidRole indicates a missing or invalid role.
	ErrInvalidRole = errors.New("membership role is required")
	// ErrStoreNotConfigured indicates missing persistence wiring.
	ErrStoreNotConfigured = errors.New("membership store is not configured")
)

// Membership is one participant's seat at one session's table. The approval
// portion is embedded: it exists only as part of the membership record.
type Membership struct {
	ID            string
	SessionID     string
	ParticipantID string
	DisplayName   string
	Role          Role
	Approval      approval.State
	JoinedAt      time.Time
	UpdatedAt     time.Time
}

// Store is the persistence boundary for membership records.
type Store interface {
	PutMembership(ctx context.Context, m Membership) error
	GetMembership(ctx context.Context, sessionID, participantID string) (Membership, error)
	GetMembershipByID(ctx context.Context, membershipID string) (Membership, error)
	ListMemberships(ctx context.Context, sessionID string) ([]Membership, error)
	CountMembershipsByRole(ctx context.Context, sessionID string, role Role) (int, error)
}

// JoinInput describes a participant joining a session.
type JoinInput struct {
	SessionID     string
	ParticipantID string
	DisplayName   string
	Role          Role
}

// Service orchestrates membership lookups used by the session gateway.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs membership use-cases.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{store: store, clock: clock, newID: newID}
}

// Join adds a participant to a session. Joining twice is a conflict.
func (s *Service) Join(ctx context.Context, input JoinInput) (Membership, error) {
	if s == nil || s.store == nil {
		return Membership{}, ErrStoreNotConfigured
	}
	input.SessionID = strings.TrimSpace(input.SessionID)
	if input.SessionID == "" {
		return Membership{}, ErrEmptySessionID
	}
	input.ParticipantID = strings.TrimSpace(input.ParticipantID)
	if input.ParticipantID == "" {
		return Membership{}, ErrEmptyParticipantID
	}
	if input.Role != RoleHost && input.Role != RolePlayer {
		return Membership{}, ErrInvalidRole
	}

	if _, err := s.store.GetMembership(ctx, input.SessionID, input.ParticipantID); err == nil {
		return Membership{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return Membership{}, err
	}

	membershipID, err := s.newID()
	if err != nil {
		return Membership{}, fmt.Errorf("generate membership id: %w", err)
	}
	now := s.clock().UTC()
	created := Membership{
		ID:            membershipID,
		SessionID:     input.SessionID,
		ParticipantID: input.ParticipantID,
		DisplayName:   strings.TrimSpace(input.DisplayName),
		Role:          input.Role,
		JoinedAt:      now,
		UpdatedAt:     now,
	}
	if err := s.store.PutMembership(ctx, created); err != nil {
		return Membership{}, err
	}
	return created, nil
}

// Get loads one membership by session and participant.
func (s *Service) Get(ctx context.Context, sessionID, participantID string) (Membership, error) {
	if s == nil || s.store == nil {
		return Membership{}, ErrStoreNotConfigured
	}
	return s.store.GetMembership(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(participantID))
}

// GetByID loads one membership by its record ID.
func (s *Service) GetByID(ctx context.Context, membershipID string) (Membership, error) {
	if s == nil || s.store == nil {
		return Membership{}, ErrStoreNotConfigured
	}
	return s.store.GetMembershipByID(ctx, strings.TrimSpace(membershipID))
}

// List returns all memberships of a session.
func (s *Service) List(ctx context.Context, sessionID string) ([]Membership, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return s.store.ListMemberships(ctx, strings.TrimSpace(sessionID))
}

// Role reports the role a participant holds in a session.
func (s *Service) Role(ctx context.Context, sessionID, participantID string) (Role, error) {
	m, err := s.Get(ctx, sessionID, participantID)
	if err != nil {
		return RoleUnspecified, err
	}
	return m.Role, nil
}

// EligibleVoterCount counts the session's players. The host does not vote,
// matching how decision turnout was always computed.
func (s *Service) EligibleVoterCount(ctx context.Context, sessionID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	return s.store.CountMembershipsByRole(ctx, strings.TrimSpace(sessionID), RolePlayer)
}

// Host returns the session's host membership.
func (s *Service) Host(ctx context.Context, sessionID string) (Membership, error) {
	if s == nil || s.store == nil {
		return Membership{}, ErrStoreNotConfigured
	}
	members, err := s.store.ListMemberships(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return Membership{}, err
	}
	for _, m := range members {
		if m.Role == RoleHost {
			return m, nil
		}
	}
	return Membership{}, ErrNotFound
}
