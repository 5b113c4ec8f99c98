// Package workflow drives the character review cycle: a player submits a
// character for the session host to approve or reject, and every transition
// notifies the party that needs to act next.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mhersch/gametable/internal/approval"
	"github.com/mhersch/gametable/internal/character"
	"github.com/mhersch/gametable/internal/membership"
	"github.com/mhersch/gametable/internal/notification"
)

var (
	// ErrHostHasNoCharacter indicates the session host tried to submit a
	// character; hosts run the table and do not play a sheet.
	ErrHostHasNoCharacter = errors.New("host does not submit a character")
	// ErrCharacterNotOwned indicates the character belongs to someone else.
	ErrCharacterNotOwned = errors.New("character is owned by another participant")
)

// CharacterLookup resolves character sheets referenced by submissions.
type CharacterLookup interface {
	GetCharacter(ctx context.Context, characterID string) (character.Character, error)
}

// Notifier receives one notice per review transition. Delivery is
// best-effort and never rolls a transition back.
type Notifier interface {
	Emit(input notification.CreateInput)
}

// Service applies review transitions to session memberships.
type Service struct {
	memberships membership.Store
	characters  CharacterLookup
	notifier    Notifier
	clock       func() time.Time
}

// NewService constructs the review workflow.
func NewService(memberships membership.Store, characters CharacterLookup, notifier Notifier, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{memberships: memberships, characters: characters, notifier: notifier, clock: clock}
}

// Submit puts a participant's character in front of the host for review.
// Only players submit; the character must exist and belong to the submitter.
func (s *Service) Submit(ctx context.Context, sessionID, participantID, characterID string) (membership.Membership, error) {
	m, err := s.memberships.GetMembership(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(participantID))
	if err != nil {
		return membership.Membership{}, err
	}
	if m.Role == membership.RoleHost {
		return membership.Membership{}, ErrHostHasNoCharacter
	}

	characterID = strings.TrimSpace(characterID)
	if characterID != "" && s.characters != nil {
		sheet, err := s.characters.GetCharacter(ctx, characterID)
		if err != nil {
			return membership.Membership{}, err
		}
		if sheet.OwnerParticipantID != m.ParticipantID {
			return membership.Membership{}, ErrCharacterNotOwned
		}
	}

	next, err := approval.Submit(m.Approval, characterID)
	if err != nil {
		return membership.Membership{}, err
	}
	updated, err := s.store(ctx, m, next)
	if err != nil {
		return membership.Membership{}, err
	}

	s.notifyHost(ctx, updated, notification.KindCharacterSubmitted,
		"Character submitted",
		fmt.Sprintf("%s submitted a character for review", displayName(updated)))
	return updated, nil
}

// Approve accepts a pending submission and notifies the player.
func (s *Service) Approve(ctx context.Context, sessionID, participantID string) (membership.Membership, error) {
	m, err := s.memberships.GetMembership(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(participantID))
	if err != nil {
		return membership.Membership{}, err
	}
	next, err := approval.Approve(m.Approval)
	if err != nil {
		return membership.Membership{}, err
	}
	updated, err := s.store(ctx, m, next)
	if err != nil {
		return membership.Membership{}, err
	}

	s.notifyParticipant(updated, notification.KindCharacterApproved,
		"Character approved",
		"Your character was approved by the host")
	return updated, nil
}

// Reject sends a pending submission back to the player with review notes.
func (s *Service) Reject(ctx context.Context, sessionID, participantID, notes string) (membership.Membership, error) {
	m, err := s.memberships.GetMembership(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(participantID))
	if err != nil {
		return membership.Membership{}, err
	}
	next, err := approval.Reject(m.Approval, notes)
	if err != nil {
		return membership.Membership{}, err
	}
	updated, err := s.store(ctx, m, next)
	if err != nil {
		return membership.Membership{}, err
	}

	body := "Your character was rejected by the host"
	if next.ReviewNotes != "" {
		body = fmt.Sprintf("Your character was rejected: %s", next.ReviewNotes)
	}
	s.notifyParticipant(updated, notification.KindCharacterRejected, "Character rejected", body)
	return updated, nil
}

// Resubmit returns a rejected character to the review queue unchanged.
// The rejection notes stay visible until the host resolves it again.
func (s *Service) Resubmit(ctx context.Context, sessionID, participantID string) (membership.Membership, error) {
	m, err := s.memberships.GetMembership(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(participantID))
	if err != nil {
		return membership.Membership{}, err
	}
	next, err := approval.Resubmit(m.Approval)
	if err != nil {
		return membership.Membership{}, err
	}
	updated, err := s.store(ctx, m, next)
	if err != nil {
		return membership.Membership{}, err
	}

	s.notifyHost(ctx, updated, notification.KindCharacterSubmitted,
		"Character resubmitted",
		fmt.Sprintf("%s resubmitted their character for review", displayName(updated)))
	return updated, nil
}

func (s *Service) store(ctx context.Context, m membership.Membership, next approval.State) (membership.Membership, error) {
	m.Approval = next
	m.UpdatedAt = s.clock().UTC()
	if err := s.memberships.PutMembership(ctx, m); err != nil {
		return membership.Membership{}, err
	}
	return m, nil
}

func (s *Service) notifyHost(ctx context.Context, m membership.Membership, kind notification.Kind, title, body string) {
	if s.notifier == nil {
		return
	}
	host, err := findHost(ctx, s.memberships, m.SessionID)
	if err != nil {
		return
	}
	s.notifier.Emit(notification.CreateInput{
		RecipientParticipantID: host.ParticipantID,
		Kind:                   kind,
		Title:                  title,
		Body:                   body,
		SessionID:              m.SessionID,
		CharacterID:            m.Approval.CharacterID,
	})
}

func (s *Service) notifyParticipant(m membership.Membership, kind notification.Kind, title, body string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(notification.CreateInput{
		RecipientParticipantID: m.ParticipantID,
		Kind:                   kind,
		Title:                  title,
		Body:                   body,
		SessionID:              m.SessionID,
		CharacterID:            m.Approval.CharacterID,
	})
}

func findHost(ctx context.Context, store membership.Store, sessionID string) (membership.Membership, error) {
	members, err := store.ListMemberships(ctx, sessionID)
	if err != nil {
		return membership.Membership{}, err
	}
	for _, m := range members {
		if m.Role == membership.RoleHost {
			return m, nil
		}
	}
	return membership.Membership{}, membership.ErrNotFound
}

func displayName(m membership.Membership) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ParticipantID
}
