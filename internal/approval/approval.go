// Package approval models the character-submission lifecycle a player goes
// through before their character is usable at the table. Transitions are
// expressed as total functions from a state to either the next state or a
// typed error, so illegal transitions never depend on ad-hoc string checks.
package approval

import (
	"errors"
	"strings"
)

// Status describes where one submission is in the approval lifecycle.
type Status int

const (
	// StatusNone means no character has been submitted yet.
	StatusNone Status = iota
	// StatusPending means a submission awaits the host's review.
	StatusPending
	// StatusApproved means the host accepted the character.
	StatusApproved
	// StatusRejected means the host sent the character back with notes.
	StatusRejected
)

// String returns the persisted representation of a status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusApproved:
		return "APPROVED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "NONE"
	}
}

// StatusFromString parses a persisted status value.
func StatusFromString(value string) Status {
	switch value {
	case "PENDING":
		return StatusPending
	case "APPROVED":
		return StatusApproved
	case "REJECTED":
		return StatusRejected
	default:
		return StatusNone
	}
}

var (
	// ErrEmptyCharacterID indicates a submission without a character.
	ErrEmptyCharacterID = errors.New("character id is required")
	// ErrAlreadySubmitted indicates a submission is already under review.
	ErrAlreadySubmitted = errors.New("a character submission is already pending")
	// ErrAlreadyApproved indicates the attachment was already approved.
	ErrAlreadyApproved = errors.New("character is already approved")
	// ErrNotPending indicates a review action on a non-pending submission.
	ErrNotPending = errors.New("no pending character submission")
	// ErrNotRejected indicates a resubmit without a prior rejection.
	ErrNotRejected = errors.New("character submission was not rejected")
)

// State is the approval portion of a session membership.
type State struct {
	Status      Status
	CharacterID string
	// ReviewNotes carry the host's rejection feedback. They are meaningful
	// while the submission is rejected and stay visible through resubmission
	// until the next resolution clears or replaces them.
	ReviewNotes string
}

// Submit attaches a character and moves the submission under review. A fresh
// submission is allowed from NONE or REJECTED (replacing the rejected one and
// clearing its notes); submitting over a pending or approved character is a
// conflict.
func Submit(s State, characterID string) (State, error) {
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return State{}, ErrEmptyCharacterID
	}
	switch s.Status {
	case StatusPending:
		return State{}, ErrAlreadySubmitted
	case StatusApproved:
		return State{}, ErrAlreadyApproved
	}
	return State{
		Status:      StatusPending,
		CharacterID: characterID,
	}, nil
}

// Approve accepts a pending submission and clears review notes.
func Approve(s State) (State, error) {
	if s.Status != StatusPending {
		return State{}, ErrNotPending
	}
	return State{
		Status:      StatusApproved,
		CharacterID: s.CharacterID,
	}, nil
}

// Reject sends a pending submission back with the host's notes.
func Reject(s State, notes string) (State, error) {
	if s.Status != StatusPending {
		return State{}, ErrNotPending
	}
	return State{
		Status:      StatusRejected,
		CharacterID: s.CharacterID,
		ReviewNotes: strings.TrimSpace(notes),
	}, nil
}

// Resubmit puts a rejected submission back under review. The rejection notes
// are retained so the player can still see what needed fixing.
func Resubmit(s State) (State, error) {
	if s.Status != StatusRejected {
		return State{}, ErrNotRejected
	}
	return State{
		Status:      StatusPending,
		CharacterID: s.CharacterID,
		ReviewNotes: s.ReviewNotes,
	}, nil
}
