// Package decision implements group decisions: host-created yes/no polls
// that auto-resolve once every eligible voter has cast a vote.
package decision

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mhersch/gametable/internal/platform/id"
)

// Status describes the lifecycle state of a decision.
type Status int

const (
	// StatusUnspecified represents an invalid decision status value.
	StatusUnspecified Status = iota
	// StatusPending indicates the decision is still collecting votes.
	StatusPending
	// StatusResolved indicates the decision reached its outcome.
	StatusResolved
)

// String returns the persisted representation of a status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusResolved:
		return "RESOLVED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromString parses a persisted status value.
func StatusFromString(value string) Status {
	switch value {
	case "PENDING":
		return StatusPending
	case "RESOLVED":
		return StatusResolved
	default:
		return StatusUnspecified
	}
}

// Vote is one participant's yes/no choice.
type Vote int

const (
	// VoteUnspecified represents an invalid vote value.
	VoteUnspecified Vote = iota
	// VoteYes counts toward the yes tally.
	VoteYes
	// VoteNo counts toward the no tally.
	VoteNo
)

var (
	// ErrEmptySessionID indicates a missing session ID.
	ErrEmptySessionID = errors.New("session id is required")
	// ErrEmptyTitle indicates a missing decision title.
	ErrEmptyTitle = errors.New("decision title is required")
	// ErrInvalidVote indicates a vote that is neither yes nor no.
	ErrInvalidVote = errors.New("vote must be yes or no")
	// ErrEmptyParticipantID indicates a missing voter identity.
	ErrEmptyParticipantID = errors.New("participant id is required")
	// ErrAlreadyResolved indicates the decision no longer accepts changes.
	ErrAlreadyResolved = errors.New("decision is already resolved")
	// ErrDuplicateVote indicates the participant has already voted. Votes
	// cannot be retracted or changed; a second vote is always a conflict.
	ErrDuplicateVote = errors.New("participant already voted")
)

// Decision is one group decision owned by a session.
type Decision struct {
	ID          string
	SessionID   string
	Title       string
	Description string
	OrderIndex  int

	YesVotes int
	NoVotes  int
	// EligibleVoters is a snapshot of the eligible-voter count taken at
	// creation time; later membership changes do not affect it.
	EligibleVoters int
	// VotedParticipants records who voted, not what they voted.
	VotedParticipants []string

	Status         Status
	OutcomeSummary string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// CreateDecisionInput describes the metadata needed to create a decision.
type CreateDecisionInput struct {
	SessionID      string
	Title          string
	Description    string
	OrderIndex     int
	EligibleVoters int
}

// CreateDecision creates a pending decision with a generated ID.
func CreateDecision(input CreateDecisionInput, now func() time.Time, idGenerator func() (string, error)) (Decision, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.SessionID = strings.TrimSpace(input.SessionID)
	if input.SessionID == "" {
		return Decision{}, ErrEmptySessionID
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Decision{}, ErrEmptyTitle
	}
	if input.EligibleVoters < 0 {
		input.EligibleVoters = 0
	}

	decisionID, err := idGenerator()
	if err != nil {
		return Decision{}, fmt.Errorf("generate decision id: %w", err)
	}

	return Decision{
		ID:             decisionID,
		SessionID:      input.SessionID,
		Title:          input.Title,
		Description:    strings.TrimSpace(input.Description),
		OrderIndex:     input.OrderIndex,
		EligibleVoters: input.EligibleVoters,
		Status:         StatusPending,
		CreatedAt:      now().UTC(),
	}, nil
}

// HasVoted reports whether the participant already cast a vote.
func (d *Decision) HasVoted(participantID string) bool {
	return slices.Contains(d.VotedParticipants, participantID)
}

// AllVoted reports whether every eligible voter has cast a vote.
func (d *Decision) AllVoted() bool {
	return d.EligibleVoters > 0 && d.YesVotes+d.NoVotes >= d.EligibleVoters
}

// CastVote records one participant's vote and auto-resolves the decision
// when the last eligible voter has voted. Returns true when this vote
// resolved the decision.
func (d *Decision) CastVote(participantID string, vote Vote, now time.Time) (resolved bool, err error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return false, ErrEmptyParticipantID
	}
	if vote != VoteYes && vote != VoteNo {
		return false, ErrInvalidVote
	}
	if d.Status == StatusResolved {
		return false, ErrAlreadyResolved
	}
	if d.HasVoted(participantID) {
		return false, ErrDuplicateVote
	}

	if vote == VoteYes {
		d.YesVotes++
	} else {
		d.NoVotes++
	}
	d.VotedParticipants = append(d.VotedParticipants, participantID)

	if !d.AllVoted() {
		return false, nil
	}
	d.resolve(now)
	return true, nil
}

// Resolve forces the decision to RESOLVED. Hosts may resolve a pending
// decision at any time; resolving twice is a conflict.
func (d *Decision) Resolve(now time.Time) error {
	if d.Status == StatusResolved {
		return ErrAlreadyResolved
	}
	d.resolve(now)
	return nil
}

func (d *Decision) resolve(now time.Time) {
	outcome := "no"
	// Ties favor yes.
	if d.YesVotes >= d.NoVotes {
		outcome = "yes"
	}
	resolvedAt := now.UTC()
	d.Status = StatusResolved
	d.ResolvedAt = &resolvedAt
	d.OutcomeSummary = fmt.Sprintf("%s (%d yes / %d no)", outcome, d.YesVotes, d.NoVotes)
}

// Clone returns a deep copy safe to hand across goroutines.
func (d Decision) Clone() Decision {
	copied := d
	copied.VotedParticipants = slices.Clone(d.VotedParticipants)
	if d.ResolvedAt != nil {
		resolvedAt := *d.ResolvedAt
		copied.ResolvedAt = &resolvedAt
	}
	return copied
}
