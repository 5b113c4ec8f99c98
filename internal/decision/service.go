package decision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mhersch/gametable/internal/platform/id"
)

var (
	// ErrNotFound indicates the decision does not exist in the session.
	ErrNotFound = errors.New("decision not found")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("decision store is not configured")
)

// Store is the persistence boundary for decision records.
type Store interface {
	PutDecision(ctx context.Context, decision Decision) error
	GetDecision(ctx context.Context, decisionID string) (Decision, error)
	ListDecisionsBySession(ctx context.Context, sessionID string) ([]Decision, error)
	DeleteDecision(ctx context.Context, decisionID string) error
}

// Service orchestrates decision lifecycle behavior. Vote casting is a
// read-modify-write serialized per decision so concurrent votes are never
// lost.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService constructs decision use-cases.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store: store,
		clock: clock,
		newID: newID,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding one decision's read-modify-write
// operations. Delete releases the entry once the decision is gone.
func (s *Service) lockFor(decisionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[decisionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[decisionID] = lock
	}
	return lock
}

func (s *Service) releaseLock(decisionID string) {
	s.mu.Lock()
	delete(s.locks, decisionID)
	s.mu.Unlock()
}

// Create persists a new pending decision.
func (s *Service) Create(ctx context.Context, input CreateDecisionInput) (Decision, error) {
	if s == nil || s.store == nil {
		return Decision{}, ErrStoreNotConfigured
	}
	created, err := CreateDecision(input, s.clock, s.newID)
	if err != nil {
		return Decision{}, err
	}
	if err := s.store.PutDecision(ctx, created); err != nil {
		return Decision{}, err
	}
	return created, nil
}

// Get loads one decision and verifies it belongs to the session. A decision
// owned by a different session is reported as not found.
func (s *Service) Get(ctx context.Context, sessionID, decisionID string) (Decision, error) {
	if s == nil || s.store == nil {
		return Decision{}, ErrStoreNotConfigured
	}
	decisionID = strings.TrimSpace(decisionID)
	if decisionID == "" {
		return Decision{}, ErrNotFound
	}
	found, err := s.store.GetDecision(ctx, decisionID)
	if err != nil {
		return Decision{}, err
	}
	if found.SessionID != strings.TrimSpace(sessionID) {
		return Decision{}, ErrNotFound
	}
	return found, nil
}

// ListBySession lists a session's decisions newest first.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]Decision, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	return s.store.ListDecisionsBySession(ctx, sessionID)
}

// CastVoteInput identifies one vote on one decision.
type CastVoteInput struct {
	SessionID     string
	DecisionID    string
	ParticipantID string
	Vote          Vote
}

// CastVote applies one vote and persists the result. Returns the updated
// decision and whether this vote resolved it.
func (s *Service) CastVote(ctx context.Context, input CastVoteInput) (Decision, bool, error) {
	if s == nil || s.store == nil {
		return Decision{}, false, ErrStoreNotConfigured
	}
	input.DecisionID = strings.TrimSpace(input.DecisionID)
	if input.DecisionID == "" {
		return Decision{}, false, ErrNotFound
	}

	lock := s.lockFor(input.DecisionID)
	lock.Lock()
	defer lock.Unlock()

	found, err := s.Get(ctx, input.SessionID, input.DecisionID)
	if err != nil {
		return Decision{}, false, err
	}

	resolved, err := found.CastVote(input.ParticipantID, input.Vote, s.clock())
	if err != nil {
		return Decision{}, false, err
	}
	if err := s.store.PutDecision(ctx, found); err != nil {
		return Decision{}, false, err
	}
	return found, resolved, nil
}

// UpdateInput describes a host edit to a pending decision. Nil fields are
// left unchanged. Resolve forces resolution regardless of the vote tally.
type UpdateInput struct {
	SessionID   string
	DecisionID  string
	Title       *string
	Description *string
	OrderIndex  *int
	Resolve     bool
}

// Update edits substantive fields of a pending decision and/or manually
// resolves it. Substantive edits to a resolved decision are rejected.
func (s *Service) Update(ctx context.Context, input UpdateInput) (Decision, error) {
	if s == nil || s.store == nil {
		return Decision{}, ErrStoreNotConfigured
	}
	input.DecisionID = strings.TrimSpace(input.DecisionID)
	if input.DecisionID == "" {
		return Decision{}, ErrNotFound
	}

	lock := s.lockFor(input.DecisionID)
	lock.Lock()
	defer lock.Unlock()

	found, err := s.Get(ctx, input.SessionID, input.DecisionID)
	if err != nil {
		return Decision{}, err
	}

	edits := input.Title != nil || input.Description != nil || input.OrderIndex != nil
	if edits && found.Status == StatusResolved {
		return Decision{}, ErrAlreadyResolved
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return Decision{}, ErrEmptyTitle
		}
		found.Title = title
	}
	if input.Description != nil {
		found.Description = strings.TrimSpace(*input.Description)
	}
	if input.OrderIndex != nil {
		found.OrderIndex = *input.OrderIndex
	}
	if input.Resolve {
		if err := found.Resolve(s.clock()); err != nil {
			return Decision{}, err
		}
	}

	if err := s.store.PutDecision(ctx, found); err != nil {
		return Decision{}, err
	}
	return found, nil
}

// Delete removes one decision from its session.
func (s *Service) Delete(ctx context.Context, sessionID, decisionID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	if _, err := s.Get(ctx, sessionID, decisionID); err != nil {
		return err
	}
	decisionID = strings.TrimSpace(decisionID)
	if err := s.store.DeleteDecision(ctx, decisionID); err != nil {
		return err
	}
	s.releaseLock(decisionID)
	return nil
}
