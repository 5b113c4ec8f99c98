package decision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu        sync.Mutex
	decisions map[string]Decision
}

func newFakeStore() *fakeStore {
	return &fakeStore{decisions: make(map[string]Decision)}
}

func (f *fakeStore) PutDecision(_ context.Context, decision Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions[decision.ID] = decision.Clone()
	return nil
}

func (f *fakeStore) GetDecision(_ context.Context, decisionID string) (Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found, ok := f.decisions[decisionID]
	if !ok {
		return Decision{}, ErrNotFound
	}
	return found.Clone(), nil
}

func (f *fakeStore) ListDecisionsBySession(_ context.Context, sessionID string) ([]Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Decision
	for _, d := range f.decisions {
		if d.SessionID == sessionID {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) DeleteDecision(_ context.Context, decisionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.decisions[decisionID]; !ok {
		return ErrNotFound
	}
	delete(f.decisions, decisionID)
	return nil
}

func sequentialIDGenerator(ids ...string) func() (string, error) {
	next := 0
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(ids) {
			return "", errors.New("id generator exhausted")
		}
		value := ids[next]
		next++
		return value, nil
	}
}

func TestServiceCreateAndGet(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now), sequentialIDGenerator("dec-1"))

	created, err := svc.Create(context.Background(), CreateDecisionInput{
		SessionID:      "sess-1",
		Title:          "Take the mountain pass",
		EligibleVoters: 2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Get(context.Background(), "sess-1", created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Take the mountain pass" {
		t.Fatalf("unexpected title %q", got.Title)
	}

	// A decision from another session is reported as missing.
	if _, err := svc.Get(context.Background(), "sess-2", created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong session, got %v", err)
	}
}

func TestServiceCastVoteFlow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 3, 9, 10, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now), sequentialIDGenerator("dec-1"))

	created, err := svc.Create(context.Background(), CreateDecisionInput{SessionID: "sess-1", Title: "Rest for the night", EligibleVoters: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, resolved, err := svc.CastVote(context.Background(), CastVoteInput{SessionID: "sess-1", DecisionID: created.ID, ParticipantID: "p1", Vote: VoteYes})
	if err != nil || resolved {
		t.Fatalf("first vote: resolved=%v err=%v", resolved, err)
	}
	if updated.YesVotes != 1 {
		t.Fatalf("expected persisted yes vote, got %+v", updated)
	}

	_, resolved, err = svc.CastVote(context.Background(), CastVoteInput{SessionID: "sess-1", DecisionID: created.ID, ParticipantID: "p2", Vote: VoteYes})
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if !resolved {
		t.Fatal("expected second vote to resolve")
	}

	stored, err := store.GetDecision(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != StatusResolved {
		t.Fatalf("expected stored decision resolved, got %v", stored.Status)
	}

	if _, _, err := svc.CastVote(context.Background(), CastVoteInput{SessionID: "sess-1", DecisionID: "missing", ParticipantID: "p1", Vote: VoteYes}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceCastVoteConcurrentNoLostVotes(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 3, 9, 20, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now), sequentialIDGenerator("dec-1"))

	const voters = 10
	created, err := svc.Create(context.Background(), CreateDecisionInput{SessionID: "sess-1", Title: "Everyone votes", EligibleVoters: voters})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, voters)
	for i := range voters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = svc.CastVote(context.Background(), CastVoteInput{
				SessionID:     "sess-1",
				DecisionID:    created.ID,
				ParticipantID: fmt.Sprintf("p%d", i),
				Vote:          VoteYes,
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("voter %d: %v", i, err)
		}
	}

	stored, err := store.GetDecision(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.YesVotes != voters {
		t.Fatalf("lost votes: expected %d, got %d", voters, stored.YesVotes)
	}
	if len(stored.VotedParticipants) != voters {
		t.Fatalf("expected %d voters recorded, got %d", voters, len(stored.VotedParticipants))
	}
	if stored.Status != StatusResolved {
		t.Fatalf("expected resolution after full turnout, got %v", stored.Status)
	}
}

func TestServiceUpdate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now), sequentialIDGenerator("dec-1"))

	created, err := svc.Create(context.Background(), CreateDecisionInput{SessionID: "sess-1", Title: "Old title", EligibleVoters: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "New title"
	updated, err := svc.Update(context.Background(), UpdateInput{SessionID: "sess-1", DecisionID: created.ID, Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "New title" {
		t.Fatalf("expected title update, got %q", updated.Title)
	}

	// Manual resolve works regardless of the tally.
	resolvedDec, err := svc.Update(context.Background(), UpdateInput{SessionID: "sess-1", DecisionID: created.ID, Resolve: true})
	if err != nil {
		t.Fatalf("manual resolve: %v", err)
	}
	if resolvedDec.Status != StatusResolved {
		t.Fatalf("expected resolved, got %v", resolvedDec.Status)
	}

	// Substantive edits after resolution are conflicts.
	if _, err := svc.Update(context.Background(), UpdateInput{SessionID: "sess-1", DecisionID: created.ID, Title: &title}); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 3, 9, 40, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now), sequentialIDGenerator("dec-1"))

	created, err := svc.Create(context.Background(), CreateDecisionInput{SessionID: "sess-1", Title: "Doomed", EligibleVoters: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), "sess-1", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), "sess-1", created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(context.Background(), "sess-1", created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestServiceDeleteReleasesVoteLock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 3, 9, 50, 0, 0, time.UTC)
	store := newFakeStore()
	svc := NewService(store, fixedClock(now), sequentialIDGenerator("dec-1"))

	created, err := svc.Create(context.Background(), CreateDecisionInput{SessionID: "sess-1", Title: "Short lived", EligibleVoters: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.CastVote(context.Background(), CastVoteInput{SessionID: "sess-1", DecisionID: created.ID, ParticipantID: "p1", Vote: VoteYes}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := svc.Delete(context.Background(), "sess-1", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	svc.mu.Lock()
	remaining := len(svc.locks)
	svc.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected per-decision locks released after delete, %d remain", remaining)
	}
}
