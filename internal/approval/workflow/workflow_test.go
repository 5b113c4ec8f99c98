package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mhersch/gametable/internal/approval"
	"github.com/mhersch/gametable/internal/character"
	"github.com/mhersch/gametable/internal/membership"
	"github.com/mhersch/gametable/internal/notification"
)

type fakeMembershipStore struct {
	mu      sync.Mutex
	records map[string]membership.Membership
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{records: make(map[string]membership.Membership)}
}

func (f *fakeMembershipStore) key(sessionID, participantID string) string {
	return sessionID + "/" + participantID
}

func (f *fakeMembershipStore) PutMembership(_ context.Context, m membership.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[f.key(m.SessionID, m.ParticipantID)] = m
	return nil
}

func (f *fakeMembershipStore) GetMembership(_ context.Context, sessionID, participantID string) (membership.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.records[f.key(sessionID, participantID)]
	if !ok {
		return membership.Membership{}, membership.ErrNotFound
	}
	return m, nil
}

func (f *fakeMembershipStore) GetMembershipByID(_ context.Context, membershipID string) (membership.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.records {
		if m.ID == membershipID {
			return m, nil
		}
	}
	return membership.Membership{}, membership.ErrNotFound
}

func (f *fakeMembershipStore) ListMemberships(_ context.Context, sessionID string) ([]membership.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []membership.Membership
	for _, m := range f.records {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMembershipStore) CountMembershipsByRole(_ context.Context, sessionID string, role membership.Role) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.records {
		if m.SessionID == sessionID && m.Role == role {
			count++
		}
	}
	return count, nil
}

type fakeCharacterLookup struct {
	characters map[string]character.Character
}

func (f *fakeCharacterLookup) GetCharacter(_ context.Context, characterID string) (character.Character, error) {
	c, ok := f.characters[characterID]
	if !ok {
		return character.Character{}, character.ErrNotFound
	}
	return c, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	emits []notification.CreateInput
}

func (r *recordingNotifier) Emit(input notification.CreateInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, input)
}

func (r *recordingNotifier) all() []notification.CreateInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.CreateInput(nil), r.emits...)
}

func seedSession(t *testing.T, store *fakeMembershipStore) {
	t.Helper()
	ctx := context.Background()
	members := []membership.Membership{
		{ID: "m-host", SessionID: "session-1", ParticipantID: "dm", DisplayName: "The DM", Role: membership.RoleHost},
		{ID: "m-alice", SessionID: "session-1", ParticipantID: "alice", DisplayName: "Alice", Role: membership.RolePlayer},
	}
	for _, m := range members {
		if err := store.PutMembership(ctx, m); err != nil {
			t.Fatalf("seed PutMembership() error = %v", err)
		}
	}
}

func newTestService(store *fakeMembershipStore, notifier Notifier) *Service {
	lookup := &fakeCharacterLookup{characters: map[string]character.Character{
		"char-1": {ID: "char-1", OwnerParticipantID: "alice", Name: "Brevik"},
		"char-2": {ID: "char-2", OwnerParticipantID: "bob", Name: "Imposter"},
	}}
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return NewService(store, lookup, notifier, func() time.Time { return now })
}

func TestSubmitNotifiesHost(t *testing.T) {
	t.Parallel()

	store := newFakeMembershipStore()
	seedSession(t, store)
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	updated, err := svc.Submit(context.Background(), "session-1", "alice", "char-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if updated.Approval.Status != approval.StatusPending {
		t.Errorf("Status = %v, want StatusPending", updated.Approval.Status)
	}
	if updated.Approval.CharacterID != "char-1" {
		t.Errorf("CharacterID = %q, want char-1", updated.Approval.CharacterID)
	}

	emits := notifier.all()
	if len(emits) != 1 {
		t.Fatalf("notifier received %d emits, want 1", len(emits))
	}
	if emits[0].RecipientParticipantID != "dm" {
		t.Errorf("recipient = %q, want dm", emits[0].RecipientParticipantID)
	}
	if emits[0].Kind != notification.KindCharacterSubmitted {
		t.Errorf("kind = %q, want %q", emits[0].Kind, notification.KindCharacterSubmitted)
	}
}

func TestSubmitByHostFails(t *testing.T) {
	t.Parallel()

	store := newFakeMembershipStore()
	seedSession(t, store)
	svc := newTestService(store, &recordingNotifier{})

	if _, err := svc.Submit(context.Background(), "session-1", "dm", "char-1"); !errors.Is(err, ErrHostHasNoCharacter) {
		t.Fatalf("Submit() by host error = %v, want ErrHostHasNoCharacter", err)
	}
}

func TestSubmitRejectsForeignCharacter(t *testing.T) {
	t.Parallel()

	store := newFakeMembershipStore()
	seedSession(t, store)
	svc := newTestService(store, &recordingNotifier{})

	if _, err := svc.Submit(context.Background(), "session-1", "alice", "char-2"); !errors.Is(err, ErrCharacterNotOwned) {
		t.Fatalf("Submit() with foreign character error = %v, want ErrCharacterNotOwned", err)
	}
	if _, err := svc.Submit(context.Background(), "session-1", "alice", "missing"); !errors.Is(err, character.ErrNotFound) {
		t.Fatalf("Submit() with unknown character error = %v, want character.ErrNotFound", err)
	}
}

func TestApproveNotifiesPlayer(t *testing.T) {
	t.Parallel()

	store := newFakeMembershipStore()
	seedSession(t, store)
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "session-1", "alice", "char-1"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	updated, err := svc.Approve(ctx, "session-1", "alice")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if updated.Approval.Status != approval.StatusApproved {
		t.Errorf("Status = %v, want StatusApproved", updated.Approval.Status)
	}

	emits := notifier.all()
	if len(emits) != 2 {
		t.Fatalf("notifier received %d emits, want 2", len(emits))
	}
	last := emits[1]
	if last.RecipientParticipantID != "alice" {
		t.Errorf("recipient = %q, want alice", last.RecipientParticipantID)
	}
	if last.Kind != notification.KindCharacterApproved {
		t.Errorf("kind = %q, want %q", last.Kind, notification.KindCharacterApproved)
	}
}

func TestApproveWithoutPendingSubmissionFails(t *testing.T) {
	t.Parallel()

	store := newFakeMembershipStore()
	seedSession(t, store)
	svc := newTestService(store, &recordingNotifier{})

	if _, err := svc.Approve(context.Background(), "session-1", "alice"); !errors.Is(err, approval.ErrNotPending) {
		t.Fatalf("Approve() error = %v, want approval.ErrNotPending", err)
	}
}

func TestRejectCarriesNotesToPlayer(t *testing.T) {
	t.Parallel()

	store := newFakeMembershipStore()
	seedSession(t, store)
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "session-1", "alice", "char-1"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	updated, err := svc.Reject(ctx, "session-1", "alice", "  stats exceed point buy  ")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if updated.Approval.Status != approval.StatusRejected {
		t.Errorf("Status = %v, want StatusRejected", updated.Approval.Status)
	}
	if updated.Approval.ReviewNotes != "stats exceed point buy" {
		t.Errorf("ReviewNotes = %q, want trimmed notes", updated.Approval.ReviewNotes)
	}

	emits := notifier.all()
	last := emits[len(emits)-1]
	if last.RecipientParticipantID != "alice" {
		t.Errorf("recipient = %q, want alice", last.RecipientParticipantID)
	}
	if last.Kind != notification.KindCharacterRejected {
		t.Errorf("kind = %q, want %q", last.Kind, notification.KindCharacterRejected)
	}
	if want := "Your character was rejected: stats exceed point buy"; last.Body != want {
		t.Errorf("body = %q, want %q", last.Body, want)
	}
}

func TestResubmitRetainsNotesAndNotifiesHost(t *testing.T) {
	t.Parallel()

	store := newFakeMembershipStore()
	seedSession(t, store)
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "session-1", "alice", "char-1"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := svc.Reject(ctx, "session-1", "alice", "needs a backstory"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	updated, err := svc.Resubmit(ctx, "session-1", "alice")
	if err != nil {
		t.Fatalf("Resubmit() error = %v", err)
	}
	if updated.Approval.Status != approval.StatusPending {
		t.Errorf("Status = %v, want StatusPending", updated.Approval.Status)
	}
	if updated.Approval.ReviewNotes != "needs a backstory" {
		t.Errorf("ReviewNotes = %q, want retained notes", updated.Approval.ReviewNotes)
	}

	emits := notifier.all()
	last := emits[len(emits)-1]
	if last.RecipientParticipantID != "dm" {
		t.Errorf("recipient = %q, want dm", last.RecipientParticipantID)
	}
}

func TestResubmitWithoutRejectionFails(t *testing.T) {
	t.Parallel()

	store := newFakeMembershipStore()
	seedSession(t, store)
	svc := newTestService(store, &recordingNotifier{})

	if _, err := svc.Resubmit(context.Background(), "session-1", "alice"); !errors.Is(err, approval.ErrNotRejected) {
		t.Fatalf("Resubmit() error = %v, want approval.ErrNotRejected", err)
	}
}

func TestUnknownMemberFails(t *testing.T) {
	t.Parallel()

	store := newFakeMembershipStore()
	seedSession(t, store)
	svc := newTestService(store, &recordingNotifier{})

	if _, err := svc.Submit(context.Background(), "session-1", "ghost", "char-1"); !errors.Is(err, membership.ErrNotFound) {
		t.Fatalf("Submit() for unknown member error = %v, want membership.ErrNotFound", err)
	}
}
