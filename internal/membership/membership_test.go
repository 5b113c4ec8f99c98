package membership

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func staticID(value string) func() (string, error) {
	return func() (string, error) { return value, nil }
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]Membership
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]Membership)}
}

func (f *fakeStore) key(sessionID, participantID string) string {
	return sessionID + "/" + participantID
}

func (f *fakeStore) PutMembership(_ context.Context, m Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[f.key(m.SessionID, m.ParticipantID)] = m
	return nil
}

func (f *fakeStore) GetMembership(_ context.Context, sessionID, participantID string) (Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.records[f.key(sessionID, participantID)]
	if !ok {
		return Membership{}, ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) GetMembershipByID(_ context.Context, membershipID string) (Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.records {
		if m.ID == membershipID {
			return m, nil
		}
	}
	return Membership{}, ErrNotFound
}

func (f *fakeStore) ListMemberships(_ context.Context, sessionID string) ([]Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Membership
	for _, m := range f.records {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) CountMembershipsByRole(_ context.Context, sessionID string, role Role) (int, error) {
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

func TestServiceJoin(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := NewService(newFakeStore(), fixedClock(now), staticID("member-1"))

	m, err := svc.Join(context.Background(), JoinInput{
		SessionID:     "session-1",
		ParticipantID: "alice",
		DisplayName:   "  Alice  ",
		Role:          RolePlayer,
	})
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if m.ID != "member-1" {
		t.Errorf("ID = %q, want member-1", m.ID)
	}
	if m.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want trimmed Alice", m.DisplayName)
	}
	if !m.JoinedAt.Equal(now) || !m.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v/%v, want %v", m.JoinedAt, m.UpdatedAt, now)
	}
	if got := m.Approval.Status.String(); got != "NONE" {
		t.Errorf("Approval.Status = %q, want NONE", got)
	}
}

func TestServiceJoinDuplicateConflicts(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), nil, staticID("member-1"))
	input := JoinInput{SessionID: "session-1", ParticipantID: "alice", Role: RolePlayer}

	if _, err := svc.Join(context.Background(), input); err != nil {
		t.Fatalf("first Join() error = %v", err)
	}
	if _, err := svc.Join(context.Background(), input); !errors.Is(err, ErrConflict) {
		t.Fatalf("second Join() error = %v, want ErrConflict", err)
	}
}

func TestServiceJoinValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), nil, nil)

	tests := []struct {
		name    string
		input   JoinInput
		wantErr error
	}{
		{"missing session", JoinInput{ParticipantID: "alice", Role: RolePlayer}, ErrEmptySessionID},
		{"missing participant", JoinInput{SessionID: "session-1", Role: RolePlayer}, ErrEmptyParticipantID},
		{"missing role", JoinInput{SessionID: "session-1", ParticipantID: "alice"}, ErrInvalidRole},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := svc.Join(context.Background(), tc.input); !errors.Is(err, tc.wantErr) {
				t.Fatalf("Join() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestServiceEligibleVoterCountExcludesHost(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	seed := []JoinInput{
		{SessionID: "session-1", ParticipantID: "host", Role: RoleHost},
		{SessionID: "session-1", ParticipantID: "alice", Role: RolePlayer},
		{SessionID: "session-1", ParticipantID: "bob", Role: RolePlayer},
		{SessionID: "session-2", ParticipantID: "carol", Role: RolePlayer},
	}
	for i, input := range seed {
		svc.newID = staticID(string(rune('a' + i)))
		if _, err := svc.Join(ctx, input); err != nil {
			t.Fatalf("Join(%q) error = %v", input.ParticipantID, err)
		}
	}

	count, err := svc.EligibleVoterCount(ctx, "session-1")
	if err != nil {
		t.Fatalf("EligibleVoterCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("EligibleVoterCount() = %d, want 2", count)
	}
}

func TestServiceHost(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, nil, staticID("member-host"))
	ctx := context.Background()

	if _, err := svc.Host(ctx, "session-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Host() on empty session error = %v, want ErrNotFound", err)
	}

	if _, err := svc.Join(ctx, JoinInput{SessionID: "session-1", ParticipantID: "dm", Role: RoleHost}); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	host, err := svc.Host(ctx, "session-1")
	if err != nil {
		t.Fatalf("Host() error = %v", err)
	}
	if host.ParticipantID != "dm" {
		t.Errorf("Host().ParticipantID = %q, want dm", host.ParticipantID)
	}
}

func TestRoleRoundTrip(t *testing.T) {
	t.Parallel()

	for _, role := range []Role{RoleHost, RolePlayer} {
		if got := RoleFromString(role.String()); got != role {
			t.Errorf("RoleFromString(%q) = %v, want %v", role.String(), got, role)
		}
	}
	if got := RoleFromString("WIZARD"); got != RoleUnspecified {
		t.Errorf("RoleFromString(WIZARD) = %v, want RoleUnspecified", got)
	}
}
