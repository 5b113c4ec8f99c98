package character

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]Character
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]Character)}
}

func (f *fakeStore) PutCharacter(_ context.Context, c Character) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[c.ID] = c
	return nil
}

func (f *fakeStore) GetCharacter(_ context.Context, characterID string) (Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.records[characterID]
	if !ok {
		return Character{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListCharactersByOwner(_ context.Context, participantID string) ([]Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Character
	for _, c := range f.records {
		if c.OwnerParticipantID == participantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := NewService(newFakeStore(), func() time.Time { return now }, func() (string, error) { return "char-1", nil })

	created, err := svc.Create(context.Background(), CreateInput{
		OwnerParticipantID: "alice",
		Name:               "  Brevik  ",
		Class:              "Ranger",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != "char-1" {
		t.Errorf("ID = %q, want char-1", created.ID)
	}
	if created.Name != "Brevik" {
		t.Errorf("Name = %q, want trimmed Brevik", created.Name)
	}
	if created.Level != 1 {
		t.Errorf("Level = %d, want default 1", created.Level)
	}
	if !created.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", created.CreatedAt, now)
	}

	got, err := svc.Get(context.Background(), "char-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != created {
		t.Errorf("Get() = %+v, want %+v", got, created)
	}
}

func TestServiceCreateValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), nil, nil)

	if _, err := svc.Create(context.Background(), CreateInput{Name: "Brevik"}); !errors.Is(err, ErrEmptyOwner) {
		t.Fatalf("Create() without owner error = %v, want ErrEmptyOwner", err)
	}
	if _, err := svc.Create(context.Background(), CreateInput{OwnerParticipantID: "alice"}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("Create() without name error = %v, want ErrEmptyName", err)
	}
}

func TestServiceGetNotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), nil, nil)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestServiceListByOwner(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	next := 0
	svc := NewService(store, nil, func() (string, error) {
		next++
		return string(rune('a' + next)), nil
	})
	ctx := context.Background()

	for _, owner := range []string{"alice", "alice", "bob"} {
		if _, err := svc.Create(ctx, CreateInput{OwnerParticipantID: owner, Name: "Sheet"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := svc.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListByOwner() returned %d characters, want 2", len(list))
	}
}
