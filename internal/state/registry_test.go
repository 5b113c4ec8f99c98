package state

import (
	"sync"
	"testing"
)

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	first := reg.GetOrCreate("sess-1")
	second := reg.GetOrCreate("sess-1")
	if first != second {
		t.Fatal("expected the same state instance for one session")
	}
	if reg.GetOrCreate("sess-2") == first {
		t.Fatal("expected distinct state per session")
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", reg.Len())
	}
}

func TestGetOrCreateConcurrentFirstAccess(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()

	const workers = 16
	results := make([]*SessionState, workers)
	var start sync.WaitGroup
	var done sync.WaitGroup
	start.Add(1)
	for i := range workers {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			results[i] = reg.GetOrCreate("sess-1")
		}()
	}
	start.Done()
	done.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent first access produced more than one instance")
		}
	}
	if reg.Len() != 1 {
		t.Fatalf("expected exactly one session entry, got %d", reg.Len())
	}
}

func TestRegistryStateSurvivesAcrossAccesses(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.GetOrCreate("sess-1").InitHP("p1", 7, 9)

	snap := reg.GetOrCreate("sess-1").Snapshot()
	if snap.HP["p1"] != 7 || snap.MaxHP["p1"] != 9 {
		t.Fatalf("expected state to persist across accesses, got %+v", snap)
	}
}
