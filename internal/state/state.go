// Package state holds the live, non-durable table state for a session:
// whose turn it is, participant hit points, and the last dice roll. The
// state exists only in memory and is rebuilt empty after a restart;
// reconnecting clients resynchronize from a snapshot.
package state

import (
	"sync"
	"time"
)

// defaultMaxHP caps HP deltas for participants whose HP was never
// initialized explicitly.
const defaultMaxHP = 999

// DiceRoll records the most recent dice roll in a session.
type DiceRoll struct {
	ParticipantID   string
	ParticipantName string
	DiceKind        string
	Result          int
	RolledAt        time.Time
}

// Snapshot is a point-in-time, independent copy of session state used to
// resynchronize subscribers on connect. Mutating a snapshot never affects
// live state or other snapshots.
type Snapshot struct {
	TurnHolderID string
	HP           map[string]int
	MaxHP        map[string]int
	LastRoll     *DiceRoll
}

// SessionState is the mutable per-session record. All methods are safe for
// concurrent use; read-modify-write operations are serialized per session.
type SessionState struct {
	mu           sync.Mutex
	turnHolderID string
	hp           map[string]int
	maxHP        map[string]int
	lastRoll     *DiceRoll
}

// NewSessionState returns empty session state.
func NewSessionState() *SessionState {
	return &SessionState{
		hp:    make(map[string]int),
		maxHP: make(map[string]int),
	}
}

// SetTurn overwrites the current turn holder unconditionally. Membership
// validation belongs to the caller.
func (s *SessionState) SetTurn(participantID string) {
	s.mu.Lock()
	s.turnHolderID = participantID
	s.mu.Unlock()
}

// InitHP sets both current and max HP for a participant. The call is
// last-write-wins: re-initializing fully overwrites earlier values.
func (s *SessionState) InitHP(participantID string, hp, maxHP int) {
	s.mu.Lock()
	s.hp[participantID] = hp
	s.maxHP[participantID] = maxHP
	s.mu.Unlock()
}

// ApplyHPDelta adds delta to the participant's HP, clamped to
// [0, maxHP]. Uninitialized participants start at 0 with the default cap.
// The read-modify-write is atomic: concurrent deltas are all observed.
// Returns the new current HP and the cap it was clamped against.
func (s *SessionState) ApplyHPDelta(participantID string, delta int) (current, maxHP int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxHP, ok := s.maxHP[participantID]
	if !ok {
		maxHP = defaultMaxHP
	}
	current = s.hp[participantID] + delta
	if current < 0 {
		current = 0
	}
	if current > maxHP {
		current = maxHP
	}
	s.hp[participantID] = current
	return current, maxHP
}

// RecordDiceRoll overwrites the last dice roll. No history is retained.
func (s *SessionState) RecordDiceRoll(roll DiceRoll) {
	s.mu.Lock()
	rollCopy := roll
	s.lastRoll = &rollCopy
	s.mu.Unlock()
}

// Snapshot returns an independent copy of all fields. Internal containers
// are never exposed.
func (s *SessionState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TurnHolderID: s.turnHolderID,
		HP:           make(map[string]int, len(s.hp)),
		MaxHP:        make(map[string]int, len(s.maxHP)),
	}
	for participantID, hp := range s.hp {
		snap.HP[participantID] = hp
	}
	for participantID, maxHP := range s.maxHP {
		snap.MaxHP[participantID] = maxHP
	}
	if s.lastRoll != nil {
		rollCopy := *s.lastRoll
		snap.LastRoll = &rollCopy
	}
	return snap
}
