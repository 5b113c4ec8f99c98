// Package gateway is the inbound boundary of the sync core. It authorizes
// actions against session membership, applies them to live state and the
// decision and review services, and fans the resulting events out to every
// subscriber of the session.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mhersch/gametable/internal/approval/workflow"
	"github.com/mhersch/gametable/internal/broadcast"
	"github.com/mhersch/gametable/internal/decision"
	"github.com/mhersch/gametable/internal/membership"
	platformerrors "github.com/mhersch/gametable/internal/platform/errors"
	"github.com/mhersch/gametable/internal/state"
)

// diceFaces lists the dice kinds a session accepts, with their face count.
var diceFaces = map[string]int{
	"d4":   4,
	"d6":   6,
	"d8":   8,
	"d10":  10,
	"d12":  12,
	"d20":  20,
	"d100": 100,
}

// Service coordinates session actions end to end.
type Service struct {
	states    *state.Registry
	members   *membership.Service
	decisions *decision.Service
	reviews   *workflow.Service
	hub       *broadcast.Hub
	tracer    trace.Tracer
	clock     func() time.Time
}

// NewService wires the gateway from its collaborators.
func NewService(states *state.Registry, members *membership.Service, decisions *decision.Service, reviews *workflow.Service, hub *broadcast.Hub, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		states:    states,
		members:   members,
		decisions: decisions,
		reviews:   reviews,
		hub:       hub,
		tracer:    otel.Tracer("gametable/gateway"),
		clock:     clock,
	}
}

func (s *Service) startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
}

// membershipFor resolves the caller's membership or reports it missing.
func (s *Service) membershipFor(ctx context.Context, sessionID, participantID string) (membership.Membership, error) {
	if participantID == "" {
		return membership.Membership{}, platformerrors.New(platformerrors.CodeParticipantIDRequired, "participant id is required")
	}
	m, err := s.members.Get(ctx, sessionID, participantID)
	if err != nil {
		return membership.Membership{}, translateMembershipError(err)
	}
	return m, nil
}

func (s *Service) requireHost(ctx context.Context, sessionID, participantID string) error {
	if participantID == "" {
		return platformerrors.New(platformerrors.CodeParticipantIDRequired, "participant id is required")
	}
	role, err := s.members.Role(ctx, sessionID, participantID)
	if err != nil {
		return translateMembershipError(err)
	}
	if role != membership.RoleHost {
		return platformerrors.WithMetadata(platformerrors.CodeHostRoleRequired,
			"only the session host may perform this action",
			map[string]string{"participant_id": participantID})
	}
	return nil
}

// Join seats a participant at the session table.
func (s *Service) Join(ctx context.Context, input membership.JoinInput) (membership.Membership, error) {
	ctx, span := s.startSpan(ctx, "gateway.Join", input.SessionID)
	defer span.End()

	m, err := s.members.Join(ctx, input)
	if err != nil {
		return membership.Membership{}, translateMembershipError(err)
	}
	return m, nil
}

// Members lists the session's seats.
func (s *Service) Members(ctx context.Context, sessionID string) ([]membership.Membership, error) {
	ctx, span := s.startSpan(ctx, "gateway.Members", sessionID)
	defer span.End()
	list, err := s.members.List(ctx, sessionID)
	if err != nil {
		return nil, translateMembershipError(err)
	}
	return list, nil
}

// Member loads one seat by its record ID. A membership belonging to a
// different session is reported as missing.
func (s *Service) Member(ctx context.Context, sessionID, membershipID string) (membership.Membership, error) {
	ctx, span := s.startSpan(ctx, "gateway.Member", sessionID)
	defer span.End()

	m, err := s.members.GetByID(ctx, membershipID)
	if err != nil {
		return membership.Membership{}, translateMembershipError(err)
	}
	if m.SessionID != sessionID {
		return membership.Membership{}, platformerrors.New(platformerrors.CodeMembershipNotFound, "membership not found")
	}
	return m, nil
}

type turnEvent struct {
	TurnHolderID string `json:"turn_holder_id"`
}

// SetTurn hands the turn to a participant. Host only.
func (s *Service) SetTurn(ctx context.Context, sessionID, callerID, turnHolderID string) error {
	ctx, span := s.startSpan(ctx, "gateway.SetTurn", sessionID)
	defer span.End()

	if err := s.requireHost(ctx, sessionID, callerID); err != nil {
		return err
	}
	s.states.GetOrCreate(sessionID).SetTurn(turnHolderID)
	s.hub.Broadcast(sessionID, "turn", turnEvent{TurnHolderID: turnHolderID})
	return nil
}

type diceEvent struct {
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	DiceKind        string    `json:"dice_kind"`
	Result          int       `json:"result"`
	RolledAt        time.Time `json:"rolled_at"`
}

// RollDiceInput describes one announced dice roll.
type RollDiceInput struct {
	SessionID     string
	ParticipantID string
	DiceKind      string
	Result        int
}

// RollDice records a participant's roll and announces it to the session.
// The client rolls; the server validates the result against the die.
func (s *Service) RollDice(ctx context.Context, input RollDiceInput) (state.DiceRoll, error) {
	ctx, span := s.startSpan(ctx, "gateway.RollDice", input.SessionID)
	defer span.End()

	m, err := s.membershipFor(ctx, input.SessionID, input.ParticipantID)
	if err != nil {
		return state.DiceRoll{}, err
	}
	faces, ok := diceFaces[input.DiceKind]
	if !ok {
		return state.DiceRoll{}, platformerrors.WithMetadata(platformerrors.CodeDiceInvalidKind,
			"unknown dice kind", map[string]string{"dice_kind": input.DiceKind})
	}
	if input.Result < 1 || input.Result > faces {
		return state.DiceRoll{}, platformerrors.WithMetadata(platformerrors.CodeDiceResultRequired,
			"dice result must be between 1 and the face count",
			map[string]string{"dice_kind": input.DiceKind})
	}

	roll := state.DiceRoll{
		ParticipantID:   m.ParticipantID,
		ParticipantName: m.DisplayName,
		DiceKind:        input.DiceKind,
		Result:          input.Result,
		RolledAt:        s.clock().UTC(),
	}
	s.states.GetOrCreate(input.SessionID).RecordDiceRoll(roll)
	s.hub.Broadcast(input.SessionID, "dice", diceEvent{
		ParticipantID:   roll.ParticipantID,
		ParticipantName: roll.ParticipantName,
		DiceKind:        roll.DiceKind,
		Result:          roll.Result,
		RolledAt:        roll.RolledAt,
	})
	return roll, nil
}

type hpEvent struct {
	ParticipantID string `json:"participant_id"`
	HP            int    `json:"hp"`
	MaxHP         int    `json:"max_hp"`
}

// InitHP seeds a participant's hit points. Unlike deltas it replaces the
// stored values outright and is not announced to the session.
func (s *Service) InitHP(ctx context.Context, sessionID, callerID, targetID string, hp, maxHP int) error {
	ctx, span := s.startSpan(ctx, "gateway.InitHP", sessionID)
	defer span.End()

	if _, err := s.membershipFor(ctx, sessionID, callerID); err != nil {
		return err
	}
	if maxHP < 0 || hp < 0 {
		return platformerrors.New(platformerrors.CodeHpInvalid, "hit points must not be negative")
	}
	if hp > maxHP {
		return platformerrors.New(platformerrors.CodeHpInvalid, "hit points must not exceed the maximum")
	}
	s.states.GetOrCreate(sessionID).InitHP(targetID, hp, maxHP)
	return nil
}

// UpdateHP applies a hit point delta atomically and announces the result.
func (s *Service) UpdateHP(ctx context.Context, sessionID, callerID, targetID string, delta int) (current, maxHP int, err error) {
	ctx, span := s.startSpan(ctx, "gateway.UpdateHP", sessionID)
	defer span.End()

	if _, err := s.membershipFor(ctx, sessionID, callerID); err != nil {
		return 0, 0, err
	}
	current, maxHP = s.states.GetOrCreate(sessionID).ApplyHPDelta(targetID, delta)
	s.hub.Broadcast(sessionID, "hp", hpEvent{ParticipantID: targetID, HP: current, MaxHP: maxHP})
	return current, maxHP, nil
}

// Snapshot returns the current live state of a session.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (state.Snapshot, error) {
	_, span := s.startSpan(ctx, "gateway.Snapshot", sessionID)
	defer span.End()
	return s.states.GetOrCreate(sessionID).Snapshot(), nil
}

type decisionEvent struct {
	DecisionID     string `json:"decision_id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	YesVotes       int    `json:"yes_votes"`
	NoVotes        int    `json:"no_votes"`
	EligibleVoters int    `json:"eligible_voters"`
	OutcomeSummary string `json:"outcome_summary,omitempty"`
}

func toDecisionEvent(d decision.Decision) decisionEvent {
	return decisionEvent{
		DecisionID:     d.ID,
		Title:          d.Title,
		Status:         d.Status.String(),
		YesVotes:       d.YesVotes,
		NoVotes:        d.NoVotes,
		EligibleVoters: d.EligibleVoters,
		OutcomeSummary: d.OutcomeSummary,
	}
}

// CreateDecisionInput describes a decision the host puts to the table.
type CreateDecisionInput struct {
	SessionID   string
	CallerID    string
	Title       string
	Description string
	OrderIndex  int
}

// CreateDecision opens a group decision. Host only. The eligible voter
// count snapshots the session's current player count.
func (s *Service) CreateDecision(ctx context.Context, input CreateDecisionInput) (decision.Decision, error) {
	ctx, span := s.startSpan(ctx, "gateway.CreateDecision", input.SessionID)
	defer span.End()

	if err := s.requireHost(ctx, input.SessionID, input.CallerID); err != nil {
		return decision.Decision{}, err
	}
	voters, err := s.members.EligibleVoterCount(ctx, input.SessionID)
	if err != nil {
		return decision.Decision{}, translateMembershipError(err)
	}
	d, err := s.decisions.Create(ctx, decision.CreateDecisionInput{
		SessionID:      input.SessionID,
		Title:          input.Title,
		Description:    input.Description,
		OrderIndex:     input.OrderIndex,
		EligibleVoters: voters,
	})
	if err != nil {
		return decision.Decision{}, translateDecisionError(err)
	}
	s.hub.Broadcast(input.SessionID, "decision", toDecisionEvent(d))
	return d, nil
}

// GetDecision loads one decision scoped to its session.
func (s *Service) GetDecision(ctx context.Context, sessionID, decisionID string) (decision.Decision, error) {
	ctx, span := s.startSpan(ctx, "gateway.GetDecision", sessionID)
	defer span.End()
	d, err := s.decisions.Get(ctx, sessionID, decisionID)
	if err != nil {
		return decision.Decision{}, translateDecisionError(err)
	}
	return d, nil
}

// ListDecisions returns a session's decisions in table order.
func (s *Service) ListDecisions(ctx context.Context, sessionID string) ([]decision.Decision, error) {
	ctx, span := s.startSpan(ctx, "gateway.ListDecisions", sessionID)
	defer span.End()
	list, err := s.decisions.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, translateDecisionError(err)
	}
	return list, nil
}

type voteEvent struct {
	DecisionID    string `json:"decision_id"`
	ParticipantID string `json:"participant_id"`
	YesVotes      int    `json:"yes_votes"`
	NoVotes       int    `json:"no_votes"`
	VotesCast     int    `json:"votes_cast"`
}

// CastVote applies a participant's vote. If the vote completes the
// turnout the decision resolves and the outcome is announced.
func (s *Service) CastVote(ctx context.Context, sessionID, callerID, decisionID string, vote decision.Vote) (decision.Decision, error) {
	ctx, span := s.startSpan(ctx, "gateway.CastVote", sessionID)
	defer span.End()

	if _, err := s.membershipFor(ctx, sessionID, callerID); err != nil {
		return decision.Decision{}, err
	}
	d, resolved, err := s.decisions.CastVote(ctx, decision.CastVoteInput{
		SessionID:     sessionID,
		DecisionID:    decisionID,
		ParticipantID: callerID,
		Vote:          vote,
	})
	if err != nil {
		return decision.Decision{}, translateDecisionError(err)
	}
	s.hub.Broadcast(sessionID, "vote", voteEvent{
		DecisionID:    d.ID,
		ParticipantID: callerID,
		YesVotes:      d.YesVotes,
		NoVotes:       d.NoVotes,
		VotesCast:     len(d.VotedParticipants),
	})
	if resolved {
		s.hub.Broadcast(sessionID, "decision_resolved", toDecisionEvent(d))
	}
	return d, nil
}

// UpdateDecisionInput describes a host edit to a decision.
type UpdateDecisionInput struct {
	SessionID   string
	CallerID    string
	DecisionID  string
	Title       *string
	Description *string
	OrderIndex  *int
	Resolve     bool
}

// UpdateDecision edits or manually resolves a decision. Host only.
func (s *Service) UpdateDecision(ctx context.Context, input UpdateDecisionInput) (decision.Decision, error) {
	ctx, span := s.startSpan(ctx, "gateway.UpdateDecision", input.SessionID)
	defer span.End()

	if err := s.requireHost(ctx, input.SessionID, input.CallerID); err != nil {
		return decision.Decision{}, err
	}
	d, err := s.decisions.Update(ctx, decision.UpdateInput{
		SessionID:   input.SessionID,
		DecisionID:  input.DecisionID,
		Title:       input.Title,
		Description: input.Description,
		OrderIndex:  input.OrderIndex,
		Resolve:     input.Resolve,
	})
	if err != nil {
		return decision.Decision{}, translateDecisionError(err)
	}
	s.hub.Broadcast(input.SessionID, "decision", toDecisionEvent(d))
	if input.Resolve {
		s.hub.Broadcast(input.SessionID, "decision_resolved", toDecisionEvent(d))
	}
	return d, nil
}

// DeleteDecision removes a decision from the table. Host only.
func (s *Service) DeleteDecision(ctx context.Context, sessionID, callerID, decisionID string) error {
	ctx, span := s.startSpan(ctx, "gateway.DeleteDecision", sessionID)
	defer span.End()

	if err := s.requireHost(ctx, sessionID, callerID); err != nil {
		return err
	}
	if err := s.decisions.Delete(ctx, sessionID, decisionID); err != nil {
		return translateDecisionError(err)
	}
	return nil
}

// SubmitCharacter puts the caller's character up for host review.
func (s *Service) SubmitCharacter(ctx context.Context, sessionID, callerID, characterID string) (membership.Membership, error) {
	ctx, span := s.startSpan(ctx, "gateway.SubmitCharacter", sessionID)
	defer span.End()

	if callerID == "" {
		return membership.Membership{}, platformerrors.New(platformerrors.CodeParticipantIDRequired, "participant id is required")
	}
	m, err := s.reviews.Submit(ctx, sessionID, callerID, characterID)
	if err != nil {
		return membership.Membership{}, translateApprovalError(err)
	}
	return m, nil
}

// ApproveCharacter accepts a pending submission. Host only.
func (s *Service) ApproveCharacter(ctx context.Context, sessionID, callerID, participantID string) (membership.Membership, error) {
	ctx, span := s.startSpan(ctx, "gateway.ApproveCharacter", sessionID)
	defer span.End()

	if err := s.requireHost(ctx, sessionID, callerID); err != nil {
		return membership.Membership{}, err
	}
	m, err := s.reviews.Approve(ctx, sessionID, participantID)
	if err != nil {
		return membership.Membership{}, translateApprovalError(err)
	}
	return m, nil
}

// RejectCharacter sends a pending submission back with notes. Host only.
func (s *Service) RejectCharacter(ctx context.Context, sessionID, callerID, participantID, notes string) (membership.Membership, error) {
	ctx, span := s.startSpan(ctx, "gateway.RejectCharacter", sessionID)
	defer span.End()

	if err := s.requireHost(ctx, sessionID, callerID); err != nil {
		return membership.Membership{}, err
	}
	m, err := s.reviews.Reject(ctx, sessionID, participantID, notes)
	if err != nil {
		return membership.Membership{}, translateApprovalError(err)
	}
	return m, nil
}

// ResubmitCharacter returns the caller's rejected character to review.
func (s *Service) ResubmitCharacter(ctx context.Context, sessionID, callerID string) (membership.Membership, error) {
	ctx, span := s.startSpan(ctx, "gateway.ResubmitCharacter", sessionID)
	defer span.End()

	if callerID == "" {
		return membership.Membership{}, platformerrors.New(platformerrors.CodeParticipantIDRequired, "participant id is required")
	}
	m, err := s.reviews.Resubmit(ctx, sessionID, callerID)
	if err != nil {
		return membership.Membership{}, translateApprovalError(err)
	}
	return m, nil
}

type snapshotEvent struct {
	TurnHolderID string         `json:"turn_holder_id"`
	HP           map[string]int `json:"hp"`
	MaxHP        map[string]int `json:"max_hp"`
	LastRoll     *diceEvent     `json:"last_roll,omitempty"`
}

// Subscribe attaches a sink to a session's event stream. The current
// snapshot is sent to the new subscriber first so a reconnecting client
// resynchronizes before live events arrive. The sink is registered before
// the snapshot is read: a concurrent action lands in at least one of the
// two, never in neither.
func (s *Service) Subscribe(ctx context.Context, sessionID string, subscriber broadcast.Subscriber) (func(), error) {
	_, span := s.startSpan(ctx, "gateway.Subscribe", sessionID)
	defer span.End()

	unsubscribe := s.hub.Subscribe(sessionID, subscriber)
	snapshot := s.states.GetOrCreate(sessionID).Snapshot()
	event := snapshotEvent{
		TurnHolderID: snapshot.TurnHolderID,
		HP:           snapshot.HP,
		MaxHP:        snapshot.MaxHP,
	}
	if snapshot.LastRoll != nil {
		event.LastRoll = &diceEvent{
			ParticipantID:   snapshot.LastRoll.ParticipantID,
			ParticipantName: snapshot.LastRoll.ParticipantName,
			DiceKind:        snapshot.LastRoll.DiceKind,
			Result:          snapshot.LastRoll.Result,
			RolledAt:        snapshot.LastRoll.RolledAt,
		}
	}
	data, err := json.Marshal(event)
	if err != nil {
		data = []byte("{}")
	}
	if err := subscriber.TrySend(broadcast.Event{Name: "snapshot", Data: data}); err != nil {
		unsubscribe()
		return nil, platformerrors.Wrap(platformerrors.CodeInternal, "send snapshot", err)
	}
	return unsubscribe, nil
}
