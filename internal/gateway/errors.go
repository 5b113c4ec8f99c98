package gateway

import (
	"errors"

	"github.com/mhersch/gametable/internal/approval"
	"github.com/mhersch/gametable/internal/approval/workflow"
	"github.com/mhersch/gametable/internal/character"
	"github.com/mhersch/gametable/internal/decision"
	"github.com/mhersch/gametable/internal/membership"
	platformerrors "github.com/mhersch/gametable/internal/platform/errors"
)

// translateMembershipError maps membership sentinels onto coded errors so
// transports can derive the right status without knowing the domain.
func translateMembershipError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, membership.ErrNotFound):
		return platformerrors.Wrap(platformerrors.CodeMembershipNotFound, "participant is not a session member", err)
	case errors.Is(err, membership.ErrConflict):
		return platformerrors.Wrap(platformerrors.CodeMembershipExists, "participant already joined the session", err)
	case errors.Is(err, membership.ErrEmptySessionID):
		return platformerrors.Wrap(platformerrors.CodeSessionIDRequired, "session id is required", err)
	case errors.Is(err, membership.ErrEmptyParticipantID):
		return platformerrors.Wrap(platformerrors.CodeParticipantIDRequired, "participant id is required", err)
	case errors.Is(err, membership.ErrInvalidRole):
		return platformerrors.Wrap(platformerrors.CodeMembershipRoleInvalid, "membership role must be host or player", err)
	default:
		return platformerrors.Wrap(platformerrors.CodeInternal, "membership operation failed", err)
	}
}

func translateDecisionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, decision.ErrNotFound):
		return platformerrors.Wrap(platformerrors.CodeDecisionNotFound, "decision not found", err)
	case errors.Is(err, decision.ErrEmptyTitle):
		return platformerrors.Wrap(platformerrors.CodeDecisionTitleEmpty, "decision title is required", err)
	case errors.Is(err, decision.ErrEmptySessionID):
		return platformerrors.Wrap(platformerrors.CodeSessionIDRequired, "session id is required", err)
	case errors.Is(err, decision.ErrEmptyParticipantID):
		return platformerrors.Wrap(platformerrors.CodeParticipantIDRequired, "participant id is required", err)
	case errors.Is(err, decision.ErrAlreadyResolved):
		return platformerrors.Wrap(platformerrors.CodeDecisionAlreadyResolved, "decision is already resolved", err)
	case errors.Is(err, decision.ErrInvalidVote):
		return platformerrors.Wrap(platformerrors.CodeDecisionVoteInvalid, "vote must be yes or no", err)
	case errors.Is(err, decision.ErrDuplicateVote):
		return platformerrors.Wrap(platformerrors.CodeDecisionDuplicateVote, "participant already voted on this decision", err)
	default:
		return platformerrors.Wrap(platformerrors.CodeInternal, "decision operation failed", err)
	}
}

func translateApprovalError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, workflow.ErrHostHasNoCharacter):
		return platformerrors.Wrap(platformerrors.CodeApprovalHostHasNoCharacter, "the host does not submit a character", err)
	case errors.Is(err, workflow.ErrCharacterNotOwned):
		return platformerrors.Wrap(platformerrors.CodeParticipantMismatch, "character belongs to another participant", err)
	case errors.Is(err, character.ErrNotFound):
		return platformerrors.Wrap(platformerrors.CodeCharacterNotFound, "character not found", err)
	case errors.Is(err, approval.ErrEmptyCharacterID):
		return platformerrors.Wrap(platformerrors.CodeCharacterIDRequired, "character id is required", err)
	case errors.Is(err, approval.ErrAlreadySubmitted):
		return platformerrors.Wrap(platformerrors.CodeApprovalAlreadySubmitted, "a character submission is already pending", err)
	case errors.Is(err, approval.ErrAlreadyApproved):
		return platformerrors.Wrap(platformerrors.CodeApprovalAlreadyApproved, "character is already approved", err)
	case errors.Is(err, approval.ErrNotPending):
		return platformerrors.Wrap(platformerrors.CodeApprovalNotPending, "no pending character submission", err)
	case errors.Is(err, approval.ErrNotRejected):
		return platformerrors.Wrap(platformerrors.CodeApprovalNotRejected, "character submission was not rejected", err)
	case errors.Is(err, membership.ErrNotFound):
		return platformerrors.Wrap(platformerrors.CodeMembershipNotFound, "participant is not a session member", err)
	default:
		return platformerrors.Wrap(platformerrors.CodeInternal, "character review operation failed", err)
	}
}
