// Package errors provides structured error handling for gametable services.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session state errors
	CodeSessionIDRequired     Code = "SESSION_ID_REQUIRED"
	CodeParticipantIDRequired Code = "PARTICIPANT_ID_REQUIRED"
	CodeHpInvalid             Code = "HP_INVALID"
	CodeDiceResultRequired    Code = "DICE_RESULT_REQUIRED"
	CodeDiceInvalidKind       Code = "DICE_INVALID_KIND"

	// Decision errors
	CodeDecisionTitleEmpty      Code = "DECISION_TITLE_EMPTY"
	CodeDecisionNotFound        Code = "DECISION_NOT_FOUND"
	CodeDecisionAlreadyResolved Code = "DECISION_ALREADY_RESOLVED"
	CodeDecisionVoteInvalid     Code = "DECISION_VOTE_INVALID"
	CodeDecisionDuplicateVote   Code = "DECISION_DUPLICATE_VOTE"

	// Membership and authorization errors
	CodeMembershipRoleInvalid Code = "MEMBERSHIP_ROLE_INVALID"
	CodeMembershipNotFound    Code = "MEMBERSHIP_NOT_FOUND"
	CodeHostRoleRequired      Code = "HOST_ROLE_REQUIRED"
	CodeParticipantMismatch   Code = "PARTICIPANT_MISMATCH"
	CodeMembershipExists      Code = "MEMBERSHIP_EXISTS"

	// Character approval errors
	CodeCharacterNotFound          Code = "CHARACTER_NOT_FOUND"
	CodeCharacterIDRequired        Code = "CHARACTER_ID_REQUIRED"
	CodeApprovalHostHasNoCharacter Code = "APPROVAL_HOST_HAS_NO_CHARACTER"
	CodeApprovalNotPending         Code = "APPROVAL_NOT_PENDING"
	CodeApprovalNotRejected        Code = "APPROVAL_NOT_REJECTED"
	CodeApprovalAlreadySubmitted   Code = "APPROVAL_ALREADY_SUBMITTED"
	CodeApprovalAlreadyApproved    Code = "APPROVAL_ALREADY_APPROVED"

	// Notification errors
	CodeNotificationNotFound Code = "NOTIFICATION_NOT_FOUND"

	// Internal errors
	CodeInternal Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeSessionIDRequired,
		CodeMembershipRoleInvalid,
		CodeParticipantIDRequired,
		CodeHpInvalid,
		CodeDiceResultRequired,
		CodeDiceInvalidKind,
		CodeDecisionTitleEmpty,
		CodeDecisionVoteInvalid,
		CodeCharacterIDRequired:
		return codes.InvalidArgument

	// NotFound - missing records
	case CodeDecisionNotFound,
		CodeMembershipNotFound,
		CodeCharacterNotFound,
		CodeNotificationNotFound:
		return codes.NotFound

	// PermissionDenied - caller lacks the required role
	case CodeHostRoleRequired,
		CodeParticipantMismatch:
		return codes.PermissionDenied

	// AlreadyExists - conflicting duplicates
	case CodeDecisionDuplicateVote,
		CodeMembershipExists:
		return codes.AlreadyExists

	// FailedPrecondition - state machine disallows the operation
	case CodeDecisionAlreadyResolved,
		CodeApprovalHostHasNoCharacter,
		CodeApprovalNotPending,
		CodeApprovalNotRejected,
		CodeApprovalAlreadySubmitted,
		CodeApprovalAlreadyApproved:
		return codes.FailedPrecondition

	default:
		return codes.Internal
	}
}
