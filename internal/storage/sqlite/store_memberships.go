package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mhersch/gametable/internal/approval"
	"github.com/mhersch/gametable/internal/membership"
)

const membershipColumns = `id, session_id, participant_id, display_name, role,
       approval_status, approval_character_id, approval_review_notes,
       joined_at, updated_at`

// PutMembership inserts or replaces one membership record.
func (s *Store) PutMembership(ctx context.Context, m membership.Membership) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("membership id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO memberships (
		   id, session_id, participant_id, display_name, role,
		   approval_status, approval_character_id, approval_review_notes,
		   joined_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   display_name = excluded.display_name,
		   role = excluded.role,
		   approval_status = excluded.approval_status,
		   approval_character_id = excluded.approval_character_id,
		   approval_review_notes = excluded.approval_review_notes,
		   updated_at = excluded.updated_at`,
		m.ID,
		m.SessionID,
		m.ParticipantID,
		m.DisplayName,
		m.Role.String(),
		m.Approval.Status.String(),
		m.Approval.CharacterID,
		m.Approval.ReviewNotes,
		toMillis(m.JoinedAt),
		toMillis(m.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return membership.ErrConflict
		}
		return fmt.Errorf("put membership: %w", err)
	}
	return nil
}

// GetMembership returns one membership by session and participant.
func (s *Store) GetMembership(ctx context.Context, sessionID, participantID string) (membership.Membership, error) {
	if err := ctx.Err(); err != nil {
		return membership.Membership{}, err
	}
	if err := s.ready(); err != nil {
		return membership.Membership{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+membershipColumns+`
		   FROM memberships
		  WHERE session_id = ? AND participant_id = ?`,
		strings.TrimSpace(sessionID),
		strings.TrimSpace(participantID),
	)
	return scanMembership(row)
}

// GetMembershipByID returns one membership by record ID.
func (s *Store) GetMembershipByID(ctx context.Context, membershipID string) (membership.Membership, error) {
	if err := ctx.Err(); err != nil {
		return membership.Membership{}, err
	}
	if err := s.ready(); err != nil {
		return membership.Membership{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+membershipColumns+`
		   FROM memberships
		  WHERE id = ?`,
		strings.TrimSpace(membershipID),
	)
	return scanMembership(row)
}

// ListMemberships returns all memberships of a session, oldest first.
func (s *Store) ListMemberships(ctx context.Context, sessionID string) ([]membership.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+membershipColumns+`
		   FROM memberships
		  WHERE session_id = ?
		  ORDER BY joined_at ASC, id ASC`,
		strings.TrimSpace(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []membership.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("list memberships: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

// CountMembershipsByRole counts a session's members holding one role.
func (s *Store) CountMembershipsByRole(ctx context.Context, sessionID string, role membership.Role) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready(); err != nil {
		return 0, err
	}

	var count int
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM memberships WHERE session_id = ? AND role = ?`,
		strings.TrimSpace(sessionID),
		role.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memberships: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMembership(row rowScanner) (membership.Membership, error) {
	var m membership.Membership
	var role string
	var approvalStatus string
	var joinedAt int64
	var updatedAt int64
	err := row.Scan(
		&m.ID,
		&m.SessionID,
		&m.ParticipantID,
		&m.DisplayName,
		&role,
		&approvalStatus,
		&m.Approval.CharacterID,
		&m.Approval.ReviewNotes,
		&joinedAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return membership.Membership{}, membership.ErrNotFound
		}
		return membership.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	m.Role = membership.RoleFromString(role)
	m.Approval.Status = approval.StatusFromString(approvalStatus)
	m.JoinedAt = fromMillis(joinedAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return m, nil
}
