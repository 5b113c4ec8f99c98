package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mhersch/gametable/internal/decision"
)

const decisionColumns = `id, session_id, title, description, status,
       yes_count, no_count, eligible_voters, voted_participants,
       outcome_summary, order_index, created_at, resolved_at`

// PutDecision inserts or replaces one decision record.
func (s *Store) PutDecision(ctx context.Context, d decision.Decision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("decision id is required")
	}

	voted, err := json.Marshal(d.VotedParticipants)
	if err != nil {
		return fmt.Errorf("encode voted participants: %w", err)
	}
	var resolvedAt sql.NullInt64
	if d.ResolvedAt != nil {
		resolvedAt = sql.NullInt64{Int64: toMillis(*d.ResolvedAt), Valid: true}
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO decisions (
		   id, session_id, title, description, status,
		   yes_count, no_count, eligible_voters, voted_participants,
		   outcome_summary, order_index, created_at, resolved_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   title = excluded.title,
		   description = excluded.description,
		   status = excluded.status,
		   yes_count = excluded.yes_count,
		   no_count = excluded.no_count,
		   voted_participants = excluded.voted_participants,
		   outcome_summary = excluded.outcome_summary,
		   order_index = excluded.order_index,
		   resolved_at = excluded.resolved_at`,
		d.ID,
		d.SessionID,
		d.Title,
		d.Description,
		d.Status.String(),
		d.YesVotes,
		d.NoVotes,
		d.EligibleVoters,
		string(voted),
		d.OutcomeSummary,
		d.OrderIndex,
		toMillis(d.CreatedAt),
		resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("put decision: %w", err)
	}
	return nil
}

// GetDecision returns one decision by ID.
func (s *Store) GetDecision(ctx context.Context, decisionID string) (decision.Decision, error) {
	if err := ctx.Err(); err != nil {
		return decision.Decision{}, err
	}
	if err := s.ready(); err != nil {
		return decision.Decision{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+decisionColumns+`
		   FROM decisions
		  WHERE id = ?`,
		strings.TrimSpace(decisionID),
	)
	return scanDecision(row)
}

// ListDecisionsBySession returns a session's decisions ordered by their
// host-assigned position, then creation time.
func (s *Store) ListDecisionsBySession(ctx context.Context, sessionID string) ([]decision.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+decisionColumns+`
		   FROM decisions
		  WHERE session_id = ?
		  ORDER BY order_index ASC, created_at ASC, id ASC`,
		strings.TrimSpace(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []decision.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("list decisions: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	return out, nil
}

// DeleteDecision removes one decision. Deleting a missing decision is an
// error so callers can surface not-found to the host.
func (s *Store) DeleteDecision(ctx context.Context, decisionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM decisions WHERE id = ?`,
		strings.TrimSpace(decisionID),
	)
	if err != nil {
		return fmt.Errorf("delete decision: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete decision: %w", err)
	}
	if affected == 0 {
		return decision.ErrNotFound
	}
	return nil
}

func scanDecision(row rowScanner) (decision.Decision, error) {
	var d decision.Decision
	var status string
	var voted string
	var createdAt int64
	var resolvedAt sql.NullInt64
	err := row.Scan(
		&d.ID,
		&d.SessionID,
		&d.Title,
		&d.Description,
		&status,
		&d.YesVotes,
		&d.NoVotes,
		&d.EligibleVoters,
		&voted,
		&d.OutcomeSummary,
		&d.OrderIndex,
		&createdAt,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decision.Decision{}, decision.ErrNotFound
		}
		return decision.Decision{}, fmt.Errorf("get decision: %w", err)
	}
	if err := json.Unmarshal([]byte(voted), &d.VotedParticipants); err != nil {
		return decision.Decision{}, fmt.Errorf("decode voted participants: %w", err)
	}
	d.Status = decision.StatusFromString(status)
	d.CreatedAt = fromMillis(createdAt)
	if resolvedAt.Valid {
		at := fromMillis(resolvedAt.Int64)
		d.ResolvedAt = &at
	}
	return d, nil
}
