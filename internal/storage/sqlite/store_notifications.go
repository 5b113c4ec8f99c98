package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mhersch/gametable/internal/notification"
)

// PutNotification inserts or replaces one notification.
func (s *Store) PutNotification(ctx context.Context, n notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("notification id is required")
	}

	var readAt sql.NullInt64
	if n.ReadAt != nil {
		readAt = sql.NullInt64{Int64: toMillis(*n.ReadAt), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO notifications (
		   id, recipient_participant_id, kind, title, body,
		   session_id, character_id, created_at, read_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   read_at = excluded.read_at`,
		n.ID,
		n.RecipientParticipantID,
		string(n.Kind),
		n.Title,
		n.Body,
		n.SessionID,
		n.CharacterID,
		toMillis(n.CreatedAt),
		readAt,
	)
	if err != nil {
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// GetNotification returns one notification by ID.
func (s *Store) GetNotification(ctx context.Context, notificationID string) (notification.Notification, error) {
	if err := ctx.Err(); err != nil {
		return notification.Notification{}, err
	}
	if err := s.ready(); err != nil {
		return notification.Notification{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, recipient_participant_id, kind, title, body,
		        session_id, character_id, created_at, read_at
		   FROM notifications
		  WHERE id = ?`,
		strings.TrimSpace(notificationID),
	)
	return scanNotification(row)
}

// ListNotificationsByRecipient returns a participant's notifications,
// newest first.
func (s *Store) ListNotificationsByRecipient(ctx context.Context, participantID string) ([]notification.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, recipient_participant_id, kind, title, body,
		        session_id, character_id, created_at, read_at
		   FROM notifications
		  WHERE recipient_participant_id = ?
		  ORDER BY created_at DESC, id DESC`,
		strings.TrimSpace(participantID),
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func scanNotification(row rowScanner) (notification.Notification, error) {
	var n notification.Notification
	var kind string
	var createdAt int64
	var readAt sql.NullInt64
	err := row.Scan(
		&n.ID,
		&n.RecipientParticipantID,
		&kind,
		&n.Title,
		&n.Body,
		&n.SessionID,
		&n.CharacterID,
		&createdAt,
		&readAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	n.Kind = notification.Kind(kind)
	n.CreatedAt = fromMillis(createdAt)
	if readAt.Valid {
		at := fromMillis(readAt.Int64)
		n.ReadAt = &at
	}
	return n, nil
}
