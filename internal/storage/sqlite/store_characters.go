package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mhersch/gametable/internal/character"
)

// PutCharacter inserts or replaces one character sheet.
func (s *Store) PutCharacter(ctx context.Context, c character.Character) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("character id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO characters (
		   id, owner_participant_id, name, class, level, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   class = excluded.class,
		   level = excluded.level,
		   updated_at = excluded.updated_at`,
		c.ID,
		c.OwnerParticipantID,
		c.Name,
		c.Class,
		c.Level,
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put character: %w", err)
	}
	return nil
}

// GetCharacter returns one character by ID.
func (s *Store) GetCharacter(ctx context.Context, characterID string) (character.Character, error) {
	if err := ctx.Err(); err != nil {
		return character.Character{}, err
	}
	if err := s.ready(); err != nil {
		return character.Character{}, err
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, owner_participant_id, name, class, level, created_at, updated_at
		   FROM characters
		  WHERE id = ?`,
		strings.TrimSpace(characterID),
	)

	var c character.Character
	var createdAt int64
	var updatedAt int64
	err := row.Scan(&c.ID, &c.OwnerParticipantID, &c.Name, &c.Class, &c.Level, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return character.Character{}, character.ErrNotFound
		}
		return character.Character{}, fmt.Errorf("get character: %w", err)
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

// ListCharactersByOwner returns a participant's characters, oldest first.
func (s *Store) ListCharactersByOwner(ctx context.Context, participantID string) ([]character.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, owner_participant_id, name, class, level, created_at, updated_at
		   FROM characters
		  WHERE owner_participant_id = ?
		  ORDER BY created_at ASC, id ASC`,
		strings.TrimSpace(participantID),
	)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var out []character.Character
	for rows.Next() {
		var c character.Character
		var createdAt int64
		var updatedAt int64
		if err := rows.Scan(&c.ID, &c.OwnerParticipantID, &c.Name, &c.Class, &c.Level, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("list characters: %w", err)
		}
		c.CreatedAt = fromMillis(createdAt)
		c.UpdatedAt = fromMillis(updatedAt)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return out, nil
}
