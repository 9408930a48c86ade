package rostergraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	upsertEntitySQL = `
		INSERT INTO entity (id, kind, attrs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			attrs = excluded.attrs,
			updated_at = excluded.updated_at`

	getEntitySQL = `SELECT attrs FROM entity WHERE id = ?`

	deleteEntitySQL = `DELETE FROM entity WHERE id = ?`
)

// UpsertEntity creates or overwrites the entity identified by ref.
// Overwrite is deterministic: the stored attributes become exactly attrs
// (last write wins, no merge).
func (s *Store) UpsertEntity(ctx context.Context, ref Ref, attrs Attrs) error {
	if err := ref.validate(); err != nil {
		return err
	}

	payload, err := marshalAttrs(attrs)
	if err != nil {
		return err
	}

	now := time.Now().UnixNano()
	if _, err := s.entityStmts.upsert.ExecContext(ctx, ref.ID(), ref.Kind, payload, now, now); err != nil {
		return fmt.Errorf("rostergraph: upsert entity %s: %w", ref.ID(), err)
	}

	s.logger.Debug("entity upserted", slog.String("id", ref.ID()))

	return nil
}

// Entity fetches a single entity by reference. Returns ErrNotFound if
// absent.
func (s *Store) Entity(ctx context.Context, ref Ref) (*Entity, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}

	var payload string

	err := s.entityStmts.get.QueryRowContext(ctx, ref.ID()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entity %s", ErrNotFound, ref.ID())
	}

	if err != nil {
		return nil, fmt.Errorf("rostergraph: get entity %s: %w", ref.ID(), err)
	}

	attrs, err := unmarshalAttrs(payload)
	if err != nil {
		return nil, err
	}

	return &Entity{Ref: ref, Attrs: attrs}, nil
}

// DeleteEntity removes an entity row. Edges are not cascaded; callers
// that retire an entity delete its edges in the same batch (see Apply).
func (s *Store) DeleteEntity(ctx context.Context, ref Ref) error {
	if err := ref.validate(); err != nil {
		return err
	}

	if _, err := s.entityStmts.delete.ExecContext(ctx, ref.ID()); err != nil {
		return fmt.Errorf("rostergraph: delete entity %s: %w", ref.ID(), err)
	}

	return nil
}

func marshalAttrs(attrs Attrs) (string, error) {
	if attrs == nil {
		return "{}", nil
	}

	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("rostergraph: encoding attrs: %w", err)
	}

	return string(b), nil
}

func unmarshalAttrs(payload string) (Attrs, error) {
	var attrs Attrs
	if err := json.Unmarshal([]byte(payload), &attrs); err != nil {
		return nil, fmt.Errorf("rostergraph: decoding attrs: %w", err)
	}

	return attrs, nil
}
