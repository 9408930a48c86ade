package rostergraph

import (
	"context"
	"fmt"
	"time"
)

// Batch is an atomic group of writes. Apply executes the operations in a
// single transaction in this order: entity upserts, entity deletes, edge
// deletes, edge creates. The ordering guarantees that an edge created in
// the batch never references a profile row the same batch was supposed
// to create later, and a reconciliation's delete+create pair can never be
// observed half-applied.
type Batch struct {
	UpsertEntities []Entity
	DeleteEntities []Ref
	DeleteEdges    []EdgeFilter
	CreateEdges    []Edge
}

// Empty reports whether the batch contains no operations.
func (b *Batch) Empty() bool {
	return len(b.UpsertEntities) == 0 && len(b.DeleteEntities) == 0 &&
		len(b.DeleteEdges) == 0 && len(b.CreateEdges) == 0
}

// Apply runs the batch in one transaction. On any failure the whole
// batch rolls back.
func (s *Store) Apply(ctx context.Context, batch *Batch) error {
	if batch.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rostergraph: begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UnixNano()

	for _, e := range batch.UpsertEntities {
		if err := e.Ref.validate(); err != nil {
			return err
		}

		payload, err := marshalAttrs(e.Attrs)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, upsertEntitySQL, e.Ref.ID(), e.Ref.Kind, payload, now, now); err != nil {
			return fmt.Errorf("rostergraph: batch upsert %s: %w", e.Ref.ID(), err)
		}
	}

	for _, ref := range batch.DeleteEntities {
		if err := ref.validate(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, deleteEntitySQL, ref.ID()); err != nil {
			return fmt.Errorf("rostergraph: batch delete %s: %w", ref.ID(), err)
		}
	}

	for _, filter := range batch.DeleteEdges {
		if err := filter.validate(); err != nil {
			return err
		}

		query, args := unrelateQuery(filter)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("rostergraph: batch unrelate %s: %w", filter.Type, err)
		}
	}

	for _, edge := range batch.CreateEdges {
		if err := edge.From.validate(); err != nil {
			return err
		}

		if err := edge.To.validate(); err != nil {
			return err
		}

		payload, err := marshalAttrs(edge.Attrs)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, relateSQL,
			edge.Type, edge.From.ID(), edge.To.ID(), payload, now, now); err != nil {
			return fmt.Errorf("rostergraph: batch relate %s: %w", edge.Type, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rostergraph: commit batch: %w", err)
	}

	s.logger.Debug("batch applied")

	return nil
}
