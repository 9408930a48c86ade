package rostergraph

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	relateSQL = `
		INSERT INTO edge (edge_type, from_id, to_id, attrs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (edge_type, from_id, to_id) DO UPDATE SET
			attrs = excluded.attrs,
			updated_at = excluded.updated_at`

	edgeExactSQL = `
		SELECT attrs FROM edge
		WHERE edge_type = ? AND from_id = ? AND to_id = ?`

	edgesByTypeSQL = `
		SELECT from_id, to_id, attrs FROM edge
		WHERE edge_type = ?
		  AND (? = '' OR from_id = ?)
		  AND (? = '' OR to_id = ?)`

	sourcesSQL = `
		SELECT e.id, e.attrs, g.attrs FROM edge g
		JOIN entity e ON e.id = g.from_id
		WHERE g.edge_type = ? AND g.to_id = ?
		ORDER BY e.id`

	targetsSQL = `
		SELECT e.id, e.attrs, g.attrs FROM edge g
		JOIN entity e ON e.id = g.to_id
		WHERE g.edge_type = ? AND g.from_id = ?
		ORDER BY e.id`
)

// Relate creates the (type, from, to) edge, or overwrites its attributes
// if the triple already exists. It never creates a second edge for an
// existing triple.
func (s *Store) Relate(ctx context.Context, edge Edge) error {
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

	now := time.Now().UnixNano()
	if _, err := s.edgeStmts.relate.ExecContext(ctx,
		edge.Type, edge.From.ID(), edge.To.ID(), payload, now, now); err != nil {
		return fmt.Errorf("rostergraph: relate %s %s->%s: %w", edge.Type, edge.From.ID(), edge.To.ID(), err)
	}

	return nil
}

// HasEdge reports whether the exact (type, from, to) edge exists.
func (s *Store) HasEdge(ctx context.Context, edgeType string, from, to Ref) (bool, error) {
	var payload string

	err := s.edgeStmts.exact.QueryRowContext(ctx, edgeType, from.ID(), to.ID()).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("rostergraph: edge lookup: %w", err)
	}

	return true, nil
}

// Edges returns all edges matching the filter.
func (s *Store) Edges(ctx context.Context, filter EdgeFilter) ([]Edge, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}

	fromID, toID := "", ""
	if !filter.From.IsZero() {
		fromID = filter.From.ID()
	}

	if !filter.To.IsZero() {
		toID = filter.To.ID()
	}

	rows, err := s.edgeStmts.byType.QueryContext(ctx, filter.Type, fromID, fromID, toID, toID)
	if err != nil {
		return nil, fmt.Errorf("rostergraph: query edges %s: %w", filter.Type, err)
	}
	defer rows.Close()

	var edges []Edge

	for rows.Next() {
		var rawFrom, rawTo, payload string
		if err := rows.Scan(&rawFrom, &rawTo, &payload); err != nil {
			return nil, fmt.Errorf("rostergraph: scan edge: %w", err)
		}

		from, err := ParseID(rawFrom)
		if err != nil {
			return nil, err
		}

		to, err := ParseID(rawTo)
		if err != nil {
			return nil, err
		}

		attrs, err := unmarshalAttrs(payload)
		if err != nil {
			return nil, err
		}

		edges = append(edges, Edge{Type: filter.Type, From: from, To: to, Attrs: attrs})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rostergraph: iterating edges: %w", err)
	}

	return edges, nil
}

// Unrelate bulk-deletes every edge matching the filter and returns the
// number removed. Deleting zero edges is not an error.
func (s *Store) Unrelate(ctx context.Context, filter EdgeFilter) (int64, error) {
	if err := filter.validate(); err != nil {
		return 0, err
	}

	query, args := unrelateQuery(filter)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("rostergraph: unrelate %s: %w", filter.Type, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rostergraph: unrelate rows affected: %w", err)
	}

	return n, nil
}

// unrelateQuery builds the parameterized DELETE for a filter.
func unrelateQuery(filter EdgeFilter) (string, []any) {
	query := `DELETE FROM edge WHERE edge_type = ?`
	args := []any{filter.Type}

	if !filter.From.IsZero() {
		query += ` AND from_id = ?`
		args = append(args, filter.From.ID())
	}

	if !filter.To.IsZero() {
		query += ` AND to_id = ?`
		args = append(args, filter.To.ID())
	}

	return query, args
}

// Sources returns the entities on the `from` side of edges of the given
// type pointing at `to` (e.g. the users holding is_student edges to a
// course). Edge attributes are returned alongside each entity.
func (s *Store) Sources(ctx context.Context, edgeType string, to Ref) ([]Neighbor, error) {
	return s.neighbors(ctx, s.edgeStmts.sources, edgeType, to)
}

// Targets returns the entities on the `to` side of edges of the given
// type leaving `from` (e.g. the works a student holds is_assigned edges
// to).
func (s *Store) Targets(ctx context.Context, edgeType string, from Ref) ([]Neighbor, error) {
	return s.neighbors(ctx, s.edgeStmts.targets, edgeType, from)
}

// Neighbor is an entity reached by a one-hop edge traversal, with the
// traversed edge's attributes.
type Neighbor struct {
	Entity    Entity
	EdgeAttrs Attrs
}

func (s *Store) neighbors(ctx context.Context, stmt *sql.Stmt, edgeType string, anchor Ref) ([]Neighbor, error) {
	if err := anchor.validate(); err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, edgeType, anchor.ID())
	if err != nil {
		return nil, fmt.Errorf("rostergraph: traverse %s from %s: %w", edgeType, anchor.ID(), err)
	}
	defer rows.Close()

	var out []Neighbor

	for rows.Next() {
		var rawID, entityPayload, edgePayload string
		if err := rows.Scan(&rawID, &entityPayload, &edgePayload); err != nil {
			return nil, fmt.Errorf("rostergraph: scan neighbor: %w", err)
		}

		ref, err := ParseID(rawID)
		if err != nil {
			return nil, err
		}

		entityAttrs, err := unmarshalAttrs(entityPayload)
		if err != nil {
			return nil, err
		}

		edgeAttrs, err := unmarshalAttrs(edgePayload)
		if err != nil {
			return nil, err
		}

		out = append(out, Neighbor{
			Entity:    Entity{Ref: ref, Attrs: entityAttrs},
			EdgeAttrs: edgeAttrs,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rostergraph: iterating neighbors: %w", err)
	}

	return out, nil
}
