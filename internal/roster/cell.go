package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmorales/aulalink/internal/rostergraph"
)

// ErrNotTeacher rejects cell operations by callers without an is_teacher
// edge to the course. A cell's owning teacher must actually teach it.
var ErrNotTeacher = errors.New("roster: caller is not a teacher of this course")

// ReplaceCell replaces the teacher's cell for a course. A teacher has at
// most one cell per course: any existing cell, together with its course,
// teacher, and membership edges, is retired in the same transaction that
// creates the new one. Returns the new cell's ID.
func (e *Engine) ReplaceCell(ctx context.Context, courseID, teacherID, cellName string, studentIDs []string) (string, error) {
	if cellName == "" {
		return "", fmt.Errorf("roster: cell name must not be empty")
	}

	release := e.locks.acquire(courseID)
	defer release()

	courseRef := rostergraph.NewRef(rostergraph.KindCourse, courseID)
	teacherRef := rostergraph.NewRef(rostergraph.KindUser, teacherID)

	if err := e.requireCourse(ctx, courseRef); err != nil {
		return "", err
	}

	isTeacher, err := e.store.HasEdge(ctx, rostergraph.EdgeTeacher, teacherRef, courseRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if !isTeacher {
		return "", ErrNotTeacher
	}

	batch := &rostergraph.Batch{}

	// Retire the teacher's existing cell(s) for this course: the cell
	// entity, its teacher and course edges, and its student membership.
	existing, err := e.ownedCells(ctx, teacherRef, courseRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	for _, cellRef := range existing {
		batch.DeleteEntities = append(batch.DeleteEntities, cellRef)
		batch.DeleteEdges = append(batch.DeleteEdges,
			rostergraph.EdgeFilter{Type: rostergraph.EdgeBelongsTo, From: cellRef},
			rostergraph.EdgeFilter{Type: rostergraph.EdgeFrom, From: cellRef},
			rostergraph.EdgeFilter{Type: rostergraph.EdgeIn, To: cellRef},
		)
	}

	cellRef := rostergraph.NewRef(rostergraph.KindCell, uuid.NewString())

	batch.UpsertEntities = append(batch.UpsertEntities, rostergraph.Entity{
		Ref:   cellRef,
		Attrs: rostergraph.Attrs{"name": cellName},
	})
	batch.CreateEdges = append(batch.CreateEdges,
		rostergraph.Edge{Type: rostergraph.EdgeBelongsTo, From: cellRef, To: teacherRef},
		rostergraph.Edge{Type: rostergraph.EdgeFrom, From: cellRef, To: courseRef},
	)

	for _, studentID := range studentIDs {
		if studentID == "" {
			continue
		}

		studentRef := rostergraph.NewRef(rostergraph.KindUser, studentID)

		// Members may predate a roster sync. A placeholder entity keeps
		// them visible to entity-joined traversals; a synced profile is
		// left untouched.
		if _, err := e.store.Entity(ctx, studentRef); errors.Is(err, rostergraph.ErrNotFound) {
			batch.UpsertEntities = append(batch.UpsertEntities, rostergraph.Entity{
				Ref:   studentRef,
				Attrs: rostergraph.Attrs{},
			})
		} else if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUpstream, err)
		}

		batch.CreateEdges = append(batch.CreateEdges, rostergraph.Edge{
			Type: rostergraph.EdgeIn,
			From: studentRef,
			To:   cellRef,
		})
	}

	if err := e.store.Apply(ctx, batch); err != nil {
		return "", fmt.Errorf("%w: replacing cell: %v", ErrUpstream, err)
	}

	e.logger.Info("cell replaced",
		slog.String("course_id", courseID),
		slog.String("teacher_id", teacherID),
		slog.String("cell_id", cellRef.Key),
		slog.Int("students", len(studentIDs)),
		slog.Int("retired", len(existing)),
	)

	return cellRef.Key, nil
}

// ownedCells returns the teacher's cell refs for the given course,
// resolved via the belongs_to + is_from edge pair.
func (e *Engine) ownedCells(ctx context.Context, teacherRef, courseRef rostergraph.Ref) ([]rostergraph.Ref, error) {
	cells, err := e.store.Sources(ctx, rostergraph.EdgeBelongsTo, teacherRef)
	if err != nil {
		return nil, err
	}

	var owned []rostergraph.Ref

	for _, cell := range cells {
		ok, err := e.store.HasEdge(ctx, rostergraph.EdgeFrom, cell.Entity.Ref, courseRef)
		if err != nil {
			return nil, err
		}

		if ok {
			owned = append(owned, cell.Entity.Ref)
		}
	}

	return owned, nil
}
