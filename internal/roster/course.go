package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmorales/aulalink/internal/classroom"
	"github.com/dmorales/aulalink/internal/rostergraph"
)

// ErrRoleTaken rejects a role self-assignment when the caller already
// holds a teacher or coordinator edge to the course.
var ErrRoleTaken = errors.New("roster: caller already has a role in this course")

// StartCourse mirrors a provider course into the store and makes the
// actor its owner. The owner is immutable: starting an already-started
// course updates the course attributes but never reassigns ownership.
func (e *Engine) StartCourse(ctx context.Context, p Provider, courseID, actorID string) (*rostergraph.Entity, error) {
	release := e.locks.acquire(courseID)
	defer release()

	course, err := p.Course(ctx, courseID)
	if err != nil {
		if errors.Is(err, classroom.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, courseID)
		}

		return nil, fmt.Errorf("%w: fetching course: %v", ErrUpstream, err)
	}

	courseRef := rostergraph.NewRef(rostergraph.KindCourse, courseID)

	entity := rostergraph.Entity{
		Ref: courseRef,
		Attrs: rostergraph.Attrs{
			"name":       course.Name,
			"section":    course.Section,
			"created_at": course.CreationTime,
			"updated_at": course.UpdateTime,
		},
	}

	batch := &rostergraph.Batch{UpsertEntities: []rostergraph.Entity{entity}}

	owners, err := e.store.Edges(ctx, rostergraph.EdgeFilter{Type: rostergraph.EdgeOwner, To: courseRef})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if len(owners) == 0 {
		batch.CreateEdges = append(batch.CreateEdges, rostergraph.Edge{
			Type: rostergraph.EdgeOwner,
			From: rostergraph.NewRef(rostergraph.KindUser, actorID),
			To:   courseRef,
		})
	}

	if err := e.store.Apply(ctx, batch); err != nil {
		return nil, fmt.Errorf("%w: writing course: %v", ErrUpstream, err)
	}

	e.logger.Info("course started",
		slog.String("course_id", courseID),
		slog.String("actor_id", actorID),
		slog.Bool("owner_assigned", len(owners) == 0),
	)

	return &entity, nil
}

// AssignRole self-assigns a teacher or coordinator edge. Conflicts with
// any existing teacher/coordinator edge of the actor for this course.
// The role flags themselves may overlap (e.g. an owner who teaches), but
// explicit self-assignment is one-shot.
func (e *Engine) AssignRole(ctx context.Context, courseID, actorID, role string) error {
	var edgeType string

	switch role {
	case "teacher":
		edgeType = rostergraph.EdgeTeacher
	case "coordinator":
		edgeType = rostergraph.EdgeCoord
	default:
		return fmt.Errorf("roster: invalid role %q (teacher, coordinator)", role)
	}

	release := e.locks.acquire(courseID)
	defer release()

	courseRef := rostergraph.NewRef(rostergraph.KindCourse, courseID)
	actorRef := rostergraph.NewRef(rostergraph.KindUser, actorID)

	if err := e.requireCourse(ctx, courseRef); err != nil {
		return err
	}

	for _, existing := range []string{rostergraph.EdgeTeacher, rostergraph.EdgeCoord} {
		ok, err := e.store.HasEdge(ctx, existing, actorRef, courseRef)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}

		if ok {
			return ErrRoleTaken
		}
	}

	if err := e.store.Relate(ctx, rostergraph.Edge{Type: edgeType, From: actorRef, To: courseRef}); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	e.logger.Info("role assigned",
		slog.String("course_id", courseID),
		slog.String("actor_id", actorID),
		slog.String("role", role),
	)

	return nil
}
