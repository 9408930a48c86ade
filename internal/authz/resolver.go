// Package authz derives a caller's role set and owned cell for a course
// from stored relationship edges.
package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmorales/aulalink/internal/rostergraph"
)

// Primary role labels, in priority order. Primary is a single label for
// consumers that need one (UI state); it never suppresses the flags.
const (
	RoleOwner   = "owner"
	RoleTeacher = "teacher"
	RoleCoord   = "coordinator"
	RoleStudent = "student"
	RoleNone    = "none"
)

// Role is the resolved role set of an actor for one course. The flags
// are independent; the data model permits a user to hold several role
// edges at once.
type Role struct {
	IsOwner   bool   `json:"isOwner"`
	IsTeacher bool   `json:"isTeacher"`
	IsCoord   bool   `json:"isCoord"`
	IsStudent bool   `json:"isStudent"`
	Primary   string `json:"primaryRole"`

	// OwnedCell is the teacher's cell for this course, nil when the
	// actor is not a teacher or has not created one.
	OwnedCell *Cell `json:"ownedCell"`
}

// Cell is a teacher-owned advisory sub-group with its student roster.
type Cell struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Students []rostergraph.Entity `json:"-"`
}

// Resolver reads role edges from the graph store.
type Resolver struct {
	store  *rostergraph.Store
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store *rostergraph.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{store: store, logger: logger}
}

// roleEdges maps each flag to its edge type, checked in priority order.
var roleEdges = []struct {
	edgeType string
	primary  string
}{
	{rostergraph.EdgeOwner, RoleOwner},
	{rostergraph.EdgeTeacher, RoleTeacher},
	{rostergraph.EdgeCoord, RoleCoord},
	{rostergraph.EdgeStudent, RoleStudent},
}

// Resolve computes the actor's role set for a course. A missing course
// or actor simply resolves to no roles; existence checks belong to the
// callers that need them.
func (r *Resolver) Resolve(ctx context.Context, actorID, courseID string) (*Role, error) {
	actorRef := rostergraph.NewRef(rostergraph.KindUser, actorID)
	courseRef := rostergraph.NewRef(rostergraph.KindCourse, courseID)

	role := &Role{Primary: RoleNone}

	for _, re := range roleEdges {
		ok, err := r.store.HasEdge(ctx, re.edgeType, actorRef, courseRef)
		if err != nil {
			return nil, fmt.Errorf("authz: resolving role: %w", err)
		}

		if !ok {
			continue
		}

		switch re.primary {
		case RoleOwner:
			role.IsOwner = true
		case RoleTeacher:
			role.IsTeacher = true
		case RoleCoord:
			role.IsCoord = true
		case RoleStudent:
			role.IsStudent = true
		}

		if role.Primary == RoleNone {
			role.Primary = re.primary
		}
	}

	if role.IsTeacher {
		cell, err := r.ownedCell(ctx, actorRef, courseRef)
		if err != nil {
			return nil, err
		}

		role.OwnedCell = cell
	}

	r.logger.Debug("role resolved",
		slog.String("actor_id", actorID),
		slog.String("course_id", courseID),
		slog.String("primary", role.Primary),
		slog.Bool("has_cell", role.OwnedCell != nil),
	)

	return role, nil
}

// ownedCell resolves the teacher's cell for the course via the
// belongs_to + is_from edge pair, then loads its student roster via
// is_in edges. A teacher without a cell yields nil, not an error.
func (r *Resolver) ownedCell(ctx context.Context, actorRef, courseRef rostergraph.Ref) (*Cell, error) {
	cells, err := r.store.Sources(ctx, rostergraph.EdgeBelongsTo, actorRef)
	if err != nil {
		return nil, fmt.Errorf("authz: listing cells: %w", err)
	}

	for _, c := range cells {
		ok, err := r.store.HasEdge(ctx, rostergraph.EdgeFrom, c.Entity.Ref, courseRef)
		if err != nil {
			return nil, fmt.Errorf("authz: checking cell course: %w", err)
		}

		if !ok {
			continue
		}

		members, err := r.store.Sources(ctx, rostergraph.EdgeIn, c.Entity.Ref)
		if err != nil {
			return nil, fmt.Errorf("authz: listing cell students: %w", err)
		}

		cell := &Cell{
			ID:   c.Entity.Ref.Key,
			Name: c.Entity.Attrs.String("name"),
		}

		for _, m := range members {
			cell.Students = append(cell.Students, m.Entity)
		}

		return cell, nil
	}

	return nil, nil
}
