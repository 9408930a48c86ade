// Package roster implements the reconciliation engine that mirrors a
// course's external membership lists, coursework, and submissions into
// the local graph store. Every write is idempotent: repeated passes with
// an unchanged external roster leave the store byte-identical.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dmorales/aulalink/internal/classroom"
	"github.com/dmorales/aulalink/internal/rostergraph"
)

// Engine errors.
var (
	ErrNotFound  = errors.New("roster: course not found")
	ErrForbidden = errors.New("roster: not an owner or teacher of this course")
	ErrUpstream  = errors.New("roster: provider failure")
)

// Provider is the slice of the external roster API the engine consumes.
// Satisfied by *classroom.Client. Handlers construct a per-request
// provider from the caller's session credentials.
type Provider interface {
	Course(ctx context.Context, courseID string) (*classroom.Course, error)
	ListTeachers(ctx context.Context, courseID string) ([]classroom.Member, error)
	ListStudents(ctx context.Context, courseID string) ([]classroom.Member, error)
	ListCourseWork(ctx context.Context, courseID string) ([]classroom.CourseWork, error)
	ListSubmissions(ctx context.Context, courseID, workID, userID string) ([]classroom.Submission, error)
}

// Engine reconciles external roster state against stored edges.
type Engine struct {
	store  *rostergraph.Store
	locks  *courseLocks
	logger *slog.Logger
}

// NewEngine creates a roster engine on top of the graph store.
func NewEngine(store *rostergraph.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:  store,
		locks:  newCourseLocks(),
		logger: logger,
	}
}

// Class identifies one independently reconciled membership edge class.
type Class string

// The two membership classes a sync pass reconciles. Owner and
// coordinator edges are never touched by sync.
const (
	ClassTeachers Class = "teachers"
	ClassStudents Class = "students"
)

func (c Class) edgeType() string {
	if c == ClassTeachers {
		return rostergraph.EdgeTeacher
	}

	return rostergraph.EdgeStudent
}

func (c Class) fetch(ctx context.Context, p Provider, courseID string) ([]classroom.Member, error) {
	if c == ClassTeachers {
		return p.ListTeachers(ctx, courseID)
	}

	return p.ListStudents(ctx, courseID)
}

// ClassResult reports the outcome of reconciling one edge class.
type ClassResult struct {
	Class   Class  `json:"class"`
	Listed  int    `json:"listed"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Kept    int    `json:"kept"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`

	err error
}

// Summary reports a full sync pass. Classes succeed or fail
// independently; a failed class never rolls back a committed one.
type Summary struct {
	CourseID string      `json:"courseId"`
	Teachers ClassResult `json:"teachers"`
	Students ClassResult `json:"students"`
}

// Sync reconciles both membership classes of a course against the
// provider's current lists. The actor must hold an is_owner or
// is_teacher edge to the course. Returns the summary alongside
// ErrUpstream when any class failed; committed classes stay committed.
func (e *Engine) Sync(ctx context.Context, p Provider, courseID, actorID string) (*Summary, error) {
	release := e.locks.acquire(courseID)
	defer release()

	courseRef := rostergraph.NewRef(rostergraph.KindCourse, courseID)

	if err := e.requireCourse(ctx, courseRef); err != nil {
		return nil, err
	}

	if err := e.requireOwnerOrTeacher(ctx, actorID, courseRef); err != nil {
		return nil, err
	}

	e.logger.Info("sync pass started",
		slog.String("course_id", courseID),
		slog.String("actor_id", actorID),
	)

	// Classes are independent; reconcile them in parallel. A plain
	// errgroup (no shared cancellation) keeps one class's failure from
	// aborting the other mid-flight.
	var g errgroup.Group

	results := make([]ClassResult, 2)

	for i, class := range []Class{ClassTeachers, ClassStudents} {
		g.Go(func() error {
			results[i] = e.syncClass(ctx, p, courseRef, class)
			return nil
		})
	}

	g.Wait() //nolint:errcheck // goroutines report via results

	summary := &Summary{
		CourseID: courseID,
		Teachers: results[0],
		Students: results[1],
	}

	e.logger.Info("sync pass finished",
		slog.String("course_id", courseID),
		slog.Int("teachers_added", summary.Teachers.Added),
		slog.Int("teachers_removed", summary.Teachers.Removed),
		slog.Int("students_added", summary.Students.Added),
		slog.Int("students_removed", summary.Students.Removed),
	)

	for _, r := range results {
		if r.err != nil {
			return summary, fmt.Errorf("%w: class %s: %v", ErrUpstream, r.Class, r.err)
		}
	}

	return summary, nil
}

// syncClass reconciles one edge class: fetch the external list, upsert
// member profiles, diff the stored edge set against the target set, and
// apply the delete+create pair as a single transaction. An empty external
// list is a valid target: it deletes every stored edge of the class.
func (e *Engine) syncClass(ctx context.Context, p Provider, courseRef rostergraph.Ref, class Class) ClassResult {
	result := ClassResult{Class: class}

	members, err := class.fetch(ctx, p, courseRef.Key)
	if err != nil {
		result.err = err
		result.Error = err.Error()

		e.logger.Error("roster fetch failed",
			slog.String("course_id", courseRef.Key),
			slog.String("class", string(class)),
			slog.String("error", err.Error()),
		)

		return result
	}

	result.Listed = len(members)

	batch := &rostergraph.Batch{}
	target := make(map[string]bool, len(members))
	skipped := make(map[string]bool)

	for _, m := range members {
		if !m.Valid() {
			result.Skipped++

			// A malformed record that still carries an ID identifies
			// its member; remember it so an existing edge is not
			// mistaken for a departure.
			if m.UserID != "" {
				skipped[m.UserID] = true
			}

			e.logger.Warn("skipping malformed roster record",
				slog.String("course_id", courseRef.Key),
				slog.String("class", string(class)),
				slog.String("user_id", m.UserID),
			)

			continue
		}

		target[m.UserID] = true

		// Profiles are upserted for every listed member, keyed by
		// external ID. Entities are never deleted by sync.
		batch.UpsertEntities = append(batch.UpsertEntities, rostergraph.Entity{
			Ref: rostergraph.NewRef(rostergraph.KindUser, m.UserID),
			Attrs: rostergraph.Attrs{
				"name":     m.Profile.Name,
				"email":    m.Profile.Email,
				"photoUrl": m.Profile.PhotoURL,
			},
		})
	}

	current, err := e.store.Edges(ctx, rostergraph.EdgeFilter{Type: class.edgeType(), To: courseRef})
	if err != nil {
		result.err = err
		result.Error = err.Error()

		return result
	}

	stored := make(map[string]bool, len(current))
	for _, edge := range current {
		stored[edge.From.Key] = true

		if target[edge.From.Key] || skipped[edge.From.Key] {
			result.Kept++
			continue
		}

		// Stale member: in the store, absent from the external list.
		batch.DeleteEdges = append(batch.DeleteEdges, rostergraph.EdgeFilter{
			Type: class.edgeType(),
			From: edge.From,
			To:   courseRef,
		})
		result.Removed++
	}

	for userID := range target {
		if stored[userID] {
			continue
		}

		batch.CreateEdges = append(batch.CreateEdges, rostergraph.Edge{
			Type: class.edgeType(),
			From: rostergraph.NewRef(rostergraph.KindUser, userID),
			To:   courseRef,
		})
		result.Added++
	}

	if err := e.store.Apply(ctx, batch); err != nil {
		result.err = err
		result.Error = err.Error()
		result.Added, result.Removed, result.Kept = 0, 0, 0

		return result
	}

	return result
}

// requireCourse verifies the course entity exists locally.
func (e *Engine) requireCourse(ctx context.Context, courseRef rostergraph.Ref) error {
	_, err := e.store.Entity(ctx, courseRef)
	if errors.Is(err, rostergraph.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, courseRef.Key)
	}

	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return nil
}

// requireOwnerOrTeacher enforces the sync precondition.
func (e *Engine) requireOwnerOrTeacher(ctx context.Context, actorID string, courseRef rostergraph.Ref) error {
	actorRef := rostergraph.NewRef(rostergraph.KindUser, actorID)

	for _, edgeType := range []string{rostergraph.EdgeOwner, rostergraph.EdgeTeacher} {
		ok, err := e.store.HasEdge(ctx, edgeType, actorRef, courseRef)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}

		if ok {
			return nil
		}
	}

	return ErrForbidden
}
