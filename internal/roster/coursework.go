package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmorales/aulalink/internal/classroom"
	"github.com/dmorales/aulalink/internal/rostergraph"
)

// submissionFanout bounds the parallel per-work submission fetches.
const submissionFanout = 4

// WorkSummary reports a coursework/submission sync pass.
type WorkSummary struct {
	CourseID    string `json:"courseId"`
	Works       int    `json:"works"`
	Submissions int    `json:"submissions"`
	Skipped     int    `json:"skipped"`
	FailedWorks int    `json:"failedWorks"`
}

// SyncCourseWork mirrors the course's coursework items and their student
// submissions into the store. Works are upserted with an is_from edge to
// the course; each submission becomes an is_assigned edge from the
// student to the work carrying state, grade, late flag, and link.
//
// Submission fetches are per-item best effort: a work whose submission
// list cannot be fetched is counted in FailedWorks and the pass
// continues. A failed coursework listing aborts the pass with
// ErrUpstream before any writes.
func (e *Engine) SyncCourseWork(ctx context.Context, p Provider, courseID, actorID string) (*WorkSummary, error) {
	release := e.locks.acquire(courseID)
	defer release()

	courseRef := rostergraph.NewRef(rostergraph.KindCourse, courseID)

	if err := e.requireCourse(ctx, courseRef); err != nil {
		return nil, err
	}

	if err := e.requireOwnerOrTeacher(ctx, actorID, courseRef); err != nil {
		return nil, err
	}

	works, err := p.ListCourseWork(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing coursework: %v", ErrUpstream, err)
	}

	summary := &WorkSummary{CourseID: courseID, Works: len(works)}

	// Upsert all work entities and their course edges first so the
	// submission edges written below always reference existing rows.
	workBatch := &rostergraph.Batch{}

	for _, w := range works {
		if w.ID == "" {
			summary.Skipped++
			continue
		}

		workRef := rostergraph.NewRef(rostergraph.KindWork, w.ID)
		workBatch.UpsertEntities = append(workBatch.UpsertEntities, rostergraph.Entity{
			Ref:   workRef,
			Attrs: workAttrs(w),
		})
		workBatch.CreateEdges = append(workBatch.CreateEdges, rostergraph.Edge{
			Type: rostergraph.EdgeFrom,
			From: workRef,
			To:   courseRef,
		})
	}

	if err := e.store.Apply(ctx, workBatch); err != nil {
		return nil, fmt.Errorf("%w: writing coursework: %v", ErrUpstream, err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)

	g.SetLimit(submissionFanout)

	for _, w := range works {
		if w.ID == "" {
			continue
		}

		g.Go(func() error {
			subs, err := p.ListSubmissions(ctx, courseID, w.ID, "")
			if err != nil {
				e.logger.Warn("submission fetch failed",
					slog.String("course_id", courseID),
					slog.String("work_id", w.ID),
					slog.String("error", err.Error()),
				)

				mu.Lock()
				summary.FailedWorks++
				mu.Unlock()

				return nil
			}

			batch := &rostergraph.Batch{}
			written, skipped := 0, 0

			for _, sub := range subs {
				if sub.UserID == "" {
					skipped++
					continue
				}

				batch.CreateEdges = append(batch.CreateEdges, rostergraph.Edge{
					Type:  rostergraph.EdgeAssigned,
					From:  rostergraph.NewRef(rostergraph.KindUser, sub.UserID),
					To:    rostergraph.NewRef(rostergraph.KindWork, w.ID),
					Attrs: submissionAttrs(sub),
				})
				written++
			}

			if err := e.store.Apply(ctx, batch); err != nil {
				e.logger.Warn("submission write failed",
					slog.String("course_id", courseID),
					slog.String("work_id", w.ID),
					slog.String("error", err.Error()),
				)

				mu.Lock()
				summary.FailedWorks++
				mu.Unlock()

				return nil
			}

			mu.Lock()
			summary.Submissions += written
			summary.Skipped += skipped
			mu.Unlock()

			return nil
		})
	}

	g.Wait() //nolint:errcheck // per-work failures are recorded in the summary

	e.logger.Info("coursework sync finished",
		slog.String("course_id", courseID),
		slog.Int("works", summary.Works),
		slog.Int("submissions", summary.Submissions),
		slog.Int("failed_works", summary.FailedWorks),
	)

	return summary, nil
}

func workAttrs(w classroom.CourseWork) rostergraph.Attrs {
	attrs := rostergraph.Attrs{
		"title":         w.Title,
		"description":   w.Description,
		"workType":      w.WorkType,
		"maxPoints":     w.MaxPoints,
		"alternateLink": w.AlternateLink,
	}

	if w.DueDate != nil {
		attrs["dueDate"] = fmt.Sprintf("%04d-%02d-%02d", w.DueDate.Year, w.DueDate.Month, w.DueDate.Day)
	}

	if w.DueTime != nil {
		attrs["dueTime"] = fmt.Sprintf("%02d:%02d", w.DueTime.Hours, w.DueTime.Minutes)
	}

	return attrs
}

func submissionAttrs(sub classroom.Submission) rostergraph.Attrs {
	attrs := rostergraph.Attrs{
		"state":         sub.State,
		"late":          sub.Late,
		"alternateLink": sub.AlternateLink,
	}

	if sub.AssignedGrade != nil {
		attrs["grade"] = *sub.AssignedGrade
	}

	return attrs
}
