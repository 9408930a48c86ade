package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmorales/aulalink/internal/classroom"
	"github.com/dmorales/aulalink/internal/rostergraph"
)

func grade(f float64) *float64 { return &f }

func TestSyncCourseWorkMirrorsWorksAndSubmissions(t *testing.T) {
	engine, store := newTestEngine(t)
	seedCourse(t, store, "c1", "owner")
	ctx := context.Background()

	p := &fakeProvider{
		works: []classroom.CourseWork{
			{
				ID: "w1", Title: "Essay", MaxPoints: 100,
				DueDate: &classroom.DueDate{Year: 2026, Month: 9, Day: 5},
				DueTime: &classroom.DueTime{Hours: 23, Minutes: 59},
			},
			{ID: "w2", Title: "Quiz"},
		},
		submissions: map[string][]classroom.Submission{
			"w1": {
				{UserID: "s1", State: classroom.SubmissionTurnedIn, AssignedGrade: grade(95), Late: true},
				{UserID: "s2", State: classroom.SubmissionCreated},
			},
			"w2": {
				{UserID: "s1", State: classroom.SubmissionReturned, AssignedGrade: grade(80)},
			},
		},
	}

	summary, err := engine.SyncCourseWork(ctx, p, "c1", "owner")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Works)
	assert.Equal(t, 3, summary.Submissions)
	assert.Zero(t, summary.FailedWorks)

	work, err := store.Entity(ctx, rostergraph.NewRef(rostergraph.KindWork, "w1"))
	require.NoError(t, err)
	assert.Equal(t, "Essay", work.Attrs.String("title"))
	assert.Equal(t, "2026-09-05", work.Attrs.String("dueDate"))
	assert.Equal(t, "23:59", work.Attrs.String("dueTime"))

	edges, err := store.Edges(ctx, rostergraph.EdgeFilter{
		Type: rostergraph.EdgeAssigned,
		From: rostergraph.NewRef(rostergraph.KindUser, "s1"),
		To:   rostergraph.NewRef(rostergraph.KindWork, "w1"),
	})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, classroom.SubmissionTurnedIn, edges[0].Attrs.String("state"))
	assert.True(t, edges[0].Attrs.Bool("late"))

	g, ok := edges[0].Attrs.Float("grade")
	require.True(t, ok)
	assert.InDelta(t, 95, g, 0.001)

	// An ungraded submission stores no grade attribute.
	edges, err = store.Edges(ctx, rostergraph.EdgeFilter{
		Type: rostergraph.EdgeAssigned,
		From: rostergraph.NewRef(rostergraph.KindUser, "s2"),
		To:   rostergraph.NewRef(rostergraph.KindWork, "w1"),
	})
	require.NoError(t, err)
	require.Len(t, edges, 1)

	_, ok = edges[0].Attrs.Float("grade")
	assert.False(t, ok)
}

func TestSyncCourseWorkIsIdempotent(t *testing.T) {
	engine, store := newTestEngine(t)
	seedCourse(t, store, "c1", "owner")
	ctx := context.Background()

	p := &fakeProvider{
		works: []classroom.CourseWork{{ID: "w1", Title: "Essay"}},
		submissions: map[string][]classroom.Submission{
			"w1": {{UserID: "s1", State: classroom.SubmissionNew}},
		},
	}

	_, err := engine.SyncCourseWork(ctx, p, "c1", "owner")
	require.NoError(t, err)

	// Re-run with a state change; the existing edge is overwritten, not
	// duplicated.
	p.submissions["w1"][0].State = classroom.SubmissionTurnedIn

	_, err = engine.SyncCourseWork(ctx, p, "c1", "owner")
	require.NoError(t, err)

	edges, err := store.Edges(ctx, rostergraph.EdgeFilter{
		Type: rostergraph.EdgeAssigned,
		To:   rostergraph.NewRef(rostergraph.KindWork, "w1"),
	})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, classroom.SubmissionTurnedIn, edges[0].Attrs.String("state"))
}

func TestSyncCourseWorkFailedSubmissionsAreBestEffort(t *testing.T) {
	engine, store := newTestEngine(t)
	seedCourse(t, store, "c1", "owner")
	ctx := context.Background()

	p := &fakeProvider{
		works: []classroom.CourseWork{{ID: "w1"}, {ID: "w2"}},
		submissions: map[string][]classroom.Submission{
			"w2": {{UserID: "s1", State: classroom.SubmissionNew}},
		},
		submissionsErr: map[string]error{"w1": errors.New("throttled")},
	}

	summary, err := engine.SyncCourseWork(ctx, p, "c1", "owner")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailedWorks)
	assert.Equal(t, 1, summary.Submissions)

	// Both works are mirrored even though one submission fetch failed.
	for _, id := range []string{"w1", "w2"} {
		_, err := store.Entity(ctx, rostergraph.NewRef(rostergraph.KindWork, id))
		assert.NoError(t, err)
	}
}

func TestSyncCourseWorkListingFailureAborts(t *testing.T) {
	engine, store := newTestEngine(t)
	seedCourse(t, store, "c1", "owner")

	p := &fakeProvider{worksErr: errors.New("boom")}

	_, err := engine.SyncCourseWork(context.Background(), p, "c1", "owner")
	assert.ErrorIs(t, err, ErrUpstream)

	// Nothing was written.
	edges, err := store.Edges(context.Background(), rostergraph.EdgeFilter{Type: rostergraph.EdgeFrom})
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestSyncCourseWorkSkipsAnonymousRecords(t *testing.T) {
	engine, store := newTestEngine(t)
	seedCourse(t, store, "c1", "owner")

	p := &fakeProvider{
		works: []classroom.CourseWork{{ID: "w1"}, {}},
		submissions: map[string][]classroom.Submission{
			"w1": {{UserID: "", State: classroom.SubmissionNew}},
		},
	}

	summary, err := engine.SyncCourseWork(context.Background(), p, "c1", "owner")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Works)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Submissions)
}

func TestSyncCourseWorkRequiresRole(t *testing.T) {
	engine, store := newTestEngine(t)
	seedCourse(t, store, "c1", "owner")

	_, err := engine.SyncCourseWork(context.Background(), &fakeProvider{}, "c1", "stranger")
	assert.ErrorIs(t, err, ErrForbidden)
}
