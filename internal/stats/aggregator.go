// Package stats aggregates per-cell and course-level completion and
// grading figures from is_assigned submission edges.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/dmorales/aulalink/internal/rostergraph"
)

// Grade band thresholds.
const (
	bandExcellent    = 90
	bandGood         = 80
	bandSatisfactory = 70
)

// percent scales a ratio; rounding is to two decimals throughout.
const percent = 100

// GradeDistribution buckets graded submissions into fixed bands.
type GradeDistribution struct {
	Excellent        int `json:"excellent"`        // 90-100
	Good             int `json:"good"`             // 80-89
	Satisfactory     int `json:"satisfactory"`     // 70-79
	NeedsImprovement int `json:"needsImprovement"` // below 70
}

// WorkStats counts submissions against the expected total
// (students × works).
type WorkStats struct {
	Total     int `json:"total"`
	Submitted int `json:"submitted"`
	Graded    int `json:"graded"`
	Pending   int `json:"pending"`
}

// CellStats is the aggregate for one cell.
type CellStats struct {
	CellID            string            `json:"cellId"`
	CellName          string            `json:"cellName"`
	TeacherName       string            `json:"teacherName,omitempty"`
	StudentCount      int               `json:"studentCount"`
	AverageGrade      float64           `json:"averageGrade"`
	CompletionRate    float64           `json:"completionRate"`
	LateSubmissions   int               `json:"lateSubmissions"`
	WorkStats         WorkStats         `json:"workStats"`
	GradeDistribution GradeDistribution `json:"gradeDistribution"`
}

// CourseStats is the course-level rollup.
type CourseStats struct {
	TotalStudents         int               `json:"totalStudents"`
	TotalWorks            int               `json:"totalWorks"`
	OverallCompletionRate float64           `json:"overallCompletionRate"`
	OverallAverageGrade   float64           `json:"overallAverageGrade"`
	Cells                 []CellStats       `json:"cells"`
	GradeDistribution     GradeDistribution `json:"gradeDistribution"`
}

// Aggregator computes course statistics from the graph store.
type Aggregator struct {
	store  *rostergraph.Store
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(store *rostergraph.Store, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{store: store, logger: logger}
}

// Aggregate computes per-cell and course-level statistics by joining
// is_assigned edges against the course's cell and work sets.
func (a *Aggregator) Aggregate(ctx context.Context, courseID string) (*CourseStats, error) {
	courseRef := rostergraph.NewRef(rostergraph.KindCourse, courseID)

	// is_from points at the course from both cells and works; split by kind.
	related, err := a.store.Sources(ctx, rostergraph.EdgeFrom, courseRef)
	if err != nil {
		return nil, fmt.Errorf("stats: listing course cells and works: %w", err)
	}

	var cells, works []rostergraph.Entity

	for _, n := range related {
		switch n.Entity.Ref.Kind {
		case rostergraph.KindCell:
			cells = append(cells, n.Entity)
		case rostergraph.KindWork:
			works = append(works, n.Entity)
		}
	}

	workSet := make(map[string]bool, len(works))
	for _, w := range works {
		workSet[w.Ref.Key] = true
	}

	students, err := a.store.Sources(ctx, rostergraph.EdgeStudent, courseRef)
	if err != nil {
		return nil, fmt.Errorf("stats: listing course students: %w", err)
	}

	out := &CourseStats{
		TotalStudents: len(students),
		TotalWorks:    len(works),
		Cells:         make([]CellStats, 0, len(cells)),
	}

	var (
		totalSubmitted   int
		totalGraded      int
		weightedGradeSum float64
	)

	for _, cell := range cells {
		cs, err := a.cellStats(ctx, cell, workSet, len(works))
		if err != nil {
			return nil, err
		}

		out.Cells = append(out.Cells, *cs)

		totalSubmitted += cs.WorkStats.Submitted
		totalGraded += cs.WorkStats.Graded
		weightedGradeSum += cs.AverageGrade * float64(cs.WorkStats.Graded)

		out.GradeDistribution.Excellent += cs.GradeDistribution.Excellent
		out.GradeDistribution.Good += cs.GradeDistribution.Good
		out.GradeDistribution.Satisfactory += cs.GradeDistribution.Satisfactory
		out.GradeDistribution.NeedsImprovement += cs.GradeDistribution.NeedsImprovement
	}

	if expected := out.TotalStudents * out.TotalWorks; expected > 0 {
		out.OverallCompletionRate = round2(float64(totalSubmitted) / float64(expected) * percent)
	}

	if totalGraded > 0 {
		out.OverallAverageGrade = round2(weightedGradeSum / float64(totalGraded))
	}

	a.logger.Debug("course stats aggregated",
		slog.String("course_id", courseID),
		slog.Int("cells", len(out.Cells)),
		slog.Int("works", out.TotalWorks),
		slog.Int("students", out.TotalStudents),
	)

	return out, nil
}

// cellStats aggregates one cell's submissions over the course's work set.
func (a *Aggregator) cellStats(ctx context.Context, cell rostergraph.Entity, workSet map[string]bool, workCount int) (*CellStats, error) {
	cs := &CellStats{
		CellID:   cell.Ref.Key,
		CellName: cell.Attrs.String("name"),
	}

	teachers, err := a.store.Targets(ctx, rostergraph.EdgeBelongsTo, cell.Ref)
	if err != nil {
		return nil, fmt.Errorf("stats: resolving cell teacher: %w", err)
	}

	if len(teachers) > 0 {
		cs.TeacherName = teachers[0].Entity.Attrs.String("name")
	}

	members, err := a.store.Sources(ctx, rostergraph.EdgeIn, cell.Ref)
	if err != nil {
		return nil, fmt.Errorf("stats: listing cell students: %w", err)
	}

	cs.StudentCount = len(members)

	var gradeSum float64

	for _, m := range members {
		assigned, err := a.store.Targets(ctx, rostergraph.EdgeAssigned, m.Entity.Ref)
		if err != nil {
			return nil, fmt.Errorf("stats: listing submissions: %w", err)
		}

		for _, sub := range assigned {
			if !workSet[sub.Entity.Ref.Key] {
				continue
			}

			cs.WorkStats.Submitted++

			if sub.EdgeAttrs.Bool("late") {
				cs.LateSubmissions++
			}

			grade, graded := sub.EdgeAttrs.Float("grade")
			if !graded {
				continue
			}

			cs.WorkStats.Graded++
			gradeSum += grade

			switch {
			case grade >= bandExcellent:
				cs.GradeDistribution.Excellent++
			case grade >= bandGood:
				cs.GradeDistribution.Good++
			case grade >= bandSatisfactory:
				cs.GradeDistribution.Satisfactory++
			default:
				cs.GradeDistribution.NeedsImprovement++
			}
		}
	}

	cs.WorkStats.Total = cs.StudentCount * workCount
	cs.WorkStats.Pending = cs.WorkStats.Total - cs.WorkStats.Submitted

	if cs.WorkStats.Graded > 0 {
		cs.AverageGrade = round2(gradeSum / float64(cs.WorkStats.Graded))
	}

	if cs.WorkStats.Total > 0 {
		cs.CompletionRate = round2(float64(cs.WorkStats.Submitted) / float64(cs.WorkStats.Total) * percent)
	}

	return cs, nil
}

func round2(f float64) float64 {
	return math.Round(f*percent) / percent
}
