package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmorales/aulalink/internal/authz"
	"github.com/dmorales/aulalink/internal/roster"
	"github.com/dmorales/aulalink/internal/rostergraph"
)

// listCourses returns the caller's active provider courses annotated
// with their local sync status and the caller's resolved role.
func (s *Server) listCourses(c *gin.Context) {
	sess := currentSession(c)
	ctx := c.Request.Context()

	courses, err := s.provider(sess).ListCourses(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}

	type courseItem struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Section     string `json:"section,omitempty"`
		Started     bool   `json:"started"`
		PrimaryRole string `json:"primaryRole"`
	}

	items := make([]courseItem, 0, len(courses))

	for _, course := range courses {
		item := courseItem{
			ID:          course.ID,
			Name:        course.Name,
			Section:     course.Section,
			PrimaryRole: authz.RoleNone,
		}

		_, err := s.store.Entity(ctx, rostergraph.NewRef(rostergraph.KindCourse, course.ID))
		switch {
		case err == nil:
			item.Started = true

			role, err := s.resolver.Resolve(ctx, sess.Identity.ID, course.ID)
			if err != nil {
				s.writeError(c, err)
				return
			}

			item.PrimaryRole = role.Primary
		case !errors.Is(err, rostergraph.ErrNotFound):
			s.writeError(c, err)
			return
		}

		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"courses": items})
}

type startCourseRequest struct {
	CourseID string `json:"courseId"`
}

// startCourse mirrors a provider course into the store, assigning the
// caller as owner if the course has none. Ownership is immutable.
func (s *Server) startCourse(c *gin.Context) {
	var req startCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CourseID == "" {
		s.writeBadRequest(c, "no course ID provided")
		return
	}

	sess := currentSession(c)

	entity, err := s.engine.StartCourse(c.Request.Context(), s.provider(sess), req.CourseID, sess.Identity.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"course": gin.H{
		"id":   entity.Ref.Key,
		"name": entity.Attrs.String("name"),
	}})
}

// getCourse assembles the course detail: the stored course, the
// flattened roster, all cells with their members, and the caller's
// resolved role including their owned cell.
func (s *Server) getCourse(c *gin.Context) {
	sess := currentSession(c)
	ctx := c.Request.Context()
	courseID := c.Param("id")
	courseRef := rostergraph.NewRef(rostergraph.KindCourse, courseID)

	course, err := s.store.Entity(ctx, courseRef)
	if err != nil {
		s.writeError(c, err)
		return
	}

	teachers, err := s.store.Sources(ctx, rostergraph.EdgeTeacher, courseRef)
	if err != nil {
		s.writeError(c, err)
		return
	}

	students, err := s.store.Sources(ctx, rostergraph.EdgeStudent, courseRef)
	if err != nil {
		s.writeError(c, err)
		return
	}

	coords, err := s.store.Sources(ctx, rostergraph.EdgeCoord, courseRef)
	if err != nil {
		s.writeError(c, err)
		return
	}

	owners, err := s.store.Sources(ctx, rostergraph.EdgeOwner, courseRef)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var owner *userView
	if len(owners) > 0 {
		v := userViewFrom(owners[0].Entity)
		owner = &v
	}

	cells, err := s.courseCells(c, courseRef)
	if err != nil {
		return // courseCells already wrote the error
	}

	role, err := s.resolver.Resolve(ctx, sess.Identity.ID, courseID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var ownedCell *cellView
	if role.OwnedCell != nil {
		ownedCell = &cellView{
			ID:   role.OwnedCell.ID,
			Name: role.OwnedCell.Name,
		}

		for _, st := range role.OwnedCell.Students {
			ownedCell.Students = append(ownedCell.Students, userViewFrom(st))
		}

		sortUserViews(ownedCell.Students)
	}

	c.JSON(http.StatusOK, gin.H{
		"course": gin.H{
			"id":   course.Ref.Key,
			"name": course.Attrs.String("name"),
		},
		"owner":     owner,
		"teachers":  userViews(teachers),
		"coords":    userViews(coords),
		"students":  userViews(students),
		"cells":     cells,
		"role":      role,
		"ownedCell": ownedCell,
	})
}

// courseCells loads every cell of a course with its members.
func (s *Server) courseCells(c *gin.Context, courseRef rostergraph.Ref) ([]cellView, error) {
	ctx := c.Request.Context()

	related, err := s.store.Sources(ctx, rostergraph.EdgeFrom, courseRef)
	if err != nil {
		s.writeError(c, err)
		return nil, err
	}

	cells := make([]cellView, 0)

	for _, n := range related {
		if n.Entity.Ref.Kind != rostergraph.KindCell {
			continue
		}

		members, err := s.store.Sources(ctx, rostergraph.EdgeIn, n.Entity.Ref)
		if err != nil {
			s.writeError(c, err)
			return nil, err
		}

		cells = append(cells, cellView{
			ID:       n.Entity.Ref.Key,
			Name:     n.Entity.Attrs.String("name"),
			Students: userViews(members),
		})
	}

	return cells, nil
}

// postSync runs a roster reconciliation pass. On upstream failure the
// partial summary still reports which classes committed.
func (s *Server) postSync(c *gin.Context) {
	sess := currentSession(c)

	summary, err := s.engine.Sync(c.Request.Context(), s.provider(sess), c.Param("id"), sess.Identity.ID)
	if err != nil {
		if summary != nil && errors.Is(err, roster.ErrUpstream) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   err.Error(),
				"summary": summary,
			})

			return
		}

		s.writeError(c, err)

		return
	}

	c.JSON(http.StatusOK, summary)
}

// postWorkSync mirrors coursework and submissions.
func (s *Server) postWorkSync(c *gin.Context) {
	sess := currentSession(c)

	summary, err := s.engine.SyncCourseWork(c.Request.Context(), s.provider(sess), c.Param("id"), sess.Identity.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

type cellRequest struct {
	CellName string   `json:"cellName"`
	Students []string `json:"students"`
}

// postCell replaces the caller's cell for the course.
func (s *Server) postCell(c *gin.Context) {
	var req cellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBadRequest(c, "invalid request body")
		return
	}

	if req.CellName == "" {
		s.writeBadRequest(c, "invalid or missing cell name")
		return
	}

	if req.Students == nil {
		s.writeBadRequest(c, "invalid or missing students")
		return
	}

	sess := currentSession(c)

	cellID, err := s.engine.ReplaceCell(c.Request.Context(), c.Param("id"), sess.Identity.ID, req.CellName, req.Students)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cellId": cellID})
}

type roleRequest struct {
	Role string `json:"role"`
}

// postRole self-assigns a teacher or coordinator role; 409 when the
// caller already holds one.
func (s *Server) postRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Role == "" {
		s.writeBadRequest(c, "invalid or missing role")
		return
	}

	if req.Role != "teacher" && req.Role != "coordinator" {
		s.writeBadRequest(c, "invalid or missing role")
		return
	}

	sess := currentSession(c)

	if err := s.engine.AssignRole(c.Request.Context(), c.Param("id"), sess.Identity.ID, req.Role); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "role": req.Role})
}

// getStats returns the aggregated course statistics.
func (s *Server) getStats(c *gin.Context) {
	out, err := s.stats.Aggregate(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, out)
}
