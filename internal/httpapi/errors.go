package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmorales/aulalink/internal/roster"
	"github.com/dmorales/aulalink/internal/rostergraph"
	"github.com/dmorales/aulalink/internal/session"
)

// errorBody is the uniform JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain sentinels onto HTTP statuses:
// auth failures 401, role check failures 403, absent entities 404,
// duplicate role assignment 409, everything else 500.
// 401 responses always ride alongside cookie invalidation (the session
// manager clears the cookie before returning its errors).
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, session.ErrUnauthenticated),
		errors.Is(err, session.ErrExpired),
		errors.Is(err, session.ErrInvalid):
		status = http.StatusUnauthorized
	case errors.Is(err, roster.ErrForbidden),
		errors.Is(err, roster.ErrNotTeacher):
		status = http.StatusForbidden
	case errors.Is(err, roster.ErrNotFound),
		errors.Is(err, rostergraph.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, roster.ErrRoleTaken):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	c.AbortWithStatusJSON(status, errorBody{Error: err.Error()})
}

// writeBadRequest reports a validation failure. Validation runs before
// any I/O and fails fast.
func (s *Server) writeBadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: msg})
}
