package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type tokenRequest struct {
	Code string `json:"code"`
}

type tokenResponse struct {
	User           any    `json:"user"`
	SessionCreated bool   `json:"sessionCreated"`
	TokenExpires   string `json:"tokenExpires,omitempty"`
}

// postToken exchanges an authorization code for a session. The new
// session cookie carries the credential bundle, the identity snapshot,
// and the creation timestamp that anchors the 7-day TTL.
func (s *Server) postToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		s.writeBadRequest(c, "no code provided")
		return
	}

	creds, err := s.oauth.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		s.writeError(c, err)
		return
	}

	identity, err := s.oauth.UserInfo(c.Request.Context(), creds.AccessToken)
	if err != nil {
		s.writeError(c, err)
		return
	}

	sess, err := s.sessions.Issue(c.Writer, creds, identity)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := tokenResponse{
		User:           sess.Identity,
		SessionCreated: true,
	}

	if !creds.Expiry.IsZero() {
		resp.TokenExpires = creds.Expiry.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// postLogout clears the session cookie. Logging out without a session
// is fine.
func (s *Server) postLogout(c *gin.Context) {
	s.sessions.Clear(c.Writer)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// getMe returns the authenticated identity attached by the middleware.
func (s *Server) getMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentSession(c).Identity})
}
