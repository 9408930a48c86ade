package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/dmorales/aulalink/internal/classroom"
	"github.com/dmorales/aulalink/internal/session"
)

// sessionKey is the gin context key the auth middleware stores the
// session under.
const sessionKey = "aulalink.session"

// requireAuth authenticates the request via the session manager and
// attaches the session to the gin context. The manager handles cookie
// rotation and invalidation itself; this middleware only translates its
// verdict into a 401.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.sessions.Authenticate(c.Writer, c.Request)
		if err != nil {
			s.writeError(c, err)
			return
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// currentSession returns the session attached by requireAuth.
func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

// provider builds a per-request roster provider authenticated as the
// session's user. No client state outlives the request.
func (s *Server) provider(sess *session.Session) *classroom.Client {
	return classroom.NewClient(
		s.providerBaseURL,
		s.httpClient,
		classroom.StaticToken(sess.Credentials.AccessToken),
		s.logger,
	)
}
