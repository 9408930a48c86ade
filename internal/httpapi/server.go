// Package httpapi exposes the aulalink HTTP surface: auth endpoints,
// course reads, and the sync and cell mutation endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmorales/aulalink/internal/authz"
	"github.com/dmorales/aulalink/internal/classroom"
	"github.com/dmorales/aulalink/internal/roster"
	"github.com/dmorales/aulalink/internal/rostergraph"
	"github.com/dmorales/aulalink/internal/session"
	"github.com/dmorales/aulalink/internal/stats"
)

// Options wires the server's collaborators. Uses a struct because the
// dependency list is long for positional parameters.
type Options struct {
	Store           *rostergraph.Store
	Sessions        *session.Manager
	OAuth           *classroom.OAuthClient
	Engine          *roster.Engine
	Resolver        *authz.Resolver
	Stats           *stats.Aggregator
	ProviderBaseURL string // defaults to classroom.DefaultBaseURL
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	router          *gin.Engine
	store           *rostergraph.Store
	sessions        *session.Manager
	oauth           *classroom.OAuthClient
	engine          *roster.Engine
	resolver        *authz.Resolver
	stats           *stats.Aggregator
	providerBaseURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

// New assembles the server and its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := opts.ProviderBaseURL
	if baseURL == "" {
		baseURL = classroom.DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	s := &Server{
		router:          gin.New(),
		store:           opts.Store,
		sessions:        opts.Sessions,
		oauth:           opts.OAuth,
		engine:          opts.Engine,
		resolver:        opts.Resolver,
		stats:           opts.Stats,
		providerBaseURL: baseURL,
		httpClient:      httpClient,
		logger:          logger,
	}

	s.router.Use(gin.Recovery(), s.requestLog())
	s.routes()

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	auth := s.router.Group("/auth")
	auth.POST("/token", s.postToken)
	auth.POST("/logout", s.postLogout)
	auth.GET("/me", s.requireAuth(), s.getMe)

	courses := s.router.Group("/courses", s.requireAuth())
	courses.GET("", s.listCourses)
	courses.POST("", s.startCourse)
	courses.GET("/:id", s.getCourse)
	courses.POST("/:id/sync", s.postSync)
	courses.POST("/:id/work/sync", s.postWorkSync)
	courses.POST("/:id/cell", s.postCell)
	courses.POST("/:id/role", s.postRole)
	courses.GET("/:id/stats", s.getStats)
}

// requestLog emits one structured line per request.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		s.logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// TokenRecorder persists refresh credentials into the graph store as
// token entities. Passed to the session manager, which invokes it
// fire-and-forget off the authentication path.
type TokenRecorder struct {
	Store *rostergraph.Store
}

// SaveRefreshToken upserts the user's token entity.
func (t *TokenRecorder) SaveRefreshToken(ctx context.Context, userID, refreshToken string, expiry time.Time) error {
	return t.Store.UpsertEntity(ctx,
		rostergraph.NewRef(rostergraph.KindToken, userID),
		rostergraph.Attrs{
			"refresh_token": refreshToken,
			"expiry":        expiry.Format(time.RFC3339),
		},
	)
}
