package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/heromissions/internal/mcp"
	"github.com/meltforce/heromissions/internal/models"
	"github.com/meltforce/heromissions/internal/session"
	"github.com/meltforce/heromissions/internal/storage"
)

// Store is the mission history the API reads from. *storage.DB satisfies it.
type Store interface {
	UserStore
	QueryMissions(ctx context.Context, start, end time.Time, userID int, exercise string) ([]models.MissionResult, error)
	GetMission(ctx context.Context, id uuid.UUID, userID int) (*models.MissionResult, error)
	GetMissionStats(ctx context.Context, userID int) (*storage.MissionStats, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	missions *session.Manager
	store    Store
	whois    WhoIsClient
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured. store may be nil when
// history is disabled; history routes then answer 503.
func New(missions *session.Manager, store Store, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		missions: missions,
		store:    store,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches identity from the dev user to Tailscale WhoIs.
func (s *Server) SetTailscale(whois WhoIsClient) {
	s.whois = whois
}

// SetMCP mounts a streamable HTTP MCP endpoint at /mcp. Tool calls run as
// the identity resolved for the HTTP request.
func (s *Server) SetMCP(m *mcpserver.MCPServer) {
	h := mcpserver.NewStreamableHTTPServer(m,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return mcp.WithUserID(ctx, userIDFromContext(r))
		}),
	)
	s.router.Handle("/mcp", h)
}

func (s *Server) identity(next http.Handler) http.Handler {
	var users UserStore
	dev := DevIdentity(next)
	if s.store != nil {
		users = s.store
		dev = StoredDevIdentity(users, s.log)(next)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois, users, s.log)(next).ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Get("/api/v1/me", s.handleMe)
	s.router.Get("/api/v1/exercises", s.handleListExercises)
	s.router.Get("/api/v1/exercises/{id}", s.handleGetExercise)

	// Live mission endpoints (API key required)
	s.router.Route("/api/v1/missions", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/", s.handleStartMission)
		r.Get("/{id}", s.handleMissionStatus)
		r.Post("/{id}/classifications", s.handleClassify)
		r.Post("/{id}/landmarks", s.handleLandmarks)
		r.Post("/{id}/end", s.handleEndMission)
	})

	// History endpoints (no API key; tsnet handles access)
	s.router.Get("/api/v1/history", s.handleQueryHistory)
	s.router.Get("/api/v1/history/{id}", s.handleGetHistory)
	s.router.Get("/api/v1/stats", s.handleStats)
}
