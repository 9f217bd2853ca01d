package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
// ds may be nil when mission history is not stored; history tools then
// report an error instead of data.
func New(ds DataSource, exercises ExerciseSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("HeroMissions", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("HeroMissions exercise game server. List the available missions and query a player's finished missions, repetitions, stars and streaks. All history is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, exercises: exercises, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolGetMissionHistory, Handler: h.getMissionHistory},
		server.ServerTool{Tool: toolGetMission, Handler: h.getMission},
		server.ServerTool{Tool: toolGetMissionStats, Handler: h.getMissionStats},
	)

	s.AddResources(
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
		server.ServerResource{Resource: resRecentMissions, Handler: h.recentMissions},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds        DataSource
	exercises ExerciseSource
	log       *slog.Logger
}

var resExerciseCatalog = mcp.NewResource(
	"heromissions://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("All missions with their stage sequence, goal and star thresholds"),
	mcp.WithMIMEType("application/json"),
)

var resRecentMissions = mcp.NewResource(
	"heromissions://recent_missions",
	"Recent Missions",
	mcp.WithResourceDescription("Missions finished in the last 14 days"),
	mcp.WithMIMEType("application/json"),
)
