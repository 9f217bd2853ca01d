package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/heromissions/internal/storage"
)

var errHistoryDisabled = errors.New("mission history is not stored on this server")

// defaultTimeRange returns start/end defaulting to the last 30 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// --- Tool definitions ---

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List the available missions. Each has an id, title, the ordered stage sequence that makes one repetition, the repetition goal and the star thresholds."),
)

var toolGetMissionHistory = mcp.NewTool("get_mission_history",
	mcp.WithDescription("Finished missions in a time range, newest first. Each includes repetitions, stars earned, whether the goal was reached, and how many classifications were rejected for low confidence or wrong order."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise id (e.g. 'sentar_e_levantar')")),
)

var toolGetMission = mcp.NewTool("get_mission",
	mcp.WithDescription("Retrieve a single finished mission by id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Mission UUID")),
)

var toolGetMissionStats = mcp.NewTool("get_mission_stats",
	mcp.WithDescription("Totals across all missions: count, repetitions, goals reached, current daily streak, and per-exercise best repetitions and stars."),
)

// --- Tool handlers ---

func jsonResult(v any) *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed")
	}
	return result
}

func (h *handlers) listExercises(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercises, err := h.exercises.Exercises(ctx)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(exercises), nil
}

func (h *handlers) getMissionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.ds == nil {
		return mcp.NewToolResultError(errHistoryDisabled.Error()), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	missions, err := h.ds.QueryMissions(ctx, start, end, uid, req.GetString("exercise", ""))
	if err != nil {
		h.log.Error("mcp get_mission_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(missions), nil
}

func (h *handlers) getMission(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.ds == nil {
		return mcp.NewToolResultError(errHistoryDisabled.Error()), nil
	}
	idStr, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid mission id"), nil
	}

	m, err := h.ds.GetMission(ctx, id, UserIDFromContext(ctx))
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("mission not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_mission", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(m), nil
}

func (h *handlers) getMissionStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.ds == nil {
		return mcp.NewToolResultError(errHistoryDisabled.Error()), nil
	}
	stats, err := h.ds.GetMissionStats(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_mission_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(stats), nil
}
