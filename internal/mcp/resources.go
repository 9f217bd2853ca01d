package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) exerciseCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	exercises, err := h.exercises.Exercises(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, exercises)
}

func (h *handlers) recentMissions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.ds == nil {
		return nil, errHistoryDisabled
	}
	uid := UserIDFromContext(ctx)
	end := time.Now()
	start := end.AddDate(0, 0, -14)

	missions, err := h.ds.QueryMissions(ctx, start, end, uid, "")
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, missions)
}
