package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/susi/internal/trigger"
)

// NewMCPServer creates an MCP server exposing run history and manual
// triggers as tools.
func NewMCPServer(deps Deps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"susi",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("susi publishes social media posts from a OneDrive workbook and image folder."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("run_cycle",
			mcp.WithDescription("Start one pass of a pipeline in the background. Returns the run record; poll list_runs for the outcome."),
			mcp.WithString("workflow", mcp.Description("Pipeline to run: content or images"), mcp.Required()),
		),
		mcpRunCycle(deps),
	)

	s.AddTool(
		mcp.NewTool("list_runs",
			mcp.WithDescription("List recent pipeline runs, newest first."),
			mcp.WithString("workflow", mcp.Description("Optional filter: content or images")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
		),
		mcpListRuns(deps),
	)

	s.AddTool(
		mcp.NewTool("list_seen_images",
			mcp.WithDescription("List images that were published and archived."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of images (default 20)")),
		),
		mcpListSeen(deps),
	)

	s.AddTool(
		mcp.NewTool("list_notifications",
			mcp.WithDescription("List recent notification delivery attempts."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 20)")),
		),
		mcpListNotifications(deps),
	)

	return s
}

func mcpRunCycle(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		wf, err := req.RequireString("workflow")
		if err != nil {
			return mcpError("workflow is required"), nil
		}
		if deps.Runner == nil {
			return mcpError("no pipeline runner attached"), nil
		}
		run, err := deps.Runner.Start(deps.baseContext(), wf)
		if errors.Is(err, trigger.ErrBusy) {
			return mcpError("a pipeline pass is already running; try again later"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to start %s: %v", wf, err)), nil
		}
		return mcpJSON(viewRun(run))
	}
}

func mcpListRuns(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		runs, err := deps.Store.ListRuns(req.GetString("workflow", ""), toolLimit(req))
		if err != nil {
			return mcpError(fmt.Sprintf("listing runs failed: %v", err)), nil
		}
		out := make([]RunView, 0, len(runs))
		for _, r := range runs {
			out = append(out, viewRun(r))
		}
		return mcpJSON(out)
	}
}

func mcpListSeen(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		imgs, err := deps.Store.ListSeenImages(toolLimit(req))
		if err != nil {
			return mcpError(fmt.Sprintf("listing seen images failed: %v", err)), nil
		}
		out := make([]SeenView, 0, len(imgs))
		for _, img := range imgs {
			out = append(out, SeenView(img))
		}
		return mcpJSON(out)
	}
}

func mcpListNotifications(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ns, err := deps.Store.ListNotifications(toolLimit(req))
		if err != nil {
			return mcpError(fmt.Sprintf("listing notifications failed: %v", err)), nil
		}
		out := make([]NotificationView, 0, len(ns))
		for _, n := range ns {
			out = append(out, NotificationView(n))
		}
		return mcpJSON(out)
	}
}

func toolLimit(req mcp.CallToolRequest) int {
	limit := req.GetInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	return min(limit, maxLimit)
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
