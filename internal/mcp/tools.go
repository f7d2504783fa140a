package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/acolita/shell-parse-mcp/internal/continuation"
	"github.com/acolita/shell-parse-mcp/internal/session"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(checkContinuationTool(), s.handleCheckContinuation)
	s.mcpServer.AddTool(sessionCreateTool(), s.handleSessionCreate)
	s.mcpServer.AddTool(sessionAppendTool(), s.handleSessionAppend)
	s.mcpServer.AddTool(sessionResetTool(), s.handleSessionReset)
	s.mcpServer.AddTool(sessionStatusTool(), s.handleSessionStatus)
	s.mcpServer.AddTool(sessionInputTool(), s.handleSessionInput)
	s.mcpServer.AddTool(sessionTreeTool(), s.handleSessionTree)
	s.mcpServer.AddTool(sessionCloseTool(), s.handleSessionClose)
}

// Tool definitions

func checkContinuationTool() mcp.Tool {
	return mcp.NewTool("shell_check_continuation",
		mcp.WithDescription("Check whether buffered shell text is closeable as-is or needs more input (open quote, heredoc, line continuation, or unmatched if/for/while/until/case)"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The buffered input to check"),
		),
	)
}

func sessionCreateTool() mcp.Tool {
	return mcp.NewTool("shell_session_create",
		mcp.WithDescription("Create an incremental parsing session that accumulates input fragments"),
		mcp.WithNumber("max_buffer_size",
			mcp.Description("Byte limit for accumulated input (default: configured limit)"),
		),
		mcp.WithBoolean("tree_updates_only",
			mcp.Description("Suppress statement events; the session only reports tree updates (default: false)"),
		),
	)
}

func sessionAppendTool() mcp.Tool {
	return mcp.NewTool("shell_session_append",
		mcp.WithDescription("Append a fragment to a session, re-parse, classify, and return any statements that newly became executable"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID returned by shell_session_create"),
		),
		mcp.WithString("fragment",
			mcp.Required(),
			mcp.Description("The input fragment to append; may be a single character or a whole file"),
		),
	)
}

func sessionResetTool() mcp.Tool {
	return mcp.NewTool("shell_session_reset",
		mcp.WithDescription("Clear a session's accumulated input and parse state"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID"),
		),
	)
}

func sessionStatusTool() mcp.Tool {
	return mcp.NewTool("shell_session_status",
		mcp.WithDescription("Report a session's buffer size and emitted statement count"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID"),
		),
	)
}

func sessionInputTool() mcp.Tool {
	return mcp.NewTool("shell_session_input",
		mcp.WithDescription("Return a session's accumulated input"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID"),
		),
	)
}

func sessionTreeTool() mcp.Tool {
	return mcp.NewTool("shell_session_tree",
		mcp.WithDescription("Return a session's current parse tree as JSON"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID"),
		),
	)
}

func sessionCloseTool() mcp.Tool {
	return mcp.NewTool("shell_session_close",
		mcp.WithDescription("Close and cleanup a parsing session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID"),
		),
	)
}

// Tool handlers

func (s *Server) handleCheckContinuation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := mcp.ParseString(req, "text", "")
	return jsonResult(continuation.Check(text))
}

func (s *Server) handleSessionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	maxBuffer := mcp.ParseInt(req, "max_buffer_size", 0)
	treeOnly := mcp.ParseBoolean(req, "tree_updates_only", false)

	sess, err := s.sessionManager.Create(session.CreateOptions{
		MaxBufferSize:     maxBuffer,
		DisableStatements: treeOnly,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slog.Info("created parsing session", slog.String("session_id", sess.ID))

	return jsonResult(map[string]any{
		"session_id": sess.ID,
		"status":     "ready",
	})
}

func (s *Server) handleSessionAppend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	fragment := mcp.ParseString(req, "fragment", "")

	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	sess, err := s.sessionManager.Get(sessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slog.Debug("appending fragment",
		slog.String("session_id", sessionID),
		slog.String("fragment", fragment),
	)

	update, err := sess.Append(fragment)
	if err != nil {
		var overflow *session.OverflowError
		if errors.As(err, &overflow) {
			return jsonResult(map[string]any{
				"session_id": sessionID,
				"rejected":   true,
				"rejection":  overflow,
			})
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	statements := make([]map[string]any, 0, len(update.Statements))
	for _, st := range update.Statements {
		statements = append(statements, map[string]any{
			"seq":       st.Seq,
			"type":      st.Node.Type,
			"text":      st.Node.Text,
			"start_row": st.Node.StartRow,
			"end_row":   st.Node.EndRow,
		})
	}

	return jsonResult(map[string]any{
		"session_id":     sessionID,
		"classification": update.Classification,
		"statements":     statements,
		"changed_ranges": update.ChangedRanges,
		"buffer_size":    sess.BufferSize(),
	})
}

func (s *Server) handleSessionReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, result := s.lookup(req)
	if result != nil {
		return result, nil
	}
	sess.Reset()
	return mcp.NewToolResultText("Session reset"), nil
}

func (s *Server) handleSessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, result := s.lookup(req)
	if result != nil {
		return result, nil
	}

	return jsonResult(map[string]any{
		"session_id":  sess.ID,
		"buffer_size": sess.BufferSize(),
		"emitted":     sess.EmittedCount(),
		"created_at":  sess.CreatedAt,
		"last_used":   sess.LastUsed,
	})
}

func (s *Server) handleSessionInput(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, result := s.lookup(req)
	if result != nil {
		return result, nil
	}
	return mcp.NewToolResultText(sess.AccumulatedInput()), nil
}

func (s *Server) handleSessionTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, result := s.lookup(req)
	if result != nil {
		return result, nil
	}

	root := sess.CurrentTree()
	if root == nil {
		return mcp.NewToolResultError("no parse tree yet"), nil
	}
	return jsonResult(root)
}

func (s *Server) handleSessionClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	if err := s.sessionManager.Close(sessionID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slog.Info("closed parsing session", slog.String("session_id", sessionID))
	return mcp.NewToolResultText("Session closed"), nil
}

// lookup resolves the session_id argument, returning an error result when
// it is absent or unknown.
func (s *Server) lookup(req mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	sessionID := mcp.ParseString(req, "session_id", "")
	if sessionID == "" {
		return nil, mcp.NewToolResultError("session_id is required")
	}
	sess, err := s.sessionManager.Get(sessionID)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return sess, nil
}

// jsonResult converts a value to a JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
