package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/support-assistant/internal/core/ports"
)

const (
	toolAsk    = "ask_document"
	toolReload = "reload_document"
)

// Server exposes one assistant session as MCP tools. The session is opened
// on the first tool call and reused for the lifetime of the process.
type Server struct {
	sessions ports.SessionService
	logger   *slog.Logger
	mcp      *server.MCPServer

	mu        sync.Mutex
	sessionID string
}

func NewServer(sessions ports.SessionService, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sessions: sessions,
		logger:   logger,
		mcp: server.NewMCPServer(
			"support-assistant",
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool(toolAsk,
		mcp.WithDescription("Answer a customer question using only the shared support document."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The customer's question, in any language."),
		),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool(toolReload,
		mcp.WithDescription("Fetch the support document again and rebuild the chunk set."),
	), s.handleReload)

	return s
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving the protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// Close releases the held session, if any.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	id := s.sessionID
	s.sessionID = ""
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	return s.sessions.Close(ctx, id)
}

func (s *Server) ensureSession(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != "" {
		return s.sessionID, nil
	}
	info, err := s.sessions.Create(ctx)
	if err != nil {
		return "", err
	}
	s.sessionID = info.ID
	if info.Error != "" {
		s.logger.Warn("mcp_session_load_failed", "session_id", info.ID, "error", info.Error)
	}
	return info.ID, nil
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question must not be empty"), nil
	}

	sessionID, err := s.ensureSession(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open session: %v", err)), nil
	}

	turn, err := s.sessions.Ask(ctx, sessionID, question)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !turn.Outcome.OK() {
		return mcp.NewToolResultError(turn.Outcome.Render()), nil
	}
	return mcp.NewToolResultText(turn.Outcome.Text), nil
}

func (s *Server) handleReload(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := s.ensureSession(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open session: %v", err)), nil
	}

	info, err := s.sessions.Reload(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reload document: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Document loaded: %d chunks ready.", info.ChunkCount)), nil
}
