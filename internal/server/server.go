// Package server exposes a session as a single MCP tool over stdio.
package server

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Iron-Ham/termrelay/internal/config"
	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/logging"
)

const (
	toolTitle       = "Execute command in terminal"
	toolDescription = "Type a single-line shell command into the attached terminal and return " +
		"the output it printed. Output is whatever the terminal displayed between the command's " +
		"start and end, without ANSI escapes. The exit status is not reported."

	argCommand = "command"
	argTimeout = "timeout_seconds"
)

// Executor runs one command and returns its output.
type Executor interface {
	Execute(ctx context.Context, command string, timeout time.Duration) (string, error)
}

// Server is an MCP server with one command-execution tool.
type Server struct {
	exec   Executor
	mcp    *server.MCPServer
	tool   string
	logger *logging.Logger

	// Calls are serialized here; the session refuses overlapping ones.
	mu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New registers the tool named by cfg.ToolName backed by exec.
func New(exec Executor, cfg config.ServerConfig, version string, opts ...Option) *Server {
	s := &Server{
		exec:   exec,
		tool:   cfg.ToolName,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("mcp")

	s.mcp = server.NewMCPServer(cfg.Name, version, server.WithToolCapabilities(false))
	s.mcp.AddTool(mcp.NewTool(cfg.ToolName,
		mcp.WithDescription(toolDescription),
		mcp.WithTitleAnnotation(toolTitle),
		mcp.WithString(argCommand,
			mcp.Required(),
			mcp.Description("Shell command to run, on one line"),
		),
		mcp.WithNumber(argTimeout,
			mcp.Description("Seconds to wait for the command to finish (default from config)"),
		),
	), s.handleExecute)
	return s
}

// Serve speaks MCP on in and out until ctx is canceled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("serving", "tool", s.tool)
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// MCPServer returns the underlying server, for callers that want another transport.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := request.RequireString(argCommand)
	if err != nil {
		return mcp.NewToolResultError(errors.CategoryInvalid + ": " + err.Error()), nil
	}
	seconds := request.GetFloat(argTimeout, 0)
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s must be a non-negative number", errors.CategoryInvalid, argTimeout)), nil
	}
	timeout := time.Duration(seconds * float64(time.Second))

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	out, err := s.exec.Execute(ctx, command, timeout)
	if err != nil {
		category := errors.Describe(err)
		if errors.GetSeverity(err) >= errors.SeverityError {
			s.logger.Error("tool call failed", "category", category, "error", err.Error())
		} else {
			s.logger.Warn("tool call failed", "category", category, "error", err.Error())
		}
		msg := category + ": " + err.Error()
		if errors.IsRetryable(err) {
			msg += " (" + errors.RetryHint + ")"
		}
		return mcp.NewToolResultError(msg), nil
	}

	s.logger.Debug("tool call completed", "elapsed_ms", time.Since(start).Milliseconds(), "output_bytes", len(out))
	return mcp.NewToolResultText(out), nil
}
