package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/pathflow"
	"github.com/aretw0/pathflow/internal/presentation/graph"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// SignalsURI is the resource listing every registered signal.
const SignalsURI = "pathflow://signals"

// RunResponse is the structured result of run_signal.
type RunResponse struct {
	RunID   string              `json:"run_id" jsonschema_description:"Identifier of the run"`
	Signal  string              `json:"signal" jsonschema_description:"Signal that was triggered"`
	Status  string              `json:"status" jsonschema_description:"completed or failed"`
	Payload any                 `json:"payload,omitempty" jsonschema_description:"Payload returned by the last action"`
	Context map[string]any      `json:"context" jsonschema_description:"Run context after the last action"`
	Trace   []domain.TraceEntry `json:"trace,omitempty" jsonschema_description:"Executed actions and selected outputs"`
	Error   string              `json:"error,omitempty" jsonschema_description:"Failure reason for failed runs"`
}

// Controller defines the part of the pathflow controller the MCP server needs.
type Controller interface {
	Signals() []string
	Inspect(name string) (domain.Signal, bool)
	Run(ctx context.Context, name string, payload any, opts ...pathflow.RunOption) (*domain.Result, error)
}

// Server wraps the pathflow Controller and exposes it as an MCP Server.
type Server struct {
	ctrl      Controller
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(ctrl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ctrl:      ctrl,
		logger:    logger,
		mcpServer: server.NewMCPServer("pathflow-mcp", strings.TrimSpace(pathflow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on addr using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		// Create a timeout context for the graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: list_signals
	s.mcpServer.AddTool(mcp.NewTool("list_signals",
		mcp.WithDescription("List the registered signals with their action trees."),
	), s.handleListSignals)

	// TOOL: run_signal
	runTool := mcp.NewTool("run_signal",
		mcp.WithDescription("Trigger a signal and wait for its result."),
		mcp.WithString("signal", mcp.Required(), mcp.Description("Signal name")),
		mcp.WithString("payload", mcp.Description("JSON value passed to the first action (optional)")),
		mcp.WithString("context", mcp.Description("JSON object seeding the run context (optional)")),
		mcp.WithString("run_id", mcp.Description("Run identifier (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunSignal))

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the Mermaid flowchart of a signal tree."),
		mcp.WithString("signal", mcp.Required(), mcp.Description("Signal name")),
	), s.handleGetGraph)
}

func (s *Server) views() []graph.View {
	names := s.ctrl.Signals()
	views := make([]graph.View, 0, len(names))
	for _, name := range names {
		if sig, ok := s.ctrl.Inspect(name); ok {
			views = append(views, graph.Describe(sig))
		}
	}
	return views
}

func (s *Server) handleListSignals(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(s.views())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	name, _ := args["signal"].(string)
	sig, ok := s.ctrl.Inspect(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%v: %s", domain.ErrUnknownSignal, name)), nil
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(sig, nil)), nil
}

func (s *Server) handleRunSignal(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RunResponse, error) {
	name, _ := args["signal"].(string)

	var payload any
	if raw, ok := args["payload"].(string); ok && raw != "" {
		if err := decodeJSON(raw, &payload); err != nil {
			return RunResponse{}, fmt.Errorf("invalid payload: %w", err)
		}
	}

	var opts []pathflow.RunOption
	if raw, ok := args["context"].(string); ok && raw != "" {
		var seed map[string]any
		if err := decodeJSON(raw, &seed); err != nil {
			return RunResponse{}, fmt.Errorf("invalid context: %w", err)
		}
		opts = append(opts, pathflow.WithContext(seed))
	}
	if id, ok := args["run_id"].(string); ok && id != "" {
		opts = append(opts, pathflow.WithRunID(id))
	}

	result, err := s.ctrl.Run(ctx, name, payload, opts...)
	if result == nil {
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}
	if err != nil {
		s.logger.Warn("MCP run_signal: run failed", "signal", name, "run_id", result.RunID, "error", err)
	}

	resp := RunResponse{
		RunID:   result.RunID,
		Signal:  result.Signal,
		Status:  string(result.Status),
		Payload: result.Payload,
		Trace:   result.Trace,
		Error:   result.Error,
	}
	if result.Context != nil {
		resp.Context = result.Context.Map()
	}
	return resp, nil
}

func decodeJSON(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func (s *Server) registerResources() {
	// EXPOSE: pathflow://signals
	s.mcpServer.AddResource(mcp.NewResource(SignalsURI, "Registered Signals",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.views())
		if err != nil {
			return nil, fmt.Errorf("failed to encode signals: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      SignalsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
