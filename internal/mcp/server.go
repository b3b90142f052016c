package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clientcomms/internal/config"
	"clientcomms/internal/observability"
	"clientcomms/internal/prompt"
	"clientcomms/internal/ratelimit"
	"clientcomms/internal/store"
	"clientcomms/internal/tools"
)

const defaultMCPFileName = "mcp.txt"

type Server struct {
	Config   config.Config
	Tools    *tools.Service
	Limiter  *ratelimit.Limiter
	Logger   *slog.Logger
	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewServer(cfg config.Config, toolsSvc *tools.Service, limiter *ratelimit.Limiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Server{Config: cfg, Tools: toolsSvc, Limiter: limiter, Logger: logger, sessions: make(map[string]time.Time)}
}

func (s *Server) HandleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.validateOrigin(r); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	s.Logger.Debug("mcp request", "protocol_version", strings.TrimSpace(r.Header.Get("MCP-Protocol-Version")))

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	sessionID := r.Header.Get("MCP-Session-Id")
	if req.Method != "initialize" {
		if !s.isSessionValid(sessionID) {
			writeError(w, req.ID, -32000, "missing or invalid MCP-Session-Id")
			return
		}
	}
	if req.Method == "tools/call" {
		if ok, retry := s.Limiter.Allow(sessionID); !ok {
			s.writeDispatchError(w, req.ID, &ratelimit.Error{RetryAfterSeconds: retry})
			return
		}
	}
	result, err := s.dispatch(r.Context(), req)
	if err != nil {
		s.writeDispatchError(w, req.ID, err)
		return
	}
	if req.Method == "initialize" {
		if sessionID == "" {
			sessionID = s.newSession()
		}
		w.Header().Set("MCP-Session-Id", sessionID)
	}
	w.Header().Set("MCP-Protocol-Version", s.Config.MCP.ProtocolVersion)
	w.Header().Set("Content-Type", "application/json")
	resp := Response{JSONRPC: "2.0", ID: req.ID, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Method {
	case "initialize":
		return map[string]any{
			"protocolVersion": s.Config.MCP.ProtocolVersion,
			"serverInfo": map[string]any{
				"name":    "clientcommsd",
				"version": "1.0.0",
			},
			"capabilities": map[string]any{
				"tools":     true,
				"resources": true,
			},
		}, nil
	case "tools/list":
		return ListTools(), nil
	case "tools/call":
		return s.callTool(ctx, req)
	case "resources/list":
		return ListResources(), nil
	case "resources/read":
		return s.readResource(ctx, req)
	default:
		return nil, fmt.Errorf("unknown method: %s", req.Method)
	}
}

func (s *Server) callTool(ctx context.Context, req Request) (any, error) {
	var params ToolCallParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	exec, err := s.toolExecutor(params)
	if err != nil {
		return nil, err
	}
	replayID := observability.NewReplayID()
	ctx = observability.WithReplayID(ctx, replayID)
	start := time.Now()
	result, err := exec(ctx)
	s.Logger.Info("mcp tool call", "tool", params.Name, "replay_id", replayID, "latency_ms", time.Since(start).Milliseconds(), "error", errString(err))
	return result, err
}

func (s *Server) toolExecutor(params ToolCallParams) (func(context.Context) (any, error), error) {
	switch params.Name {
	case "draft_client_message":
		var input DraftArgs
		if err := json.Unmarshal(params.Arguments, &input); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		task, err := prompt.ParseTask(input.Task)
		if err != nil {
			return nil, fmt.Errorf("invalid task: %w", err)
		}
		if task.IsEmpty() {
			task = prompt.DefaultTask()
		}
		name := input.FileName
		if name == "" {
			name = defaultMCPFileName
		}
		return func(ctx context.Context) (any, error) {
			return s.Tools.ProcessCase(ctx, name, input.Text, task), nil
		}, nil
	case "agent_info":
		return func(context.Context) (any, error) {
			return map[string]any{"agents": s.Tools.AgentInfo()}, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown tool: %s", params.Name)
	}
}

func (s *Server) readResource(ctx context.Context, req Request) (any, error) {
	var params ResourceReadParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	switch {
	case params.URI == "clientcomms://agents":
		return map[string]any{"agents": s.Tools.AgentInfo()}, nil
	case strings.HasPrefix(params.URI, "clientcomms://jobs/"):
		id := strings.TrimPrefix(params.URI, "clientcomms://jobs/")
		job, err := s.Tools.GetJob(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("resource not found: %s", params.URI)
			}
			return nil, err
		}
		return map[string]any{"job": job}, nil
	default:
		return nil, fmt.Errorf("resource not found: %s", params.URI)
	}
}

func (s *Server) validateOrigin(r *http.Request) error {
	origin := r.Header.Get("Origin")
	if s.Config.Dev.Mode {
		return nil
	}
	if origin == "" {
		if s.Config.Security.APIKey == "" {
			return errors.New("missing origin")
		}
		if r.Header.Get("X-API-Key") != s.Config.Security.APIKey {
			return errors.New("invalid api key")
		}
		return nil
	}
	if len(s.Config.MCP.AllowOrigins) == 0 {
		return nil
	}
	for _, allowed := range s.Config.MCP.AllowOrigins {
		if origin == allowed {
			return nil
		}
	}
	return errors.New("origin not allowed")
}

func (s *Server) writeDispatchError(w http.ResponseWriter, id any, err error) {
	var rateErr *ratelimit.Error
	switch {
	case errors.As(err, &rateErr):
		writeErrorWithData(w, id, -32042, "rate_limited", map[string]any{
			"retryable":           true,
			"retry_after_seconds": rateErr.RetryAfterSeconds,
		})
	case errors.Is(err, tools.ErrJobsDisabled):
		writeErrorWithData(w, id, -32043, "jobs_disabled", map[string]any{"retryable": false})
	default:
		writeError(w, id, -32000, err.Error())
	}
}

func (s *Server) newSession() string {
	sessionID := uuid.NewString()
	s.mu.Lock()
	s.sessions[sessionID] = time.Now().Add(24 * time.Hour)
	s.mu.Unlock()
	return sessionID
}

func (s *Server) isSessionValid(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	expiry, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return time.Now().Before(expiry)
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return errors.New("missing params")
	}
	return json.Unmarshal(raw, out)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	writeErrorWithData(w, id, code, message, nil)
}

func writeErrorWithData(w http.ResponseWriter, id any, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	resp := Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &ResponseError{Code: code, Message: message, Data: data},
	}
	_ = json.NewEncoder(w).Encode(resp)
}
