package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clientcomms/internal/agent"
	"clientcomms/internal/config"
	"clientcomms/internal/llm"
	"clientcomms/internal/policy"
	"clientcomms/internal/ratelimit"
	"clientcomms/internal/tools"
)

func newTestServer(t *testing.T, cfg config.Config, limiter *ratelimit.Limiter) *Server {
	t.Helper()
	cfg.LLM.Provider = "noop"
	guru, err := agent.New(cfg.LLM, llm.NewRegistry(llm.NewNoop()))
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	svc := tools.NewService(guru, nil, nil, policy.Policy{}, nil, nil)
	return NewServer(cfg, svc, limiter, nil)
}

func post(t *testing.T, srv *Server, sessionID string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("MCP-Session-Id", sessionID)
	}
	rec := httptest.NewRecorder()
	srv.HandleHTTP(rec, req)
	return rec
}

func initialize(t *testing.T, srv *Server) string {
	t.Helper()
	rec := post(t, srv, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("initialize status %d", rec.Code)
	}
	session := rec.Header().Get("MCP-Session-Id")
	if session == "" {
		t.Fatalf("expected session header")
	}
	return session
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestHandleHTTPRequiresSession(t *testing.T) {
	srv := newTestServer(t, config.Default(), nil)
	resp := decode(t, post(t, srv, "", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected session error, got %+v", resp)
	}
}

func TestHandleHTTPRejectsGet(t *testing.T) {
	srv := newTestServer(t, config.Default(), nil)
	rec := httptest.NewRecorder()
	srv.HandleHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleHTTPProductionRequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Dev.Mode = false
	cfg.Security.APIKey = "secret"
	srv := newTestServer(t, cfg, nil)

	rec := post(t, srv, "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without api key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.HandleHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with api key, got %d", rec.Code)
	}
}

func TestToolsListNamesDraftTool(t *testing.T) {
	srv := newTestServer(t, config.Default(), nil)
	session := initialize(t, srv)
	rec := post(t, srv, session, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if !strings.Contains(rec.Body.String(), "draft_client_message") || !strings.Contains(rec.Body.String(), "agent_info") {
		t.Fatalf("unexpected tools list %s", rec.Body.String())
	}
}

func TestDraftClientMessageTool(t *testing.T) {
	srv := newTestServer(t, config.Default(), nil)
	session := initialize(t, srv)
	body := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"draft_client_message","arguments":{"text":"The client is furious about the delay.","task":{"task_type":"client_message"}}}}`
	resp := decode(t, post(t, srv, session, body))
	if resp.Error != nil {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
	result, _ := json.Marshal(resp.Result)
	var report tools.CaseReport
	if err := json.Unmarshal(result, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	draft := report.Results[agent.ID]
	if draft.Failed() || draft.Tone != "frustrated, expects accountability" {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if report.ReplayID == "" || report.File != defaultMCPFileName {
		t.Fatalf("unexpected report envelope %+v", report)
	}
}

func TestDraftClientMessageRejectsNonObjectTask(t *testing.T) {
	srv := newTestServer(t, config.Default(), nil)
	session := initialize(t, srv)
	body := `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"draft_client_message","arguments":{"text":"x","task":[1,2]}}}`
	resp := decode(t, post(t, srv, session, body))
	if resp.Error == nil || !strings.Contains(resp.Error.Message, "invalid task") {
		t.Fatalf("expected invalid task error, got %+v", resp)
	}
}

func TestToolCallRateLimited(t *testing.T) {
	srv := newTestServer(t, config.Default(), ratelimit.New(1))
	session := initialize(t, srv)
	body := `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"agent_info","arguments":{}}}`
	if resp := decode(t, post(t, srv, session, body)); resp.Error != nil {
		t.Fatalf("first call should pass: %+v", resp.Error)
	}
	resp := decode(t, post(t, srv, session, body))
	if resp.Error == nil || resp.Error.Code != -32042 {
		t.Fatalf("expected rate limit error, got %+v", resp)
	}
}

func TestReadJobResourceWithoutStore(t *testing.T) {
	srv := newTestServer(t, config.Default(), nil)
	session := initialize(t, srv)
	body := `{"jsonrpc":"2.0","id":6,"method":"resources/read","params":{"uri":"clientcomms://jobs/abc"}}`
	resp := decode(t, post(t, srv, session, body))
	if resp.Error == nil || resp.Error.Code != -32043 {
		t.Fatalf("expected jobs disabled error, got %+v", resp)
	}
}

func TestServeStream(t *testing.T) {
	srv := newTestServer(t, config.Default(), nil)
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n\n" + `{"jsonrpc":"2.0","id":2,"method":"nope"}` + "\n")
	var out bytes.Buffer
	if err := ServeStream(context.Background(), srv, in, &out); err != nil {
		t.Fatalf("serve stream: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two responses, got %d: %s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "draft_client_message") {
		t.Fatalf("unexpected first response %s", lines[0])
	}
	if !strings.Contains(lines[1], "unknown method") {
		t.Fatalf("unexpected second response %s", lines[1])
	}
}
