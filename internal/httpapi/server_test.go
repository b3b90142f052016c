package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientcomms/internal/agent"
	"clientcomms/internal/config"
	"clientcomms/internal/llm"
	"clientcomms/internal/observability"
	"clientcomms/internal/policy"
	"clientcomms/internal/prompt"
	"clientcomms/internal/ratelimit"
	"clientcomms/internal/tools"
)

type capturingProvider struct {
	raw  string
	user string
}

func (p *capturingProvider) Name() string { return string(llm.OpenAIProvider) }

func (p *capturingProvider) Invoke(_ context.Context, pair prompt.Pair, _ llm.Settings) (string, error) {
	p.user = pair.User
	return p.raw, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newServer(t *testing.T, cfg config.Config, provider llm.Provider, limiter *ratelimit.Limiter) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	guru, err := agent.New(cfg.LLM, llm.NewRegistry(provider))
	require.NoError(t, err)
	svc := tools.NewService(guru, nil, nil, policy.Policy{}, nil, nil)
	reg := prometheus.NewRegistry()
	observability.MustNewMetrics(reg)
	return New(Options{Config: cfg, Service: svc, Limiter: limiter, Gatherer: reg})
}

func uploadRequest(t *testing.T, path, fileName string, content []byte, task string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if task != "" {
		require.NoError(t, w.WriteField("task", task))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"].(string)
}

const goodReply = "```json\n{\"tone\":\"worried\",\"message_draft\":\"Dear X\",\"reasoning\":\"calm tone\"}\n```"

func TestRootStatus(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: goodReply}, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"running"`)
	assert.NotEmpty(t, rec.Header().Get("X-Replay-Id"))
}

func TestProcessFileSuccess(t *testing.T) {
	provider := &capturingProvider{raw: goodReply}
	s := newServer(t, config.Default(), provider, nil)

	rec := serve(s, uploadRequest(t, "/process_file", "case.txt", []byte("Client is worried about the hearing."), ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report tools.CaseReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "case.txt", report.File)
	assert.Equal(t, agent.Result{Tone: "worried", MessageDraft: "Dear X", Reasoning: "calm tone"}, report.Results[agent.ID])
	assert.Contains(t, provider.user, "Client is worried about the hearing.")
	assert.Contains(t, provider.user, `"task_type": "client_message"`)
}

func TestProcessFileCustomTaskKeepsKeyOrder(t *testing.T) {
	provider := &capturingProvider{raw: goodReply}
	s := newServer(t, config.Default(), provider, nil)

	rec := serve(s, uploadRequest(t, "/process_file", "case.txt", []byte("text"), `{"zeta":1,"alpha":2}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, strings.Index(provider.user, `"zeta"`), strings.Index(provider.user, `"alpha"`))
}

func TestProcessFileAgentFailureIsStill200(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: "not json at all"}, nil)
	rec := serve(s, uploadRequest(t, "/process_file", "case.txt", []byte("text"), ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results map[string]map[string]string `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	res := body.Results[agent.ID]
	assert.Equal(t, "error", res["tone"])
	assert.Equal(t, "", res["message_draft"])
	assert.NotEmpty(t, res["error"])
}

func TestProcessFileRejectsNonText(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: goodReply}, nil)
	rec := serve(s, uploadRequest(t, "/process_file", "case.pdf", []byte("%PDF"), ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only .txt files are supported", detail(t, rec))
}

func TestProcessFileRejectsInvalidUTF8(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: goodReply}, nil)
	rec := serve(s, uploadRequest(t, "/process_file", "case.txt", []byte{0xff, 0xfe, 0xfd}, ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File must be valid UTF-8 encoded text", detail(t, rec))
}

func TestProcessFileRejectsBadTask(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: goodReply}, nil)
	rec := serve(s, uploadRequest(t, "/process_file", "case.txt", []byte("text"), `["not","object"]`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Task must be a JSON object", detail(t, rec))
}

func TestProcessFileRequiresFile(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: goodReply}, nil)
	rec := serve(s, uploadRequest(t, "/process_file", "", nil, `{"a":1}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessFileTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Upload.MaxBytes = 16
	s := newServer(t, cfg, &capturingProvider{raw: goodReply}, nil)
	rec := serve(s, uploadRequest(t, "/process_file", "case.txt", bytes.Repeat([]byte("a"), 100), ""))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestProcessFileRateLimited(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: goodReply}, ratelimit.New(1))
	first := serve(s, uploadRequest(t, "/process_file", "case.txt", []byte("text"), ""))
	require.Equal(t, http.StatusOK, first.Code)
	second := serve(s, uploadRequest(t, "/process_file", "case.txt", []byte("text"), ""))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestJobsUnavailableWithoutBackends(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: goodReply}, nil)
	rec := serve(s, uploadRequest(t, "/v1/jobs", "case.txt", []byte("text"), ""))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/v1/jobs/abc", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAgentsEndpoint(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: goodReply}, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/v1/agents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Client Communication Guru")
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	guru, err := agent.New(cfg.LLM, llm.NewRegistry(&capturingProvider{raw: goodReply}))
	require.NoError(t, err)
	svc := tools.NewService(guru, nil, nil, policy.Policy{}, nil, nil)
	s := New(Options{Config: cfg, Service: svc, Checks: map[string]Pinger{"redis": failingPinger{}}})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: goodReply}, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newServer(t, config.Default(), &capturingProvider{raw: goodReply}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/process_file", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := serve(s, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
