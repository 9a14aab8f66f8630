package httprouter_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidbatch/internal/config"
	"vidbatch/internal/consts"
	"vidbatch/internal/depmanager"
	"vidbatch/internal/entity"
	httprouter "vidbatch/internal/infrastructure/delivery/http"
	"vidbatch/internal/observability"
	"vidbatch/internal/service"
	"vidbatch/internal/session"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeProber struct {
	missing bool
}

func (p fakeProber) RequiredTools() []depmanager.BinaryName {
	return []depmanager.BinaryName{depmanager.BinaryYTdlp, depmanager.BinaryFFmpeg}
}

func (p fakeProber) Probe(tools ...depmanager.BinaryName) []entity.CapabilityCheck {
	checks := make([]entity.CapabilityCheck, 0, len(tools))
	for _, tool := range tools {
		present := !p.missing || tool != depmanager.BinaryFFmpeg
		checks = append(checks, entity.CapabilityCheck{Tool: string(tool), Present: present})
	}

	return checks
}

// fileExecutor writes the URL into the destination unless the URL contains "fail".
type fileExecutor struct{}

func (fileExecutor) Execute(_ context.Context, url, destination string) entity.Outcome {
	if strings.Contains(url, "fail") {
		return entity.Outcome{Status: entity.OutcomeFailure, Error: "ERROR: unsupported url"}
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return entity.Outcome{Status: entity.OutcomeFailure, Error: err.Error()}
	}

	if err := os.WriteFile(destination, []byte("video:"+url), 0o600); err != nil {
		return entity.Outcome{Status: entity.OutcomeFailure, Error: err.Error()}
	}

	return entity.Outcome{Status: entity.OutcomeSuccess, OutputPath: destination, DisplayName: filepath.Base(destination)}
}

type envelope[T any] struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    T      `json:"data"`
}

type batchData struct {
	Outcomes  []entity.Outcome `json:"outcomes"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []entity.Entry   `json:"results"`
}

type testServer struct {
	router   *httprouter.Router
	sessions *session.Registry
}

func newTestServer(t *testing.T, missingTool bool) *testServer {
	t.Helper()

	cfg := &config.Config{
		Job: config.Job{Workers: 2},
		Dir: config.Dir{
			Downloads:     t.TempDir(),
			FilePrefix:    "twitter_video_",
			FileExtension: ".mp4",
			ContentType:   "video/mp4",
		},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	metrics := observability.New(reg)

	svc := service.New(cfg, log, fakeProber{missing: missingTool}, fileExecutor{}, metrics)
	sessions := session.NewRegistry(log, cfg, metrics)

	return &testServer{
		router:   httprouter.New(log, cfg, svc, sessions, metrics, reg),
		sessions: sessions,
	}
}

func (ts *testServer) do(t *testing.T, method, target, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if sessionID != "" {
		req.Header.Set(consts.HeaderSessionID, sessionID)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	return rec
}

func submitBody(t *testing.T, urls ...string) string {
	t.Helper()

	body, err := json.Marshal(map[string]string{"urls": strings.Join(urls, "\n")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	return string(body)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()

	var env envelope[T]
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	return env
}

func TestReadyz(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/v1/readyz", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("got %d %q, want 200 ok", rec.Code, rec.Body.String())
	}

	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("X-Request-ID header missing")
	}
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		name      string
		missing   bool
		wantReady bool
	}{
		{name: "all present", missing: false, wantReady: true},
		{name: "ffmpeg missing", missing: true, wantReady: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.missing)

			rec := ts.do(t, http.MethodGet, "/v1/capabilities", "", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("got status %d, want 200", rec.Code)
			}

			env := decode[struct {
				Ready bool                     `json:"ready"`
				Tools []entity.CapabilityCheck `json:"tools"`
			}](t, rec)

			if env.Data.Ready != tt.wantReady {
				t.Errorf("got ready %v, want %v", env.Data.Ready, tt.wantReady)
			}

			if len(env.Data.Tools) != 2 {
				t.Errorf("got %d tools, want 2", len(env.Data.Tools))
			}
		})
	}
}

func TestSubmitBatchRejections(t *testing.T) {
	tests := []struct {
		name        string
		missingTool bool
		body        string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "invalid json",
			body:        `{"urls":`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: consts.RespInvalidRequestBody,
		},
		{
			name:        "blank input",
			body:        `{"urls":"\n   \n"}`,
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: consts.RespNoInput,
		},
		{
			name:        "missing tool",
			missingTool: true,
			body:        `{"urls":"https://x.com/a"}`,
			wantStatus:  http.StatusPreconditionFailed,
			wantMessage: consts.RespToolMissing,
		},
		{
			name:        "body too large",
			body:        `{"urls":"` + strings.Repeat("a", consts.DefaultMaxBodyBytes) + `"}`,
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantMessage: consts.RespBodyTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.missingTool)

			rec := ts.do(t, http.MethodPost, "/v1/batches", "", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			env := decode[json.RawMessage](t, rec)
			if env.Message != tt.wantMessage {
				t.Errorf("got message %q, want %q", env.Message, tt.wantMessage)
			}
		})
	}
}

func TestSubmitBatchMissingToolLists(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/v1/batches", "", submitBody(t, "https://x.com/a"))

	env := decode[struct {
		Missing []string `json:"missing"`
	}](t, rec)

	if len(env.Data.Missing) != 1 || env.Data.Missing[0] != "ffmpeg" {
		t.Errorf("got missing %v, want [ffmpeg]", env.Data.Missing)
	}
}

func TestSubmitBatchAccumulatesPerSession(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/v1/batches", "",
		submitBody(t, "https://x.com/a", "https://x.com/fail", "https://x.com/b"))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}

	sessionID := rec.Header().Get(consts.HeaderSessionID)
	if sessionID == "" {
		t.Fatal("session header missing")
	}

	if !strings.Contains(rec.Header().Get("Set-Cookie"), consts.CookieSessionID+"="+sessionID) {
		t.Errorf("session cookie missing: %q", rec.Header().Get("Set-Cookie"))
	}

	first := decode[batchData](t, rec)
	if first.Message != consts.RespBatchFinished {
		t.Errorf("got message %q, want %q", first.Message, consts.RespBatchFinished)
	}

	if first.Data.Succeeded != 2 || first.Data.Failed != 1 || len(first.Data.Outcomes) != 3 {
		t.Errorf("got %d succeeded / %d failed / %d outcomes, want 2/1/3",
			first.Data.Succeeded, first.Data.Failed, len(first.Data.Outcomes))
	}

	if first.Data.Outcomes[1].Status != entity.OutcomeFailure || first.Data.Outcomes[1].Error == "" {
		t.Errorf("unexpected failure outcome: %+v", first.Data.Outcomes[1])
	}

	rec = ts.do(t, http.MethodPost, "/v1/batches", sessionID,
		submitBody(t, "https://x.com/c", "https://x.com/d", "https://x.com/a"))
	second := decode[batchData](t, rec)

	if len(second.Data.Results) != 5 {
		t.Fatalf("got %d cumulative results, want 5", len(second.Data.Results))
	}

	wantNames := []string{"twitter_video_1.mp4", "twitter_video_3.mp4", "twitter_video_4.mp4", "twitter_video_5.mp4", "twitter_video_6.mp4"}
	for i, entry := range second.Data.Results {
		if entry.DisplayName != wantNames[i] {
			t.Errorf("result %d: got %q, want %q", i, entry.DisplayName, wantNames[i])
		}
	}

	rec = ts.do(t, http.MethodGet, "/v1/results", sessionID, "")
	listed := decode[[]entity.Entry](t, rec)

	if len(listed.Data) != 5 {
		t.Errorf("got %d listed results, want 5", len(listed.Data))
	}

	// another session sees nothing
	rec = ts.do(t, http.MethodGet, "/v1/results", "", "")
	if other := decode[[]entity.Entry](t, rec); len(other.Data) != 0 {
		t.Errorf("new session got %d results, want 0", len(other.Data))
	}
}

func TestSubmitBatchAllFailed(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/v1/batches", "", submitBody(t, "https://x.com/fail/1", "https://x.com/fail/2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	env := decode[batchData](t, rec)
	if env.Message != consts.RespNoSuccess {
		t.Errorf("got message %q, want %q", env.Message, consts.RespNoSuccess)
	}

	if env.Data.Failed != 2 || env.Data.Succeeded != 0 {
		t.Errorf("got %d failed / %d succeeded, want 2/0", env.Data.Failed, env.Data.Succeeded)
	}
}

func TestSubmitBatchConflict(t *testing.T) {
	ts := newTestServer(t, false)

	sess, _ := ts.sessions.Resolve(t.Context(), "")
	if !sess.TryBegin() {
		t.Fatal("TryBegin() failed")
	}
	defer sess.End()

	rec := ts.do(t, http.MethodPost, "/v1/batches", sess.ID, submitBody(t, "https://x.com/a"))
	if rec.Code != http.StatusConflict {
		t.Errorf("got status %d, want 409", rec.Code)
	}
}

func TestDownloadResult(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/v1/batches", "", submitBody(t, "https://x.com/a"))
	sessionID := rec.Header().Get(consts.HeaderSessionID)
	batch := decode[batchData](t, rec)

	if len(batch.Data.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(batch.Data.Results))
	}

	id := batch.Data.Results[0].ID

	rec = ts.do(t, http.MethodGet, "/v1/results/"+id, sessionID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("got content type %q, want video/mp4", got)
	}

	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=twitter_video_1.mp4" {
		t.Errorf("got content disposition %q", got)
	}

	if got := rec.Body.String(); got != "video:https://x.com/a" {
		t.Errorf("got body %q", got)
	}

	tests := []struct {
		name      string
		sessionID string
		id        string
	}{
		{name: "unknown id", sessionID: sessionID, id: "does-not-exist"},
		{name: "other session", sessionID: "", id: id},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/results/"+tt.id, tt.sessionID, "")
			if rec.Code != http.StatusNotFound {
				t.Errorf("got status %d, want 404", rec.Code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)

	ts.do(t, http.MethodGet, "/v1/readyz", "", "")

	rec := ts.do(t, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), `vidbatch_http_requests_total{method="GET",path="GET /v1/readyz",status="200"} 1`) {
		t.Errorf("http request counter not exported:\n%s", rec.Body.String())
	}
}

func TestReadRoutesDoNotCreateSessions(t *testing.T) {
	ts := newTestServer(t, false)

	tests := []struct {
		name       string
		target     string
		sessionID  string
		wantStatus int
	}{
		{name: "list without session", target: "/v1/results", wantStatus: http.StatusOK},
		{name: "list with unknown session", target: "/v1/results", sessionID: "4f1c9a2e-0000-4000-8000-000000000000", wantStatus: http.StatusOK},
		{name: "download without session", target: "/v1/results/some-id", wantStatus: http.StatusNotFound},
		{name: "download with unknown session", target: "/v1/results/some-id", sessionID: "garbage", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tt.target, tt.sessionID, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", rec.Code, tt.wantStatus)
			}

			if got := rec.Header().Get("Set-Cookie"); got != "" {
				t.Errorf("read route set a cookie: %q", got)
			}

			if rec.Code == http.StatusOK {
				if env := decode[[]entity.Entry](t, rec); env.Data == nil || len(env.Data) != 0 {
					t.Errorf("got %v, want an empty list", env.Data)
				}
			}
		})
	}

	if got := ts.sessions.Len(); got != 0 {
		t.Errorf("read routes created %d sessions, want 0", got)
	}
}
