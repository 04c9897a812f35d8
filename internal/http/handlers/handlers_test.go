package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"schemagen/internal/adapter/repo"
	"schemagen/internal/domain"
	"schemagen/internal/extract"
	"schemagen/internal/generation"
	"schemagen/internal/orchestrator"
)

type stubGenerator struct {
	res *generation.Result
	err error
}

func (s stubGenerator) Generate(ctx context.Context, prompt string) (*generation.Result, error) {
	return s.res, s.err
}

func (s stubGenerator) Regenerate(ctx context.Context, conversationID, editInstruction string) (*generation.Result, error) {
	return s.res, s.err
}

func (s stubGenerator) Resume(ctx context.Context, conversationID, jobHandle, input string) (*generation.Result, error) {
	return s.res, s.err
}

// completedJobs answers every submission with a finished run.
type completedJobs struct{ reply string }

func (j completedJobs) Submit(ctx context.Context, conversationID, instructionText, runInstructions string) (string, string, error) {
	if conversationID == "" {
		conversationID = "thread_1"
	}
	return conversationID, "run_1", nil
}

func (j completedJobs) AwaitCompletion(ctx context.Context, conversationID, jobHandle string) (orchestrator.Outcome, error) {
	return orchestrator.Outcome{ConversationID: conversationID, JobHandle: jobHandle, Status: domain.JobStatusCompleted, Text: j.reply}, nil
}

// ctxCheckingGenerator records whether the context it was handed is done.
type ctxCheckingGenerator struct {
	stubGenerator
	done *bool
}

func (g ctxCheckingGenerator) Generate(ctx context.Context, prompt string) (*generation.Result, error) {
	*g.done = ctx.Err() != nil
	return g.res, g.err
}

type brokenStore struct{}

func (brokenStore) Append(ctx context.Context, input, output string) (int64, error) {
	return 0, errors.New("database is locked")
}

func (brokenStore) ListAll(ctx context.Context) ([]domain.StoredResult, error) {
	return nil, errors.New("database is locked")
}

func (brokenStore) GetByID(ctx context.Context, id int64) (*domain.StoredResult, error) {
	return nil, errors.New("database is locked")
}

func do(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not a JSON object: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestGenerateReturnsSchema(t *testing.T) {
	id := int64(7)
	app := &App{Generator: stubGenerator{res: &generation.Result{
		Schema:         json.RawMessage(`{"objectives":[]}`),
		ConversationID: "thread_1",
		JobHandle:      "run_1",
		ResultID:       &id,
	}}}
	rec := do(t, app.Generate, http.MethodPost, "/generate", `{"prompt":"eggs"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["conversationId"] != "thread_1" || body["resultId"] != float64(7) {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["schema"].(map[string]any); !ok {
		t.Fatalf("schema is not embedded as JSON: %v", body["schema"])
	}
}

func TestGenerateSucceedsWhenStoreAlwaysFails(t *testing.T) {
	svc, err := generation.NewService(generation.Options{
		Jobs:    completedJobs{reply: "```json\n{\"objectives\":[{\"id\":\"eggs\"}]}\n```"},
		Results: brokenStore{},
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	app := &App{Generator: svc}

	rec := do(t, app.Generate, http.MethodPost, "/generate", `{"prompt":"collect eggs"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["schema"] == nil {
		t.Fatal("schema missing")
	}
	if _, present := body["resultId"]; present {
		t.Fatalf("resultId should be absent, body = %v", body)
	}

	rec = do(t, app.Regenerate, http.MethodPost, "/regenerate", `{"conversationId":"thread_1","editInstruction":"more"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("regenerate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body = decodeBody(t, rec)
	if _, present := body["resultId"]; present || body["schema"] == nil {
		t.Fatalf("unexpected regenerate body: %v", body)
	}
	if _, present := body["conversationId"]; present {
		t.Fatalf("regenerate echoes conversationId: %v", body)
	}
}

func TestProcessingResponse(t *testing.T) {
	gen := stubGenerator{res: &generation.Result{ConversationID: "thread_1", JobHandle: "run_1", Processing: true}}

	async := &App{Generator: gen, AllowAsyncResume: true}
	rec := do(t, async.Generate, http.MethodPost, "/generate", `{"prompt":"eggs"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "processing" || body["conversationId"] != "thread_1" || body["jobHandle"] != "run_1" {
		t.Fatalf("unexpected body: %v", body)
	}

	blocking := &App{Generator: gen}
	rec = do(t, blocking.Generate, http.MethodPost, "/generate", `{"prompt":"eggs"}`)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
}

func TestGenerateOutlivesClientDisconnect(t *testing.T) {
	var done bool
	gen := ctxCheckingGenerator{stubGenerator: stubGenerator{res: &generation.Result{Schema: json.RawMessage(`{}`), ConversationID: "thread_1"}}, done: &done}
	app := &App{Generator: gen, Lifetime: context.Background()}

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"eggs"}`)).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	app.Generate(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if done {
		t.Fatal("generation saw the request's cancellation")
	}

	lifetime, stop := context.WithCancel(context.Background())
	stop()
	app.Lifetime = lifetime
	app.Generate(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"eggs"}`)))
	if !done {
		t.Fatal("generation ignored the end of the process lifetime")
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"invalid input", fmt.Errorf("%w: No prompt provided", domain.ErrInvalidInput), http.StatusBadRequest, "No prompt provided"},
		{"busy", fmt.Errorf("assistant: add message: %w", domain.ErrConversationBusy), http.StatusConflict, "Conversation has a run in progress. Resume it before sending another instruction."},
		{"no reply", domain.ErrNoAssistantReply, http.StatusNotFound, "No response from assistant"},
		{"malformed", &extract.MalformedOutputError{Fenced: true, Err: errors.New("unexpected end of JSON input")}, http.StatusUnprocessableEntity, "Failed to parse JSON from assistant response"},
		{"upstream", &orchestrator.UpstreamJobError{Status: domain.JobStatusExpired}, http.StatusInternalServerError, "Assistant run failed with status: expired"},
		{"not configured", fmt.Errorf("assistant: %w", domain.ErrAssistantNotConfigured), http.StatusServiceUnavailable, "Assistant service not configured"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "An unexpected error occurred"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := &App{Generator: stubGenerator{err: tc.err}}
			rec := do(t, app.Generate, http.MethodPost, "/generate", `{"prompt":"x"}`)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d", rec.Code, tc.code)
			}
			body := decodeBody(t, rec)
			if body["error"] != tc.message {
				t.Fatalf("error = %v, want %q", body["error"], tc.message)
			}
			if _, present := body["details"]; present {
				t.Fatal("details must be hidden outside development")
			}
		})
	}
}

func TestErrorDetailsInDevelopment(t *testing.T) {
	app := &App{Generator: stubGenerator{err: errors.New("boom")}, Development: true}
	rec := do(t, app.Generate, http.MethodPost, "/generate", `{"prompt":"x"}`)
	if body := decodeBody(t, rec); body["details"] != "boom" {
		t.Fatalf("details = %v, want boom", body["details"])
	}
}

func TestGenerateRejectsBadJSON(t *testing.T) {
	app := &App{Generator: stubGenerator{}}
	rec := do(t, app.Generate, http.MethodPost, "/generate", `{"prompt":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func seededStore(t *testing.T) *repo.MemoryResultRepository {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	store := repo.NewMemoryResultRepository(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	})
	for _, in := range []string{"first", "second", "third"} {
		if _, err := store.Append(context.Background(), in, `{"input":"`+in+`"}`); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}
	return store
}

func TestListResults(t *testing.T) {
	app := &App{Results: seededStore(t)}

	rec := do(t, app.ListResults, http.MethodGet, "/results", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rows []domain.StoredResult
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(rows) != 3 || rows[0].Input != "third" || rows[2].Input != "first" {
		t.Fatalf("rows not newest first: %+v", rows)
	}
	if !(rows[2].ID < rows[1].ID && rows[1].ID < rows[0].ID) {
		t.Fatalf("ids not ascending by insertion: %+v", rows)
	}

	rec = do(t, app.ListResults, http.MethodGet, "/results?id=2", "")
	var one domain.StoredResult
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil || one.Input != "second" {
		t.Fatalf("GET ?id=2 = %s (%v)", rec.Body.String(), err)
	}

	rec = do(t, app.ListResults, http.MethodGet, "/results?id=99", "")
	if rec.Code != http.StatusNotFound || decodeBody(t, rec)["error"] != "Result not found" {
		t.Fatalf("missing id: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, app.ListResults, http.MethodGet, "/results?id=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", rec.Code)
	}
}

func TestListResultsEmpty(t *testing.T) {
	app := &App{Results: repo.NewMemoryResultRepository(nil)}
	rec := do(t, app.ListResults, http.MethodGet, "/results", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list body = %q", rec.Body.String())
	}
}

func TestExportResults(t *testing.T) {
	app := &App{Results: seededStore(t)}
	rec := do(t, app.ExportResults, http.MethodGet, "/results/export", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("status %d content-type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	data := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("export is not a zip archive: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "result-3.json,result-2.json,result-1.json" {
		t.Fatalf("entries = %v", names)
	}
}

func TestOpenAPIJSONIsValid(t *testing.T) {
	app := &App{}
	rec := do(t, app.OpenAPIJSON, http.MethodGet, "/openapi.json", "")
	body := decodeBody(t, rec)
	paths, ok := body["paths"].(map[string]any)
	if !ok {
		t.Fatal("document has no paths")
	}
	for _, p := range []string{"/generate", "/regenerate", "/jobs/resume", "/results", "/results/export", "/healthz"} {
		if _, ok := paths[p]; !ok {
			t.Fatalf("path %s not documented", p)
		}
	}
}
