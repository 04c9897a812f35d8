package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"schemagen/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{
		APIKey:      "sk-test",
		AssistantID: "asst_123",
		BaseURL:     srv.URL + "/v1",
		HTTPClient:  srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientConversationFlow(t *testing.T) {
	var gotRun createRunRequest
	var gotMessage createMessageRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/threads", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization header = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("OpenAI-Beta") != "assistants=v2" {
			t.Errorf("OpenAI-Beta header = %q", r.Header.Get("OpenAI-Beta"))
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "thread_abc"})
	})
	mux.HandleFunc("/v1/threads/thread_abc/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&gotMessage)
			writeJSON(w, http.StatusOK, map[string]any{"id": "msg_user"})
			return
		}
		if r.URL.Query().Get("order") != "desc" {
			t.Errorf("messages listed with order=%q", r.URL.Query().Get("order"))
		}
		if r.URL.Query().Get("run_id") != "run_1" {
			t.Errorf("messages listed with run_id=%q", r.URL.Query().Get("run_id"))
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{
			map[string]any{"id": "msg_2", "role": "assistant", "content": []any{
				map[string]any{"type": "text", "text": map[string]any{"value": "```json\n{\"a\":"}},
				map[string]any{"type": "image_file"},
				map[string]any{"type": "text", "text": map[string]any{"value": "1}\n```"}},
			}},
			map[string]any{"id": "msg_1", "role": "assistant", "content": []any{
				map[string]any{"type": "text", "text": map[string]any{"value": "older"}},
			}},
		}})
	})
	mux.HandleFunc("/v1/threads/thread_abc/runs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotRun)
		writeJSON(w, http.StatusOK, map[string]any{"id": "run_1", "status": "queued"})
	})
	mux.HandleFunc("/v1/threads/thread_abc/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "run_1", "status": "completed"})
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	threadID, err := client.CreateThread(ctx)
	if err != nil || threadID != "thread_abc" {
		t.Fatalf("CreateThread = %q, %v", threadID, err)
	}
	if err := client.AddUserMessage(ctx, threadID, "make a game"); err != nil {
		t.Fatalf("AddUserMessage returned error: %v", err)
	}
	if gotMessage.Role != "user" || gotMessage.Content != "make a game" {
		t.Fatalf("message payload = %+v", gotMessage)
	}
	runID, err := client.StartRun(ctx, threadID, "Respond quickly.")
	if err != nil || runID != "run_1" {
		t.Fatalf("StartRun = %q, %v", runID, err)
	}
	if gotRun.AssistantID != "asst_123" || gotRun.Instructions != "Respond quickly." {
		t.Fatalf("run payload = %+v", gotRun)
	}
	state, err := client.RunStatus(ctx, threadID, runID)
	if err != nil {
		t.Fatalf("RunStatus returned error: %v", err)
	}
	if state.Status != domain.JobStatusCompleted {
		t.Fatalf("Status = %q, want completed", state.Status)
	}
	reply, err := client.RunReply(ctx, threadID, runID)
	if err != nil {
		t.Fatalf("RunReply returned error: %v", err)
	}
	if reply != "```json\n{\"a\":1}\n```" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestClientRunStatusCarriesLastError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         "run_1",
			"status":     "failed",
			"last_error": map[string]any{"code": "rate_limit_exceeded", "message": "slow down"},
		})
	}))
	state, err := client.RunStatus(context.Background(), "thread_abc", "run_1")
	if err != nil {
		t.Fatalf("RunStatus returned error: %v", err)
	}
	if !state.Status.IsTerminalError() {
		t.Fatalf("status %q should be a terminal error", state.Status)
	}
	if state.LastError != "rate_limit_exceeded: slow down" {
		t.Fatalf("LastError = %q", state.LastError)
	}
}

func TestClientUnknownThread(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{
			"message": "No thread found with id 'thread_missing'.",
			"type":    "invalid_request_error",
		}})
	}))
	err := client.AddUserMessage(context.Background(), "thread_missing", "change it")
	if !errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatalf("AddUserMessage error = %v, want ErrConversationNotFound", err)
	}
	if !strings.Contains(err.Error(), "No thread found") {
		t.Fatalf("error %q lost the API message", err)
	}
}

func TestClientThreadWithActiveRun(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
			"message": "Thread thread_abc already has an active run run_1.",
			"type":    "invalid_request_error",
		}})
	}))
	err := client.AddUserMessage(context.Background(), "thread_abc", "change it")
	if !errors.Is(err, domain.ErrConversationBusy) {
		t.Fatalf("AddUserMessage error = %v, want ErrConversationBusy", err)
	}
	if errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatal("busy conversation reported as unknown")
	}
}

func TestClientNoAssistantReply(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{
			map[string]any{"id": "msg_1", "role": "user", "content": []any{}},
		}})
	}))
	_, err := client.RunReply(context.Background(), "thread_abc", "run_1")
	if !errors.Is(err, domain.ErrNoAssistantReply) {
		t.Fatalf("RunReply error = %v, want ErrNoAssistantReply", err)
	}
}

func TestClientRunReplyPrefersMessageOfRun(t *testing.T) {
	// The listing ignores run_id here, as older deployments do; the newer
	// run's message comes first and must be skipped.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{
			map[string]any{"id": "msg_3", "role": "assistant", "run_id": "run_2", "content": []any{
				map[string]any{"type": "text", "text": map[string]any{"value": `{"run":2}`}},
			}},
			map[string]any{"id": "msg_2", "role": "user", "content": []any{}},
			map[string]any{"id": "msg_1", "role": "assistant", "run_id": "run_1", "content": []any{
				map[string]any{"type": "text", "text": map[string]any{"value": `{"run":1}`}},
			}},
		}})
	}))
	reply, err := client.RunReply(context.Background(), "thread_abc", "run_1")
	if err != nil {
		t.Fatalf("RunReply returned error: %v", err)
	}
	if reply != `{"run":1}` {
		t.Fatalf("reply = %q, want the message of run_1", reply)
	}

	reply, err = client.RunReply(context.Background(), "thread_abc", "run_9")
	if err != nil {
		t.Fatalf("RunReply returned error: %v", err)
	}
	if reply != `{"run":2}` {
		t.Fatalf("reply = %q, want newest assistant message as fallback", reply)
	}
}

func TestClientServerErrorIsAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	_, err := client.CreateThread(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("CreateThread error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "upstream unavailable" {
		t.Fatalf("APIError = %+v", apiErr)
	}
	if errors.Is(err, domain.ErrConversationNotFound) {
		t.Fatal("thread creation failure must not look like an unknown conversation")
	}
}

func TestClientWithoutCredentials(t *testing.T) {
	called := false
	client, err := NewClient(Options{
		APIKey: "sk-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			called = true
			return nil, errors.New("unexpected call")
		})},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if client.HasCredentials() {
		t.Fatal("client without assistant id should report missing credentials")
	}
	if _, err := client.CreateThread(context.Background()); !errors.Is(err, domain.ErrAssistantNotConfigured) {
		t.Fatalf("CreateThread error = %v, want ErrAssistantNotConfigured", err)
	}
	if called {
		t.Fatal("no HTTP call should be made without credentials")
	}
}
