package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"schemagen/internal/domain"
	"schemagen/internal/infra"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
	betaHeader     = "assistants=v2"

	// messagesPageSize bounds the reply lookup; a run appends one assistant
	// message, so the newest page of its messages always contains it.
	messagesPageSize = 20
)

// Options configures the OpenAI Assistants client.
type Options struct {
	APIKey       string
	AssistantID  string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Client talks to the OpenAI Assistants API: threads hold the conversation,
// runs execute the configured assistant against a thread.
type Client struct {
	apiKey       string
	assistantID  string
	baseURL      string
	organization string
	httpClient   *http.Client
	logger       *infra.Logger
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openai status %d", e.StatusCode)
	}
	return fmt.Sprintf("openai status %d: %s", e.StatusCode, e.Message)
}

type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

type threadObject struct {
	ID string `json:"id"`
}

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createRunRequest struct {
	AssistantID  string `json:"assistant_id"`
	Instructions string `json:"instructions,omitempty"`
}

type runObject struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type messageList struct {
	Data []messageObject `json:"data"`
}

type messageObject struct {
	ID      string           `json:"id"`
	Role    string           `json:"role"`
	RunID   string           `json:"run_id"`
	Content []messageContent `json:"content"`
}

type messageContent struct {
	Type string `json:"type"`
	Text *struct {
		Value string `json:"value"`
	} `json:"text,omitempty"`
}

// NewClient constructs a client with sane defaults. Missing credentials are
// not an error here; calls fail with domain.ErrAssistantNotConfigured so the
// service can still start and serve stored results.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("assistant: invalid base url %q: %w", baseURL, err)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		assistantID:  strings.TrimSpace(opts.AssistantID),
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		httpClient:   client,
		logger:       infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != "" && c.assistantID != ""
}

// CreateThread starts a new, empty conversation.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var out threadObject
	if err := c.invoke(ctx, http.MethodPost, "/threads", struct{}{}, &out); err != nil {
		return "", fmt.Errorf("assistant: create thread: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("assistant: create thread: empty thread id")
	}
	c.logger.Debug().Str("thread_id", out.ID).Msg("assistant: thread created")
	return out.ID, nil
}

// AddUserMessage appends a user turn to the thread.
func (c *Client) AddUserMessage(ctx context.Context, threadID, content string) error {
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	req := createMessageRequest{Role: "user", Content: content}
	if err := c.invoke(ctx, http.MethodPost, path, req, nil); err != nil {
		return fmt.Errorf("assistant: add message to %s: %w", threadID, threadFailure(err))
	}
	return nil
}

// StartRun executes the configured assistant on the thread with run-level
// instructions and returns the run id.
func (c *Client) StartRun(ctx context.Context, threadID, instructions string) (string, error) {
	path := "/threads/" + url.PathEscape(threadID) + "/runs"
	req := createRunRequest{AssistantID: c.assistantID, Instructions: instructions}
	var out runObject
	if err := c.invoke(ctx, http.MethodPost, path, req, &out); err != nil {
		return "", fmt.Errorf("assistant: start run on %s: %w", threadID, threadFailure(err))
	}
	if out.ID == "" {
		return "", errors.New("assistant: start run: empty run id")
	}
	c.logger.Debug().Str("thread_id", threadID).Str("run_id", out.ID).Str("status", out.Status).Msg("assistant: run started")
	return out.ID, nil
}

// RunStatus fetches the current state of a run.
func (c *Client) RunStatus(ctx context.Context, threadID, runID string) (domain.RunState, error) {
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	var out runObject
	if err := c.invoke(ctx, http.MethodGet, path, nil, &out); err != nil {
		return domain.RunState{}, fmt.Errorf("assistant: retrieve run %s: %w", runID, threadFailure(err))
	}
	state := domain.RunState{ID: out.ID, Status: domain.JobStatus(out.Status)}
	if out.LastError != nil {
		state.LastError = strings.TrimSpace(out.LastError.Code + ": " + out.LastError.Message)
	}
	return state, nil
}

// RunReply returns the concatenated text parts of the assistant message
// produced by runID. Messages are listed filtered by run; when none carries a
// matching run id the newest assistant message is used.
func (c *Client) RunReply(ctx context.Context, threadID, runID string) (string, error) {
	query := url.Values{}
	query.Set("order", "desc")
	query.Set("limit", fmt.Sprint(messagesPageSize))
	if runID != "" {
		query.Set("run_id", runID)
	}
	path := "/threads/" + url.PathEscape(threadID) + "/messages?" + query.Encode()
	var out messageList
	if err := c.invoke(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", fmt.Errorf("assistant: list messages of %s: %w", threadID, threadFailure(err))
	}
	var newest *messageObject
	for i := range out.Data {
		msg := &out.Data[i]
		if msg.Role != "assistant" {
			continue
		}
		if runID != "" && msg.RunID == runID {
			return messageText(msg), nil
		}
		if newest == nil {
			newest = msg
		}
	}
	if newest == nil {
		return "", domain.ErrNoAssistantReply
	}
	c.logger.Debug().Str("thread_id", threadID).Str("run_id", runID).Str("message_id", newest.ID).Msg("assistant: no message tagged with run, using newest")
	return messageText(newest), nil
}

func messageText(msg *messageObject) string {
	var sb strings.Builder
	for _, part := range msg.Content {
		if part.Type == "text" && part.Text != nil {
			sb.WriteString(part.Text.Value)
		}
	}
	return sb.String()
}

func (c *Client) invoke(ctx context.Context, method, path string, payload any, out any) error {
	if !c.HasCredentials() {
		return domain.ErrAssistantNotConfigured
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", betaHeader)
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope apiErrorEnvelope
		if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
			apiErr.Type = envelope.Error.Type
			apiErr.Code = envelope.Error.Code
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// threadFailure marks a 404 on a thread-scoped path as an unknown conversation
// and a 400 naming an active run as a busy one.
func threadFailure(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %v", domain.ErrConversationNotFound, apiErr)
	case apiErr.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "active run"):
		return fmt.Errorf("%w: %v", domain.ErrConversationBusy, apiErr)
	}
	return err
}
