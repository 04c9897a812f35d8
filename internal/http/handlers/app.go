package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"schemagen/internal/domain"
	"schemagen/internal/extract"
	"schemagen/internal/generation"
	"schemagen/internal/infra"
	"schemagen/internal/orchestrator"
)

// Generator is the generation surface the handlers drive.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*generation.Result, error)
	Regenerate(ctx context.Context, conversationID, editInstruction string) (*generation.Result, error)
	Resume(ctx context.Context, conversationID, jobHandle, input string) (*generation.Result, error)
}

type App struct {
	Generator Generator
	Results   domain.ResultRepository
	Logger    *infra.Logger

	// Development adds error details to error responses.
	Development bool
	// AllowAsyncResume answers an unfinished run with 202 and resumable
	// handles instead of 504.
	AllowAsyncResume bool

	// Lifetime bounds generation work. Request cancellation does not; a
	// client that disconnects mid-wait still gets its result stored.
	Lifetime context.Context
}

func NewApp(lifetime context.Context, cfg *infra.Config, gen Generator, results domain.ResultRepository, logger *infra.Logger) *App {
	return &App{
		Lifetime:         lifetime,
		Generator:        gen,
		Results:          results,
		Logger:           infra.LoggerOrDiscard(logger),
		Development:      cfg.IsDevelopment(),
		AllowAsyncResume: cfg.AllowAsyncResume,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string, cause error) {
	resp := errorResponse{Error: message}
	if a.Development && cause != nil {
		resp.Details = cause.Error()
	}
	a.json(w, code, resp)
}

// decode reads a JSON body. A missing or empty body decodes to the zero
// value so field validation reports the problem instead.
func (a *App) decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// serviceError maps generation failures onto the public error envelope.
func (a *App) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		upstream  *orchestrator.UpstreamJobError
		malformed *extract.MalformedOutputError
	)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, inputMessage(err), err)
	case errors.Is(err, domain.ErrConversationBusy):
		a.error(w, http.StatusConflict, "Conversation has a run in progress. Resume it before sending another instruction.", err)
	case errors.Is(err, domain.ErrNoAssistantReply):
		a.error(w, http.StatusNotFound, "No response from assistant", err)
	case errors.As(err, &malformed):
		a.error(w, http.StatusUnprocessableEntity, "Failed to parse JSON from assistant response", err)
	case errors.As(err, &upstream):
		a.error(w, http.StatusInternalServerError, upstream.Error(), err)
	case errors.Is(err, domain.ErrAssistantNotConfigured):
		a.error(w, http.StatusServiceUnavailable, "Assistant service not configured", err)
	default:
		a.log().Error().Err(err).Str("path", r.URL.Path).Msg("generation failed")
		a.error(w, http.StatusInternalServerError, "An unexpected error occurred", err)
	}
}

// processing answers a run that outlived the polling budget.
func (a *App) processing(w http.ResponseWriter, res *generation.Result) {
	if !a.AllowAsyncResume {
		a.error(w, http.StatusGatewayTimeout, "Request timed out. Please try again.", nil)
		return
	}
	a.json(w, http.StatusAccepted, processingResponse{
		Status:         "processing",
		Message:        "Request is still processing. Please check back later.",
		ConversationID: res.ConversationID,
		JobHandle:      res.JobHandle,
	})
}

// workContext keeps the request's values but takes cancellation from
// Lifetime only.
func (a *App) workContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	if a.Lifetime == nil {
		return ctx, cancel
	}
	if a.Lifetime.Err() != nil {
		cancel()
		return ctx, cancel
	}
	stop := context.AfterFunc(a.Lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (a *App) log() *infra.Logger {
	return infra.LoggerOrDiscard(a.Logger)
}

func inputMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")
	if msg == "" {
		return "Invalid request"
	}
	return msg
}
