package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"schemagen/internal/domain"
	"schemagen/internal/extract"
	"schemagen/internal/infra"
	"schemagen/internal/orchestrator"
)

// Jobs submits turns to the assistant and waits for the resulting runs.
type Jobs interface {
	Submit(ctx context.Context, conversationID, instructionText, runInstructions string) (string, string, error)
	AwaitCompletion(ctx context.Context, conversationID, jobHandle string) (orchestrator.Outcome, error)
}

// Result is what a generation, regeneration or resumed wait produced.
// When Processing is set the run has not settled yet and only the handles
// are populated.
type Result struct {
	Schema         json.RawMessage
	ConversationID string
	JobHandle      string
	ResultID       *int64
	Processing     bool
}

// Options configures a Service.
type Options struct {
	Jobs    Jobs
	Results domain.ResultRepository
	Logger  *infra.Logger
}

// Service turns prompts and edit instructions into stored schemas.
type Service struct {
	jobs    Jobs
	results domain.ResultRepository
	logger  *infra.Logger
}

// NewService wires the service. Results may be nil, in which case nothing is
// persisted.
func NewService(opts Options) (*Service, error) {
	if opts.Jobs == nil {
		return nil, errors.New("generation: jobs are required")
	}
	return &Service{
		jobs:    opts.Jobs,
		results: opts.Results,
		logger:  infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// Generate starts a new conversation for prompt and returns the extracted
// schema together with the conversation handle for later edits.
func (s *Service) Generate(ctx context.Context, prompt string) (*Result, error) {
	prompt = normalizeText(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: No prompt provided", domain.ErrInvalidInput)
	}
	conversationID, jobHandle, err := s.jobs.Submit(ctx, "", renderGenerate(prompt), generateRunInstructions)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, conversationID, jobHandle, prompt)
}

// Regenerate appends an edit instruction to an existing conversation and
// returns the complete revised schema. An unknown conversation is an input
// error; a new conversation is never created in its place.
func (s *Service) Regenerate(ctx context.Context, conversationID, editInstruction string) (*Result, error) {
	conversationID = strings.TrimSpace(conversationID)
	editInstruction = normalizeText(editInstruction)
	if conversationID == "" || editInstruction == "" {
		return nil, fmt.Errorf("%w: Conversation ID and edit instruction are required", domain.ErrInvalidInput)
	}
	_, jobHandle, err := s.jobs.Submit(ctx, conversationID, renderEdit(editInstruction), regenerateRunInstructions)
	if err != nil {
		return nil, unknownConversation(conversationID, err)
	}
	return s.finish(ctx, conversationID, jobHandle, editInstruction)
}

// Resume waits again on a run that an earlier call reported as still
// processing. input is recorded with the stored result and may be empty.
func (s *Service) Resume(ctx context.Context, conversationID, jobHandle, input string) (*Result, error) {
	conversationID = strings.TrimSpace(conversationID)
	jobHandle = strings.TrimSpace(jobHandle)
	if conversationID == "" || jobHandle == "" {
		return nil, fmt.Errorf("%w: Conversation ID and job handle are required", domain.ErrInvalidInput)
	}
	res, err := s.finish(ctx, conversationID, jobHandle, normalizeText(input))
	if err != nil {
		return nil, unknownConversation(conversationID, err)
	}
	return res, nil
}

func (s *Service) finish(ctx context.Context, conversationID, jobHandle, input string) (*Result, error) {
	out, err := s.jobs.AwaitCompletion(ctx, conversationID, jobHandle)
	if err != nil {
		if ctx.Err() != nil {
			// The run was already submitted; hand back its handles so the
			// wait can be resumed instead of losing the turn.
			s.logger.Warn().Err(err).Str("conversation_id", conversationID).Str("job_handle", jobHandle).Msg("generation: wait abandoned")
			return &Result{ConversationID: conversationID, JobHandle: jobHandle, Processing: true}, nil
		}
		return nil, err
	}
	if out.TimedOut {
		return &Result{ConversationID: conversationID, JobHandle: jobHandle, Processing: true}, nil
	}
	schema, err := extract.JSON(out.Text)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Str("job_handle", jobHandle).Msg("generation: unusable assistant reply")
		return nil, err
	}
	res := &Result{Schema: schema, ConversationID: conversationID, JobHandle: jobHandle}
	res.ResultID = s.persist(ctx, input, schema)
	return res, nil
}

// persist records the result. Failures are logged and swallowed: the caller
// already has a valid schema and gets it regardless.
func (s *Service) persist(ctx context.Context, input string, schema json.RawMessage) *int64 {
	if s.results == nil {
		return nil
	}
	id, err := s.results.Append(ctx, input, string(schema))
	if err != nil {
		if !errors.Is(err, domain.ErrPersistenceFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
		}
		s.logger.Warn().Err(err).Msg("Failed to store result in database")
		return nil
	}
	return &id
}

func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func unknownConversation(conversationID string, err error) error {
	if errors.Is(err, domain.ErrConversationNotFound) {
		return fmt.Errorf("%w: unknown conversation %q", domain.ErrInvalidInput, conversationID)
	}
	return err
}
