// Package orchestrator drives a single assistant run from submission to a
// terminal state, or gives up after a fixed number of status polls.
//
// Waiting is bounded by PollConfig rather than by wall-clock deadlines: the
// deployment decides how many polls fit inside its execution ceiling. When
// the budget runs out the caller receives the conversation and run handles
// so the wait can be resumed later; that outcome is not an error.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schemagen/internal/domain"
	"schemagen/internal/infra"
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 30
)

// Assistant is the subset of the remote assistant service a run needs.
type Assistant interface {
	CreateThread(ctx context.Context) (string, error)
	AddUserMessage(ctx context.Context, threadID, content string) error
	StartRun(ctx context.Context, threadID, instructions string) (string, error)
	RunStatus(ctx context.Context, threadID, runID string) (domain.RunState, error)
	RunReply(ctx context.Context, threadID, runID string) (string, error)
}

// PollConfig is the deployment's waiting budget.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Sleeper pauses between polls. It returns early only when ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// UpstreamJobError reports a run the assistant service gave up on.
type UpstreamJobError struct {
	ConversationID string
	JobHandle      string
	Status         domain.JobStatus
	Detail         string
}

func (e *UpstreamJobError) Error() string {
	msg := fmt.Sprintf("Assistant run failed with status: %s", e.Status)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Outcome is the result of waiting on a run. Exactly one of Text (for a
// completed run) or TimedOut is meaningful.
type Outcome struct {
	ConversationID string
	JobHandle      string
	Status         domain.JobStatus
	Attempts       int
	TimedOut       bool
	Text           string
}

// Options configures an Orchestrator.
type Options struct {
	Assistant Assistant
	Poll      PollConfig
	Sleep     Sleeper
	Logger    *infra.Logger
}

// Orchestrator submits turns to the assistant and waits for their runs.
// It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	assistant Assistant
	poll      PollConfig
	sleep     Sleeper
	logger    *infra.Logger
}

// New validates opts and fills in the default polling budget.
func New(opts Options) (*Orchestrator, error) {
	if opts.Assistant == nil {
		return nil, errors.New("orchestrator: assistant is required")
	}
	poll := opts.Poll
	if poll.Interval <= 0 {
		poll.Interval = DefaultPollInterval
	}
	if poll.MaxAttempts <= 0 {
		poll.MaxAttempts = DefaultMaxAttempts
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Orchestrator{
		assistant: opts.Assistant,
		poll:      poll,
		sleep:     sleep,
		logger:    infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// PollConfig returns the effective waiting budget.
func (o *Orchestrator) PollConfig() PollConfig {
	return o.poll
}

// Submit appends instructionText to the conversation (creating one when
// conversationID is empty) and starts a run with runInstructions. It changes
// remote state and must not be retried for the same logical request.
func (o *Orchestrator) Submit(ctx context.Context, conversationID, instructionText, runInstructions string) (string, string, error) {
	if conversationID == "" {
		id, err := o.assistant.CreateThread(ctx)
		if err != nil {
			return "", "", err
		}
		conversationID = id
	}
	if err := o.assistant.AddUserMessage(ctx, conversationID, instructionText); err != nil {
		return conversationID, "", err
	}
	jobHandle, err := o.assistant.StartRun(ctx, conversationID, runInstructions)
	if err != nil {
		return conversationID, "", err
	}
	o.logger.Info().
		Str("conversation_id", conversationID).
		Str("job_handle", jobHandle).
		Msg("orchestrator: run submitted")
	return conversationID, jobHandle, nil
}

// AwaitCompletion polls the run at a fixed interval, at most MaxAttempts
// times. The first poll is immediate. A remote terminal failure returns
// *UpstreamJobError; exhausting the budget returns an Outcome with TimedOut
// set. A run that settles on the last allowed poll is reported as settled.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, conversationID, jobHandle string) (Outcome, error) {
	out := Outcome{ConversationID: conversationID, JobHandle: jobHandle}
	log := o.logger.With().Str("conversation_id", conversationID).Str("job_handle", jobHandle).Logger()

	for attempt := 1; attempt <= o.poll.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := o.sleep(ctx, o.poll.Interval); err != nil {
				return out, err
			}
		}
		state, err := o.assistant.RunStatus(ctx, conversationID, jobHandle)
		if err != nil {
			return out, err
		}
		out.Attempts = attempt
		out.Status = state.Status
		log.Debug().Int("attempt", attempt).Str("status", string(state.Status)).Msg("orchestrator: polled run")

		switch {
		case state.Status == domain.JobStatusCompleted:
			text, err := o.assistant.RunReply(ctx, conversationID, jobHandle)
			if err != nil {
				return out, err
			}
			out.Text = text
			log.Info().Int("attempts", attempt).Msg("orchestrator: run completed")
			return out, nil
		case state.Status.IsTerminalError():
			log.Warn().Str("status", string(state.Status)).Str("detail", state.LastError).Msg("orchestrator: run failed remotely")
			return out, &UpstreamJobError{
				ConversationID: conversationID,
				JobHandle:      jobHandle,
				Status:         state.Status,
				Detail:         state.LastError,
			}
		}
	}

	out.TimedOut = true
	out.Status = domain.JobStatusTimedOutLocally
	log.Warn().Int("attempts", out.Attempts).Msg("orchestrator: polling budget exhausted")
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
