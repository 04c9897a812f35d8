package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"schemagen/internal/bootstrap"
	"schemagen/internal/generation"
	"schemagen/internal/infra"
)

// openFunc builds the service graph a command runs against.
type openFunc func(ctx context.Context) (*bootstrap.Container, error)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(openFromEnv).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func openFromEnv(ctx context.Context) (*bootstrap.Container, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	// stdout carries command output; logs go to stderr.
	level := zerolog.WarnLevel
	if cfg.IsDevelopment() {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	return bootstrap.New(ctx, cfg, &logger, bootstrap.Dependencies{})
}

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "schemagen",
		Short: "Generate game logic schemas with an AI assistant",
		Long: `schemagen turns a free-text game design prompt into a JSON document
describing objectives and resources, and revises it through follow-up edit
instructions sent to the same assistant conversation.

Results are stored in the configured result store (RESULT_STORE).`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newGenerateCmd(open),
		newRegenerateCmd(open),
		newResumeCmd(open),
		newResultsCmd(open),
	)
	return root
}

func newGenerateCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate a schema from a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, open, func(c *bootstrap.Container) error {
				res, err := c.Generation.Generate(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newRegenerateCmd(open openFunc) *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "regenerate --conversation ID [edit instruction]",
		Short: "Revise a previous generation in the same conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, open, func(c *bootstrap.Container) error {
				res, err := c.Generation.Regenerate(cmd.Context(), conversationID, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "conversation id returned by generate")
	_ = cmd.MarkFlagRequired("conversation")
	return cmd
}

func newResumeCmd(open openFunc) *cobra.Command {
	var conversationID, jobHandle, input string
	cmd := &cobra.Command{
		Use:   "resume --conversation ID --job HANDLE",
		Short: "Wait again on a run that was still processing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, open, func(c *bootstrap.Container) error {
				res, err := c.Generation.Resume(cmd.Context(), conversationID, jobHandle, input)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "conversation id")
	cmd.Flags().StringVarP(&jobHandle, "job", "j", "", "job handle reported as processing")
	cmd.Flags().StringVar(&input, "input", "", "input text recorded with the stored result")
	_ = cmd.MarkFlagRequired("conversation")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

type cliResult struct {
	Status         string          `json:"status"`
	Schema         json.RawMessage `json:"schema,omitempty"`
	ConversationID string          `json:"conversationId"`
	JobHandle      string          `json:"jobHandle,omitempty"`
	ResultID       *int64          `json:"resultId,omitempty"`
}

func printResult(w io.Writer, res *generation.Result) error {
	out := cliResult{
		Status:         "completed",
		Schema:         res.Schema,
		ConversationID: res.ConversationID,
		ResultID:       res.ResultID,
	}
	if res.Processing {
		out.Status = "processing"
		out.JobHandle = res.JobHandle
	}
	return printJSON(w, out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func withContainer(cmd *cobra.Command, open openFunc, fn func(*bootstrap.Container) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
		cmd.SetContext(ctx)
	}
	c, err := open(ctx)
	if err != nil {
		return err
	}
	runErr := fn(c)
	if err := c.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close: %w", err)
	}
	return runErr
}
