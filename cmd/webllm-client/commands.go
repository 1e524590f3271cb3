package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"webllm-bridge/internal/domain/entity"
	"webllm-bridge/internal/infrastructure/client"
	"webllm-bridge/internal/infrastructure/env"
	"webllm-bridge/internal/infrastructure/logger"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "webllm-client",
		Short: "Talk to a running webllm-bridge server",
		Long: `Client for the webllm-bridge OpenAI-compatible API.

Available subcommands:
  health      Show server health and engine readiness
  models      List the model catalog
  generate    Send a single prompt
  chat        Send a system + user message pair
  smoke       Run health, generate and chat in sequence

Examples:
  webllm-client health
  webllm-client generate "Write a short story about a robot learning to paint."
  webllm-client chat --system "Keep responses concise." "Explain async/await in 2 sentences."`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.BaseURL, "url", "http://localhost:15408", "Bridge base URL")
	cmd.PersistentFlags().StringVar(&opts.Model, "model", env.DefaultModel, "Model id sent with requests")
	cmd.PersistentFlags().IntVar(&opts.MaxTokens, "max-tokens", 150, "Maximum tokens to generate")
	cmd.PersistentFlags().Float64Var(&opts.Temperature, "temperature", 0.7, "Sampling temperature")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "Request timeout, including cold start")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log HTTP traffic")

	cmd.AddCommand(newHealthCmd(opts))
	cmd.AddCommand(newModelsCmd(opts))
	cmd.AddCommand(newGenerateCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	cmd.AddCommand(newSmokeCmd(opts))

	return cmd
}

func (o *rootOptions) client() (*client.Client, error) {
	cfg := client.DefaultConfig(o.BaseURL, o.Model)
	cfg.Timeout = o.Timeout
	if o.Verbose {
		log, err := logger.NewLoggerAdapter(logger.Config{Level: "debug", Development: true, OutputPaths: []string{"stderr"}})
		if err != nil {
			return nil, err
		}
		cfg.Logger = log
	}
	return client.New(cfg)
}

func (o *rootOptions) generateOptions() client.GenerateOptions {
	return client.GenerateOptions{MaxTokens: o.MaxTokens, Temperature: o.Temperature}
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health and engine readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("server is not reachable at %s: %w", opts.BaseURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\nwebllm_initialized: %t\ntimestamp: %s\n",
				h.Status, h.WebLLMInitialized, h.Timestamp)
			return nil
		},
	}
}

func newModelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			models, err := c.Models(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Fprintln(cmd.OutOrStdout(), m.ID)
			}
			return nil
		},
	}
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Send a single prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			text, err := c.Generate(cmd.Context(), strings.Join(args, " "), opts.generateOptions())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var system string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a system + user message pair",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			text, err := c.Chat(cmd.Context(), buildMessages(system, strings.Join(args, " ")), opts.generateOptions())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&system, "system", "", "System message sent ahead of the user message")
	return cmd
}

func newSmokeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "smoke",
		Short: "Run health, generate and chat in sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			h, err := c.Health(ctx)
			if err != nil {
				return fmt.Errorf("server is not reachable at %s: %w", opts.BaseURL, err)
			}
			fmt.Fprintf(out, "Server is healthy (webllm_initialized=%t)\n\n", h.WebLLMInitialized)

			text, err := c.Generate(ctx, "Write a short story about a robot learning to paint.", opts.generateOptions())
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			fmt.Fprintf(out, "Generated text:\n%s\n\n", text)

			text, err = c.Chat(ctx, buildMessages(
				"You are a helpful coding assistant. Keep responses concise.",
				"Explain what async/await is in JavaScript in 2 sentences.",
			), opts.generateOptions())
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("chat: empty response")
			}
			fmt.Fprintf(out, "Generated text with messages:\n%s\n", text)
			return nil
		},
	}
}

func buildMessages(system, user string) []entity.Message {
	var messages []entity.Message
	if system != "" {
		messages = append(messages, entity.Message{Role: entity.RoleSystem, Content: system})
	}
	return append(messages, entity.Message{Role: entity.RoleUser, Content: user})
}
