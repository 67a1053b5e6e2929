// Command claude-c is the CLI front door (C14): it resolves configuration
// (internal/config), wires the provider registry, tool registry, call log,
// interrupt bus, and line editor together, and drives internal/agent's
// REPL. A `models` subcommand lists the static catalog (internal/modeldb)
// without starting a session, per SPEC_FULL.md §7.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nmnduy/claude-c-sub001/internal/agent"
	"github.com/nmnduy/claude-c-sub001/internal/awsauth"
	"github.com/nmnduy/claude-c-sub001/internal/calllog"
	"github.com/nmnduy/claude-c-sub001/internal/config"
	"github.com/nmnduy/claude-c-sub001/internal/editor"
	"github.com/nmnduy/claude-c-sub001/internal/interrupt"
	"github.com/nmnduy/claude-c-sub001/internal/logging"
	"github.com/nmnduy/claude-c-sub001/internal/mcp"
	"github.com/nmnduy/claude-c-sub001/internal/modeldb"
	"github.com/nmnduy/claude-c-sub001/internal/provider"
	"github.com/nmnduy/claude-c-sub001/internal/provider/bedrock"
	"github.com/nmnduy/claude-c-sub001/internal/provider/openai"
	"github.com/nmnduy/claude-c-sub001/internal/tool"
)

const defaultSystemPrompt = "You are claude-c, an interactive coding assistant running in a terminal. " +
	"Use the task_list tool to track multi-step work."

func main() {
	root := &cobra.Command{
		Use:   "claude-c",
		Short: "Interactive coding-agent CLI",
		Long:  "claude-c drives a conversational loop against an LLM chat-completions API, dispatching tool calls against the local environment.",
		RunE:  runREPL,
	}
	config.BindFlags(root)
	root.AddCommand(newModelsCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "claude-c:", err)
		os.Exit(1)
	}
}

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known providers and models",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := modeldb.Load()
			if err != nil {
				return err
			}
			ids := modeldb.Providers()
			sort.Strings(ids)
			for _, id := range ids {
				p := db[id]
				fmt.Printf("%s (%s)\n", p.Name, p.ID)
				modelIDs := make([]string, 0, len(p.Models))
				for mid := range p.Models {
					modelIDs = append(modelIDs, mid)
				}
				sort.Strings(modelIDs)
				for _, mid := range modelIDs {
					m := p.Models[mid]
					fmt.Printf("  %s/%s  context=%d output=%d tool_call=%v reasoning=%v\n",
						p.ID, m.ID, m.Limit.Context, m.Limit.Output, m.ToolCall, m.Reasoning)
				}
			}
			return nil
		},
	}
}

func runREPL(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("claude-c: load config: %w", err)
	}

	log := logging.New(cfg.LogLevel)
	entry := logrus.NewEntry(log)

	if cfg.AWSAuthCommand != "" {
		os.Setenv("AWS_AUTH_COMMAND", cfg.AWSAuthCommand)
	}

	store, err := calllog.Open(cfg.DBPath,
		calllog.WithLogger(entry),
		calllog.WithRotationPolicy(calllog.RotationPolicy{
			AutoRotate: cfg.DBAutoRotate,
			MaxDays:    cfg.DBMaxDays,
			MaxRecords: cfg.DBMaxRecords,
			MaxSizeMB:  cfg.DBMaxSizeMB,
		}),
	)
	if err != nil {
		return fmt.Errorf("claude-c: open call log: %w", err)
	}
	defer store.Close()

	bus := interrupt.New()
	reg := buildProviderRegistry(cfg, bus)

	tools := tool.NewRegistry()
	tools.Register(tool.NewEchoSpec())
	tools.SetFallback(mcp.AsToolFallback(mcp.NoServers{}))

	ed := editor.New(int(os.Stdin.Fd()), os.Stdin, os.Stdout, bus)

	loop := agent.New(agent.Config{
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxTokens,
		SystemPrompt: defaultSystemPrompt,
		SessionID:    uuid.NewString(),
		BashTimeout:  time.Duration(cfg.BashTimeoutSeconds) * time.Second,
	}, reg, tools, store, bus, ed, int(os.Stdin.Fd()), os.Stdout, entry)

	tools.Register(tool.NewTaskListSpec(loop.Tasks()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return loop.Run(ctx)
}

// buildProviderRegistry registers whichever provider(s) the resolved config
// names: OpenAI-compatible is always available (it only needs an API key
// at call time, not at construction), and Bedrock is added whenever
// use_bedrock is set so `--model bedrock/...` resolves, per spec.md §4.1.
func buildProviderRegistry(cfg config.Config, bus *interrupt.Bus) *provider.Registry {
	reg := provider.NewRegistry()

	var openaiOpts []openai.Option
	if cfg.OpenAIBaseURL != "" && cfg.OpenAIBaseURL != openai.DefaultBaseURL {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	reg.Register(openai.New(cfg.OpenAIAPIKey, bus, openaiOpts...))

	if cfg.UseBedrock {
		resolver := awsauth.NewResolver()
		reg.Register(bedrock.New(cfg.AWSRegion, bus,
			bedrock.WithResolver(resolver),
			bedrock.WithProfile(cfg.AWSProfile),
			bedrock.WithPromptCaching(!cfg.DisablePromptCaching),
		))
	}

	return reg
}
