// Package agent implements the agent loop (C12): read one line of input
// via internal/editor, append it to the conversation, call the resolved
// provider, log the call, render the assistant's reply, dispatch any
// tool_calls, append the paired results, and repeat until the model stops
// requesting tools — then return to the prompt. It also hosts two
// supplements spec.md leaves "implementation-defined": a retry-with-
// backoff wrapper around C5 and the slash-command dispatch table,
// following the teacher's error-wrapping idiom throughout.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/nmnduy/claude-c-sub001/internal/calllog"
	"github.com/nmnduy/claude-c-sub001/internal/convo"
	"github.com/nmnduy/claude-c-sub001/internal/dispatcher"
	"github.com/nmnduy/claude-c-sub001/internal/editor"
	"github.com/nmnduy/claude-c-sub001/internal/interrupt"
	"github.com/nmnduy/claude-c-sub001/internal/message"
	"github.com/nmnduy/claude-c-sub001/internal/provider"
	"github.com/nmnduy/claude-c-sub001/internal/todo"
	"github.com/nmnduy/claude-c-sub001/internal/tokencount"
	"github.com/nmnduy/claude-c-sub001/internal/tool"
)

// ErrNotImplemented is returned by slash commands that are recognized but
// whose implementation is an external collaborator outside this repo's
// scope (currently just /voice).
var ErrNotImplemented = errors.New("agent: not implemented")

// RetryConfig configures the exponential-backoff wrapper around a
// provider's single-attempt CallAPI. Not part of spec.md's contract (§7
// calls retry "implementation-defined"); this just makes the CLI usable
// against a flaky network.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches a conservative, human-noticeable but not
// punishing backoff: three attempts with waits of 1s then 2s between them,
// each wait capped at 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

// Config bundles everything Loop needs beyond its injected collaborators.
type Config struct {
	Model        string
	MaxTokens    int
	SystemPrompt string
	SessionID    string
	Budget       tokencount.Budget
	Retry        RetryConfig
	// BashTimeout is the configured/env fallback tool-call timeout
	// (CLAUDE_C_BASH_TIMEOUT, spec.md §4.6/§6); <= 0 means "use the
	// dispatcher's built-in default".
	BashTimeout time.Duration
}

// Loop wires together every core component into the running REPL: the
// provider registry (C4/C5), conversation state (C7), tool dispatcher
// (C8), interrupt bus (C9), line editor (C10), task list (C11), and call
// log (C6).
type Loop struct {
	cfg    Config
	reg    *provider.Registry
	convo  *convo.State
	disp   *dispatcher.Dispatcher
	tools  *tool.Registry
	store  *calllog.Store
	bus    *interrupt.Bus
	editor *editor.Editor
	tasks  *todo.List
	log    *logrus.Entry
	out    io.Writer
	stdinFd int
}

// New constructs a Loop. stdinFd is the raw terminal file descriptor (e.g.
// int(os.Stdin.Fd())); it is reused both by the line editor and by the
// escape watcher that runs during an in-flight provider call/tool dispatch
// (the two never read concurrently, since ReadLine has always returned by
// the time a call starts).
func New(
	cfg Config,
	reg *provider.Registry,
	tools *tool.Registry,
	store *calllog.Store,
	bus *interrupt.Bus,
	ed *editor.Editor,
	stdinFd int,
	out io.Writer,
	log *logrus.Entry,
) *Loop {
	state := convo.New()
	if cfg.SystemPrompt != "" {
		state.AppendSystem(cfg.SystemPrompt)
	}
	if cfg.Budget == (tokencount.Budget{}) {
		cfg.Budget = tokencount.DefaultBudget()
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Loop{
		cfg:     cfg,
		reg:     reg,
		convo:   state,
		disp:    dispatcher.New(tools, bus, cfg.BashTimeout),
		tools:   tools,
		store:   store,
		bus:     bus,
		editor:  ed,
		tasks:   todo.New(),
		log:     log,
		out:     out,
		stdinFd: stdinFd,
	}
}

// Tasks exposes the loop's task list, e.g. for a `task_list` tool handler
// bound at wiring time to mutate the same List the loop renders.
func (l *Loop) Tasks() *todo.List { return l.tasks }

// Convo exposes the conversation state for inspection (tests, a future
// `/context` command).
func (l *Loop) Convo() *convo.State { return l.convo }

// Run drives the REPL until ReadLine returns editor.ErrEOF (Ctrl+D on an
// empty line) or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		line, err := l.editor.ReadLine(ctx, promptFor(l))
		if err != nil {
			if errors.Is(err, editor.ErrEOF) {
				return nil
			}
			if errors.Is(err, editor.ErrInterrupted) {
				continue
			}
			return err
		}

		if handled, cmdErr := l.dispatchSlashCommand(ctx, line); handled {
			if cmdErr != nil && !errors.Is(cmdErr, ErrNotImplemented) {
				fmt.Fprintf(l.out, "error: %v\n", cmdErr)
			} else if errors.Is(cmdErr, ErrNotImplemented) {
				fmt.Fprintln(l.out, "not implemented yet")
			}
			continue
		}

		l.convo.AppendUser(line)
		if err := l.runTurn(ctx); err != nil {
			fmt.Fprintf(l.out, "error: %v\n", err)
		}
	}
}

func promptFor(l *Loop) string {
	if n := l.convo.TurnCount(); n > 0 {
		return fmt.Sprintf("[%d]> ", n)
	}
	return "> "
}

// runTurn repeats call -> dispatch until the model stops requesting tools.
func (l *Loop) runTurn(ctx context.Context) error {
	for {
		guard, err := tokencount.Enforce(l.cfg.Model, l.convo, l.cfg.Budget)
		if err != nil {
			l.log.WithError(err).Warn("agent: token estimate failed, continuing without budget guard")
		} else {
			fields := logrus.Fields{"estimated_tokens": guard.EstimatedTokens, "evicted_turns": guard.EvictedTurns}
			if guard.WarnCrossed {
				l.log.WithFields(fields).Warn("agent: context budget warn threshold crossed")
			} else {
				l.log.WithFields(fields).Debug("agent: context budget check")
			}
		}

		opts := provider.CallOptions{
			Model:     l.cfg.Model,
			Messages:  l.convo.Messages(),
			Tools:     l.tools.Definitions(),
			MaxTokens: l.cfg.MaxTokens,
		}

		watchCtx, stopWatch := context.WithCancel(ctx)
		go l.watchEscapeDuringCall(watchCtx)

		result, callErr := l.callWithRetry(ctx, opts)
		stopWatch()

		l.logCall(opts, result, callErr)

		if result.Interrupted {
			l.convo.SynthesizeInterrupted()
			l.bus.Clear()
			return nil
		}
		if callErr != nil {
			return callErr
		}
		if result.ErrorMessage != "" {
			return fmt.Errorf("agent: provider call failed: %s", result.ErrorMessage)
		}

		if result.Response == nil || len(result.Response.Choices) == 0 {
			return fmt.Errorf("agent: provider returned no choices")
		}
		choice := result.Response.Choices[0].Message
		content := ""
		if choice.Content != nil {
			content = *choice.Content
		}
		l.convo.AppendAssistant(content, choice.ToolCalls)

		if len(choice.ToolCalls) == 0 {
			if content != "" {
				fmt.Fprintln(l.out, content)
			}
			return nil
		}

		// Extracted before AppendToolResults per spec.md §4.6's "extract
		// before append" rule: this primitive bool must outlive the results
		// slice, which AppendToolResults takes ownership of on append.
		sawTaskListCall := false
		for _, tc := range choice.ToolCalls {
			if tc.Name == "task_list" {
				sawTaskListCall = true
				break
			}
		}

		results := l.disp.Dispatch(ctx, choice.ToolCalls)
		if err := l.convo.AppendToolResults(results); err != nil {
			return fmt.Errorf("agent: pairing tool results: %w", err)
		}
		if sawTaskListCall {
			if rendered := l.tasks.Render(true); rendered != "" {
				fmt.Fprintln(l.out, rendered)
			}
		}
		if l.bus.IsSet() {
			l.bus.Clear()
			return nil
		}
		// Loop again: the model sees the tool results and gets another turn.
	}
}

// watchEscapeDuringCall keeps ESC detection live while the line editor
// isn't running (an in-flight provider call or tool dispatch). It only
// ever runs after ReadLine has returned, so it never contends with the
// editor's own reads of the same fd.
func (l *Loop) watchEscapeDuringCall(ctx context.Context) {
	if !term.IsTerminal(l.stdinFd) {
		return
	}
	old, err := term.MakeRaw(l.stdinFd)
	if err != nil {
		return
	}
	defer term.Restore(l.stdinFd, old)
	editor.WatchEscape(ctx, os.NewFile(uintptr(l.stdinFd), "stdin-watch"), l.bus)
}

func (l *Loop) logCall(opts provider.CallOptions, result provider.ApiCallResult, callErr error) {
	if l.store == nil {
		return
	}
	status := "success"
	errMsg := ""
	if callErr != nil {
		status = "error"
		errMsg = callErr.Error()
	} else if result.ErrorMessage != "" {
		status = "error"
		errMsg = result.ErrorMessage
	}
	rec := calllog.Record{
		SessionID:    l.cfg.SessionID,
		RequestJSON:  string(result.RequestJSON),
		ResponseJSON: result.RawResponseText,
		Model:        opts.Model,
		Status:       status,
		HTTPStatus:   result.HTTPStatus,
		ErrorMessage: errMsg,
		DurationMS:   result.DurationMS,
		ToolCount:    len(opts.Tools),
	}
	if _, err := l.store.Insert(rec); err != nil {
		l.log.WithError(err).Warn("agent: call log insert failed")
	}
}

// callWithRetry retries a single-attempt CallAPI up to cfg.Retry.MaxAttempts
// times with exponential backoff, only when the result says IsRetryable and
// the call wasn't user-interrupted. Each attempt is still exactly one
// network round trip, matching provider.Provider's single-attempt contract;
// the looping lives here; not inside any Provider.
func (l *Loop) callWithRetry(ctx context.Context, opts provider.CallOptions) (provider.ApiCallResult, error) {
	var last provider.ApiCallResult
	var lastErr error
	for attempt := 0; attempt < l.cfg.Retry.MaxAttempts; attempt++ {
		result, err := l.reg.CallAPI(ctx, opts)
		last, lastErr = result, err
		if err != nil {
			return result, err
		}
		if result.Interrupted || !result.IsRetryable {
			return result, nil
		}
		if attempt == l.cfg.Retry.MaxAttempts-1 {
			break
		}
		delay := backoffDelay(l.cfg.Retry, attempt)
		l.log.WithFields(logrus.Fields{"attempt": attempt + 1, "delay": delay.String()}).
			Warn("agent: retrying after retryable provider error")
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}
	return last, lastErr
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	d := cfg.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if d > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return d
}

// dispatchSlashCommand recognizes a leading "/" line and runs the matching
// handler. handled==false means line is ordinary conversation input.
func (l *Loop) dispatchSlashCommand(ctx context.Context, line string) (handled bool, err error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return false, nil
	}
	fields := strings.SplitN(trimmed, " ", 2)
	name := fields[0]
	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}

	handler, ok := l.commands()[name]
	if !ok {
		return true, fmt.Errorf("unknown command %q", name)
	}
	return true, handler(ctx, arg)
}

// commands is the slash-command dispatch table. /voice is the one entry
// that always returns ErrNotImplemented: it names a real external
// collaborator (audio capture + transcription) explicitly out of scope for
// this repo, but wiring it in later only means replacing this one handler.
func (l *Loop) commands() map[string]func(ctx context.Context, arg string) error {
	return map[string]func(ctx context.Context, arg string) error{
		"/voice": func(ctx context.Context, arg string) error {
			return ErrNotImplemented
		},
		"/clear": func(ctx context.Context, arg string) error {
			sys := l.cfg.SystemPrompt
			l.convo = convo.New()
			if sys != "" {
				l.convo.AppendSystem(sys)
			}
			fmt.Fprintln(l.out, "conversation cleared")
			return nil
		},
		"/tasks": func(ctx context.Context, arg string) error {
			if out := l.tasks.Render(true); out != "" {
				fmt.Fprintln(l.out, out)
			} else {
				fmt.Fprintln(l.out, "(no tasks)")
			}
			return nil
		},
		"/models": func(ctx context.Context, arg string) error {
			fmt.Fprintln(l.out, "use the `models` CLI subcommand to list providers/models")
			return nil
		},
	}
}
