// Package exectest provides a scripted execrun.Runner for tests.
package exectest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"text-extractor/src/execrun"
)

// ErrNotScripted is the spawn error for commands nobody registered.
var ErrNotScripted = errors.New("exectest: command not scripted")

// Handler answers one command. It may touch the filesystem to simulate a
// tool writing its output file.
type Handler func(ctx context.Context, cmd execrun.Command) execrun.Outcome

// Runner dispatches on argv[0] and records every call.
type Runner struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []execrun.Command
	// Fallback answers commands without a handler; nil means "spawn failure".
	Fallback Handler
}

func New() *Runner {
	return &Runner{handlers: make(map[string]Handler)}
}

// On registers h for commands whose argv[0] is name.
func (r *Runner) On(name string, h Handler) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return r
}

func (r *Runner) Run(ctx context.Context, cmd execrun.Command) execrun.Outcome {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	var h Handler
	if len(cmd.Argv) > 0 {
		h = r.handlers[cmd.Argv[0]]
	}
	if h == nil {
		h = r.Fallback
	}
	r.mu.Unlock()

	if h == nil {
		return execrun.Failed(ErrNotScripted)
	}
	return h(ctx, cmd)
}

// Calls returns a copy of the recorded commands.
func (r *Runner) Calls() []execrun.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]execrun.Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsTo returns recorded commands whose argv[0] is name.
func (r *Runner) CallsTo(name string) []execrun.Command {
	var out []execrun.Command
	for _, c := range r.Calls() {
		if len(c.Argv) > 0 && c.Argv[0] == name {
			out = append(out, c)
		}
	}
	return out
}

// Succeed returns a handler that exits 0 with the given stdout.
func Succeed(stdout string) Handler {
	return func(context.Context, execrun.Command) execrun.Outcome {
		return execrun.Outcome{Succeeded: true, ExitCode: 0, Stdout: []byte(stdout)}
	}
}

// Exit returns a handler that exits with code and a stderr first line.
func Exit(code int, stderr string) Handler {
	return func(context.Context, execrun.Command) execrun.Outcome {
		return execrun.Outcome{ExitCode: code, StderrLine: strings.TrimSpace(stderr)}
	}
}

// Which answers `which <name>` with success for the listed commands only.
func Which(present ...string) Handler {
	set := make(map[string]bool, len(present))
	for _, p := range present {
		set[p] = true
	}
	return func(_ context.Context, cmd execrun.Command) execrun.Outcome {
		if len(cmd.Argv) == 2 && set[cmd.Argv[1]] {
			return execrun.Outcome{Succeeded: true, Stdout: []byte("/usr/bin/" + cmd.Argv[1] + "\n")}
		}
		return execrun.Outcome{ExitCode: 1}
	}
}
