// Package execrun launches external tools and reports how they exited.
//
// Every failure mode (spawn error, non-zero exit, timeout, cancellation) is
// folded into an Outcome; Run never returns an error value or panics.
package execrun

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Command describes one child process invocation.
type Command struct {
	Argv          []string
	Stdin         []byte // written then closed before waiting, when non-nil
	CaptureStdout bool
	CaptureStderr bool
	Timeout       time.Duration // zero means no per-command deadline
}

// Outcome is the result of one invocation.
type Outcome struct {
	Succeeded  bool
	ExitCode   int // -1 when the child never ran or was killed
	Stdout     []byte
	StderrLine string // first line of stderr, when captured
	Err        error
}

// Runner runs a single command to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) Outcome
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) Outcome

func (f RunnerFunc) Run(ctx context.Context, cmd Command) Outcome { return f(ctx, cmd) }

var (
	ErrEmptyCommand = errors.New("empty command")
	ErrTimeout      = errors.New("command timed out")
)

// Start runs cmd on its own goroutine and delivers exactly one Outcome.
func Start(ctx context.Context, r Runner, cmd Command) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- Failed(fmt.Errorf("runner panic: %v", p))
			}
		}()
		ch <- r.Run(ctx, cmd)
	}()
	return ch
}

// Failed is an Outcome for a command that never produced an exit status.
func Failed(err error) Outcome {
	return Outcome{ExitCode: -1, Err: err}
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// WaitDelay bounds how long Wait blocks on inherited pipes after a kill.
	WaitDelay time.Duration
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: 2 * time.Second}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) Outcome {
	if len(c.Argv) == 0 || strings.TrimSpace(c.Argv[0]) == "" {
		return Failed(ErrEmptyCommand)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = r.WaitDelay

	var stdout, stderr bytes.Buffer
	if c.CaptureStdout {
		cmd.Stdout = &stdout
	}
	if c.CaptureStderr {
		cmd.Stderr = &stderr
	}
	if c.Stdin != nil {
		// exec copies the payload and closes the pipe, so the child sees EOF.
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}

	err := cmd.Run()
	out := Outcome{
		ExitCode:   -1,
		Stdout:     stdout.Bytes(),
		StderrLine: firstLine(stderr.Bytes()),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
		out.Succeeded = true
	case errors.Is(err, exec.ErrWaitDelay) && out.ExitCode == 0:
		// The child exited cleanly but left a background process holding
		// our pipes (xclip keeps serving the selection).
		out.Succeeded = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		out.Err = fmt.Errorf("%s: %w", c.Argv[0], ErrTimeout)
	case ctx.Err() != nil:
		out.Err = fmt.Errorf("%s: %w", c.Argv[0], ctx.Err())
	default:
		out.Err = fmt.Errorf("%s: %w", c.Argv[0], err)
	}
	return out
}

func firstLine(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	sc := bufio.NewScanner(bytes.NewReader(b))
	if sc.Scan() {
		return strings.TrimSpace(sc.Text())
	}
	return ""
}
