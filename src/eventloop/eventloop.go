// Package eventloop is the resident's single coordinator goroutine. It
// turns hotkey presses, tray clicks and delegated CLI requests into
// pipeline runs and routes each result back to whoever asked.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"text-extractor/src/deps"
	"text-extractor/src/pipeline"
	"text-extractor/src/settings"
	"text-extractor/src/singleinstance"
)

// Action is a user request posted to the loop.
type Action int

const (
	ActionExtract Action = iota
	ActionCheck
	ActionQuit
)

// Extractor is the part of *pipeline.Pipeline the loop drives.
type Extractor interface {
	Extract(ctx context.Context) pipeline.Result
	CheckDependencies(ctx context.Context) pipeline.Result
	InFlight() bool
}

// Indicator reflects loop state in the tray. All methods must be safe to
// call from the loop goroutine.
type Indicator interface {
	SetBusy(busy bool)
	SetLanguage(name string)
}

type Options struct {
	Pipeline  Extractor
	Server    singleinstance.Server // nil disables delegation
	Indicator Indicator             // nil when the tray is hidden
	Changes   <-chan settings.Change
	Log       zerolog.Logger
}

type Loop struct {
	opts    Options
	actions chan Action
	results chan result
}

type result struct {
	action Action
	res    pipeline.Result
	conn   singleinstance.Conn
}

func New(opts Options) *Loop {
	return &Loop{
		opts:    opts,
		actions: make(chan Action, 4),
		results: make(chan result, 4),
	}
}

// Post queues an action without blocking. Presses arriving while the queue
// is full are dropped.
func (l *Loop) Post(a Action) {
	select {
	case l.actions <- a:
	default:
		l.opts.Log.Debug().Int("action", int(a)).Msg("action queue full, dropped")
	}
}

// Run blocks until ctx is cancelled or ActionQuit is posted.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var reqCh chan singleinstance.Conn
	if l.opts.Server != nil {
		if err := l.opts.Server.Start(ctx); err != nil {
			return fmt.Errorf("start resident server: %w", err)
		}
		defer l.opts.Server.Close()
		l.opts.Log.Info().Int("port", l.opts.Server.Port()).Msg("resident listening")

		reqCh = make(chan singleinstance.Conn, 4)
		go func() {
			for {
				conn, err := l.opts.Server.Next(ctx)
				if err != nil {
					close(reqCh)
					return
				}
				reqCh <- conn
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-l.actions:
			if a == ActionQuit {
				l.opts.Log.Info().Msg("quit requested")
				return nil
			}
			l.start(ctx, a, nil)
		case conn, ok := <-reqCh:
			if !ok {
				reqCh = nil
				continue
			}
			l.handleConn(ctx, conn)
		case c, ok := <-l.opts.Changes:
			if !ok {
				l.opts.Changes = nil
				continue
			}
			l.handleChange(c)
		case r := <-l.results:
			l.handleResult(r)
		}
	}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	switch conn.Request().Kind {
	case singleinstance.KindExtract:
		l.start(ctx, ActionExtract, conn)
	case singleinstance.KindCheck:
		l.start(ctx, ActionCheck, conn)
	default:
		_ = conn.RespondError("unknown request")
		_ = conn.Close()
	}
}

// start runs the pipeline off the loop goroutine. Overlapping extractions
// are rejected by the pipeline itself, which reports OutcomeBusy.
func (l *Loop) start(ctx context.Context, a Action, conn singleinstance.Conn) {
	if a == ActionExtract {
		l.setBusy(true)
	}
	go func() {
		var res pipeline.Result
		defer func() {
			if p := recover(); p != nil {
				res = pipeline.Result{Outcome: pipeline.OutcomeInternal, Err: fmt.Errorf("panic: %v", p)}
			}
			l.results <- result{action: a, res: res, conn: conn}
		}()
		if a == ActionCheck {
			res = l.opts.Pipeline.CheckDependencies(ctx)
			return
		}
		res = l.opts.Pipeline.Extract(ctx)
	}()
}

func (l *Loop) handleResult(r result) {
	l.opts.Log.Debug().Str("outcome", r.res.Outcome.String()).Msg("request finished")
	if r.action == ActionExtract {
		l.setBusy(l.opts.Pipeline.InFlight())
	}
	if r.conn == nil {
		return
	}
	defer r.conn.Close()

	var err error
	if r.res.Outcome.Succeeded() {
		err = r.conn.RespondSuccess(successBody(r))
	} else {
		err = r.conn.RespondError(errorBody(r.res))
	}
	if err != nil {
		l.opts.Log.Warn().Err(err).Msg("reply to client failed")
	}
}

func (l *Loop) handleChange(c settings.Change) {
	if c.Key != settings.KeyLanguage || l.opts.Indicator == nil {
		return
	}
	l.opts.Indicator.SetLanguage(settings.LanguageName(c.Settings.Language))
}

func (l *Loop) setBusy(b bool) {
	if l.opts.Indicator != nil {
		l.opts.Indicator.SetBusy(b)
	}
}

func successBody(r result) string {
	if r.action == ActionCheck {
		return "All dependencies are installed and ready!"
	}
	return r.res.Text
}

func errorBody(res pipeline.Result) string {
	_, body := pipeline.Message(res)
	if res.Outcome == pipeline.OutcomeDependenciesMissing {
		body = "Missing dependencies:\n" + deps.Summary(res.Report) + "\n\n" + deps.InstallHint(res.Report)
	}
	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		body += "\n" + strings.TrimSpace(res.Err.Error())
	}
	return body
}
