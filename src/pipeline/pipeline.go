// Package pipeline runs one screen-text extraction: capture a region with
// the capture tool, recognise it with the OCR engine, and publish the text
// to the clipboard. At most one extraction runs at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"text-extractor/src/clipboard"
	"text-extractor/src/deps"
	"text-extractor/src/execrun"
	"text-extractor/src/logutil"
	"text-extractor/src/notification"
	"text-extractor/src/ocr"
)

type DependencyChecker interface {
	CheckAll(ctx context.Context, language string) deps.Report
}

type Recognizer interface {
	Recognize(ctx context.Context, imagePath, outputStem, language string) error
}

// LanguageSource supplies the OCR language at the start of each request.
type LanguageSource interface {
	Language() string
}

type Options struct {
	CaptureTool    string
	CaptureTimeout time.Duration
	TempDir        string

	Runner     execrun.Runner
	Recognizer Recognizer
	Checker    DependencyChecker
	Publisher  clipboard.Publisher
	Notifier   notification.Notifier
	Settings   LanguageSource

	Log   zerolog.Logger
	Clock func() time.Time
}

type Pipeline struct {
	opts     Options
	inFlight atomic.Bool
	state    atomic.Int32
}

func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Runner == nil:
		return nil, errors.New("Runner is required")
	case opts.Recognizer == nil:
		return nil, errors.New("Recognizer is required")
	case opts.Checker == nil:
		return nil, errors.New("Checker is required")
	case opts.Publisher == nil:
		return nil, errors.New("Publisher is required")
	case opts.Notifier == nil:
		return nil, errors.New("Notifier is required")
	}
	if opts.CaptureTool == "" {
		opts.CaptureTool = "gnome-screenshot"
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Pipeline{opts: opts}, nil
}

// InFlight reports whether an extraction is running.
func (p *Pipeline) InFlight() bool { return p.inFlight.Load() }

func (p *Pipeline) State() State { return State(p.state.Load()) }

// Extract runs a full extraction and notifies the user of the outcome. A
// call made while another is running returns OutcomeBusy at once.
func (p *Pipeline) Extract(ctx context.Context) Result {
	if !p.inFlight.CompareAndSwap(false, true) {
		res := Result{Outcome: OutcomeBusy}
		p.notify(res)
		return res
	}
	defer p.inFlight.Store(false)

	res := p.run(ctx)
	p.notify(res)
	return res
}

func (p *Pipeline) run(ctx context.Context) (res Result) {
	var req Request
	defer func() {
		if r := recover(); r != nil {
			p.opts.Log.Error().Interface("panic", r).Str("state", p.State().String()).Msg("extraction panicked")
			res = Result{Outcome: OutcomeInternal, Request: req, Err: fmt.Errorf("panic during %s: %v", p.State(), r)}
		}
		Cleanup(req)
		p.setState(StateIdle)
	}()

	lang := p.language()
	if report := p.opts.Checker.CheckAll(ctx, lang); !report.Ready() {
		p.opts.Log.Warn().Strs("packages", report.Packages()).Msg("dependencies missing, not capturing")
		return Result{Outcome: OutcomeDependenciesMissing, Report: report, HintCopied: p.copyHint(ctx, report)}
	}

	req = NewRequest(p.opts.TempDir, lang, p.opts.Clock())
	log := p.opts.Log.With().Str("request", req.ID).Str("language", lang).Logger()

	p.setState(StateCapturing)
	if res, ok := p.capture(ctx, req); !ok {
		log.Info().Str("outcome", res.Outcome.String()).Err(res.Err).Msg("capture ended")
		return res
	}

	p.setState(StateRecognizing)
	if err := p.opts.Recognizer.Recognize(ctx, req.ScreenshotPath, req.OutputStem, lang); err != nil {
		log.Warn().Err(err).Msg("recognition failed")
		if errors.Is(err, ocr.ErrLanguageMissing) {
			return Result{Outcome: OutcomeLanguageMissing, Request: req, Err: err}
		}
		return Result{Outcome: OutcomeOCRFailed, Request: req, Err: err}
	}

	p.setState(StateExtracting)
	text, res, ok := p.readOutput(req)
	if !ok {
		log.Info().Str("outcome", res.Outcome.String()).Err(res.Err).Msg("no text to publish")
		return res
	}

	p.setState(StatePublishing)
	words := len(strings.Fields(text))
	if err := p.opts.Publisher.Publish(ctx, text); err != nil {
		log.Error().Err(err).Msg("clipboard publish failed")
		return Result{Outcome: OutcomeClipboardFailed, Request: req, Text: text, WordCount: words, Err: err}
	}

	log.Info().Int("words", words).Str("text", logutil.Sanitize(text)).Msg("text copied to clipboard")
	return Result{Outcome: OutcomeDone, Request: req, Text: text, WordCount: words}
}

func (p *Pipeline) capture(ctx context.Context, req Request) (Result, bool) {
	out := <-execrun.Start(ctx, p.opts.Runner, execrun.Command{
		Argv:    []string{p.opts.CaptureTool, "-a", "-f", req.ScreenshotPath},
		Timeout: p.opts.CaptureTimeout,
	})
	if !out.Succeeded {
		err := out.Err
		if err == nil {
			err = fmt.Errorf("%s exited with %d", p.opts.CaptureTool, out.ExitCode)
		}
		return Result{Outcome: OutcomeCaptureFailed, Request: req, Err: err}, false
	}
	// A clean exit without a file means the selection was dismissed.
	if _, err := os.Stat(req.ScreenshotPath); err != nil {
		return Result{Outcome: OutcomeCancelled, Request: req}, false
	}
	return Result{}, true
}

func (p *Pipeline) readOutput(req Request) (string, Result, bool) {
	data, err := os.ReadFile(req.OutputPath())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", Result{Outcome: OutcomeOutputMissing, Request: req, Err: err}, false
	case err != nil:
		return "", Result{Outcome: OutcomeOutputUnreadable, Request: req, Err: err}, false
	}

	text := strings.TrimSpace(strings.ToValidUTF8(string(data), "�"))
	if text == "" {
		return "", Result{Outcome: OutcomeNoText, Request: req}, false
	}
	return text, Result{}, true
}

// CheckDependencies reports the environment state to the user and puts
// install commands on the clipboard when something is missing.
func (p *Pipeline) CheckDependencies(ctx context.Context) Result {
	report := p.opts.Checker.CheckAll(ctx, p.language())
	if report.Ready() {
		p.notifyRaw(title, "All dependencies are installed and ready!")
		return Result{Outcome: OutcomeDone}
	}
	res := Result{Outcome: OutcomeDependenciesMissing, Report: report, HintCopied: p.copyHint(ctx, report)}
	p.notify(res)
	return res
}

// CheckOnStart warns about missing packages and is silent otherwise.
func (p *Pipeline) CheckOnStart(ctx context.Context) deps.Report {
	report := p.opts.Checker.CheckAll(ctx, p.language())
	if !report.Ready() {
		p.notifyRaw(titleMissing, "Please install: "+strings.Join(report.Packages(), ", "))
	}
	return report
}

func (p *Pipeline) copyHint(ctx context.Context, report deps.Report) bool {
	if err := p.opts.Publisher.Publish(ctx, deps.InstallHint(report)); err != nil {
		p.opts.Log.Debug().Err(err).Msg("could not copy install commands")
		return false
	}
	return true
}

func (p *Pipeline) language() string {
	if p.opts.Settings == nil {
		return ocr.BaseLanguage
	}
	if lang := strings.TrimSpace(p.opts.Settings.Language()); lang != "" {
		return lang
	}
	return ocr.BaseLanguage
}

func (p *Pipeline) setState(s State) { p.state.Store(int32(s)) }

func (p *Pipeline) notify(res Result) {
	t, body := Message(res)
	p.notifyRaw(t, body)
}

func (p *Pipeline) notifyRaw(t, body string) {
	defer func() {
		if r := recover(); r != nil {
			p.opts.Log.Error().Interface("panic", r).Msg("notifier panicked")
		}
	}()
	if err := p.opts.Notifier.Notify(t, body); err != nil {
		p.opts.Log.Warn().Err(err).Msg("notify failed")
	}
}
