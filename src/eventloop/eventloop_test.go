package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"text-extractor/src/deps"
	"text-extractor/src/pipeline"
	"text-extractor/src/settings"
	"text-extractor/src/singleinstance"
)

type fakeExtractor struct {
	mu      sync.Mutex
	extract pipeline.Result
	check   pipeline.Result
	calls   []string
}

func (f *fakeExtractor) Extract(context.Context) pipeline.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "extract")
	return f.extract
}

func (f *fakeExtractor) CheckDependencies(context.Context) pipeline.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "check")
	return f.check
}

func (f *fakeExtractor) InFlight() bool { return false }

type fakeIndicator struct {
	mu       sync.Mutex
	busy     []bool
	language string
}

func (f *fakeIndicator) SetBusy(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = append(f.busy, b)
}

func (f *fakeIndicator) SetLanguage(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.language = name
}

func (f *fakeIndicator) snapshot() ([]bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.busy...), f.language
}

type fakeServer struct {
	conns chan singleinstance.Conn
}

func (s *fakeServer) Start(context.Context) error { return nil }
func (s *fakeServer) Port() int                   { return 49600 }
func (s *fakeServer) Close() error                { return nil }
func (s *fakeServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-s.conns:
		return c, nil
	}
}

type fakeConn struct {
	kind   singleinstance.Kind
	status chan string
	body   chan string
}

func newConn(kind singleinstance.Kind) *fakeConn {
	return &fakeConn{kind: kind, status: make(chan string, 1), body: make(chan string, 1)}
}

func (c *fakeConn) Request() singleinstance.Request { return singleinstance.Request{Kind: c.kind} }
func (c *fakeConn) Close() error                    { return nil }
func (c *fakeConn) RespondSuccess(body string) error {
	c.status <- "SUCCESS"
	c.body <- body
	return nil
}
func (c *fakeConn) RespondError(msg string) error {
	c.status <- "ERROR"
	c.body <- msg
	return nil
}

func runLoop(t *testing.T, l *Loop) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reply")
		return ""
	}
}

func TestDelegatedExtractReturnsText(t *testing.T) {
	ex := &fakeExtractor{extract: pipeline.Result{Outcome: pipeline.OutcomeDone, Text: "Hello World", WordCount: 2}}
	srv := &fakeServer{conns: make(chan singleinstance.Conn, 1)}
	ind := &fakeIndicator{}
	runLoop(t, New(Options{Pipeline: ex, Server: srv, Indicator: ind, Log: zerolog.Nop()}))

	conn := newConn(singleinstance.KindExtract)
	srv.conns <- conn
	assert.Equal(t, "SUCCESS", recv(t, conn.status))
	assert.Equal(t, "Hello World", recv(t, conn.body))

	require.Eventually(t, func() bool {
		busy, _ := ind.snapshot()
		return len(busy) == 2
	}, 2*time.Second, 10*time.Millisecond)
	busy, _ := ind.snapshot()
	assert.Equal(t, []bool{true, false}, busy)
}

func TestDelegatedCheckReportsMissing(t *testing.T) {
	report := deps.Report{{Command: "xclip", Package: "xclip", Description: "Clipboard utility"}}
	ex := &fakeExtractor{check: pipeline.Result{Outcome: pipeline.OutcomeDependenciesMissing, Report: report}}
	srv := &fakeServer{conns: make(chan singleinstance.Conn, 1)}
	runLoop(t, New(Options{Pipeline: ex, Server: srv, Log: zerolog.Nop()}))

	conn := newConn(singleinstance.KindCheck)
	srv.conns <- conn
	assert.Equal(t, "ERROR", recv(t, conn.status))
	body := recv(t, conn.body)
	assert.Contains(t, body, "• xclip - Clipboard utility")
	assert.Contains(t, body, "sudo pacman -S xclip")
}

func TestDelegatedFailureIncludesCause(t *testing.T) {
	ex := &fakeExtractor{extract: pipeline.Result{Outcome: pipeline.OutcomeCaptureFailed, Err: errors.New("gnome-screenshot exited with 1")}}
	srv := &fakeServer{conns: make(chan singleinstance.Conn, 1)}
	runLoop(t, New(Options{Pipeline: ex, Server: srv, Log: zerolog.Nop()}))

	conn := newConn(singleinstance.KindExtract)
	srv.conns <- conn
	assert.Equal(t, "ERROR", recv(t, conn.status))
	assert.Equal(t, "Screenshot failed\ngnome-screenshot exited with 1", recv(t, conn.body))
}

func TestPostedActionsAndQuit(t *testing.T) {
	ex := &fakeExtractor{
		extract: pipeline.Result{Outcome: pipeline.OutcomeNoText},
		check:   pipeline.Result{Outcome: pipeline.OutcomeDone},
	}
	l := New(Options{Pipeline: ex, Log: zerolog.Nop()})
	_, done := runLoop(t, l)

	l.Post(ActionExtract)
	l.Post(ActionCheck)
	require.Eventually(t, func() bool {
		ex.mu.Lock()
		defer ex.mu.Unlock()
		return len(ex.calls) == 2
	}, 2*time.Second, 10*time.Millisecond)
	ex.mu.Lock()
	assert.ElementsMatch(t, []string{"extract", "check"}, ex.calls)
	ex.mu.Unlock()

	l.Post(ActionQuit)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not quit")
	}
}

func TestLanguageChangeUpdatesIndicator(t *testing.T) {
	changes := make(chan settings.Change, 1)
	ind := &fakeIndicator{}
	runLoop(t, New(Options{Pipeline: &fakeExtractor{}, Indicator: ind, Changes: changes, Log: zerolog.Nop()}))

	changes <- settings.Change{Key: settings.KeyLanguage, Settings: settings.Settings{Language: "tam"}}
	require.Eventually(t, func() bool {
		_, lang := ind.snapshot()
		return lang == "Tamil"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunStopsOnCancel(t *testing.T) {
	cancel, done := runLoop(t, New(Options{Pipeline: &fakeExtractor{}, Log: zerolog.Nop()}))
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}
