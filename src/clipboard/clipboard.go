package clipboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.design/x/clipboard"

	"text-extractor/src/execrun"
)

// Publisher places text on the system clipboard.
type Publisher interface {
	Publish(ctx context.Context, text string) error
}

var ErrClipboardTool = errors.New("clipboard tool failed")

// ToolPublisher streams text to an external clipboard utility's stdin.
type ToolPublisher struct {
	Tool    string
	Runner  execrun.Runner
	Timeout time.Duration
}

// Args builds the argv for writing the clipboard selection.
func (p ToolPublisher) Args() []string {
	tool := p.Tool
	if tool == "" {
		tool = "xclip"
	}
	return []string{tool, "-selection", "clipboard"}
}

func (p ToolPublisher) Publish(ctx context.Context, text string) error {
	out := p.Runner.Run(ctx, execrun.Command{
		Argv:    p.Args(),
		Stdin:   []byte(text),
		Timeout: p.Timeout,
	})
	if out.Succeeded {
		return nil
	}
	if out.Err != nil {
		return fmt.Errorf("%w: %v", ErrClipboardTool, out.Err)
	}
	return fmt.Errorf("%w: exit %d", ErrClipboardTool, out.ExitCode)
}

var (
	initOnce sync.Once
	initErr  error
	writeMu  sync.Mutex
)

// NativePublisher writes through the display server directly, without a helper tool.
type NativePublisher struct{}

func (NativePublisher) Publish(_ context.Context, text string) error {
	initOnce.Do(func() { initErr = clipboard.Init() })
	if initErr != nil {
		return fmt.Errorf("init clipboard: %w", initErr)
	}
	// mutex-guarded to prevent corruption under parallel writes
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
