// Package tray shows the panel indicator with the extension's menu.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"
)

const (
	appTitle    = "Text Extractor"
	idleTooltip = "Text Extractor"
	busyTooltip = "Text Extractor: extracting..."
)

type Options struct {
	Language  string // display name of the current OCR language
	Hotkey    string
	OnExtract func()
	OnCheck   func()
	OnQuit    func()
	Log       zerolog.Logger
}

// Tray is safe to update before the indicator is ready; the latest state
// is applied once the menu exists.
type Tray struct {
	opts Options

	mu       sync.Mutex
	ready    bool
	busy     bool
	language string
	langItem *systray.MenuItem
}

func New(opts Options) *Tray {
	return &Tray{opts: opts, language: opts.Language}
}

// SetHandlers replaces the menu callbacks. Call it before Run.
func (t *Tray) SetHandlers(onExtract, onCheck, onQuit func()) {
	t.opts.OnExtract = onExtract
	t.opts.OnCheck = onCheck
	t.opts.OnQuit = onQuit
}

// Run blocks on the systray main loop until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) Quit() { systray.Quit() }

func (t *Tray) SetBusy(busy bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = busy
	if t.ready {
		systray.SetTooltip(tooltip(busy))
	}
}

func (t *Tray) SetLanguage(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.language = name
	if t.ready && t.langItem != nil {
		t.langItem.SetTitle(languageLabel(name))
	}
}

func (t *Tray) onReady() {
	if icon := Icon(); icon != nil {
		systray.SetIcon(icon)
	}
	systray.SetTitle(appTitle)

	mExtract := systray.AddMenuItem(extractLabel(t.opts.Hotkey), "Select a screen region and copy its text")
	systray.AddSeparator()
	mLang := systray.AddMenuItem("", "Current OCR language")
	mLang.Disable()
	mCheck := systray.AddMenuItem("Check Dependencies", "Verify required tools are installed")
	mPrefs := systray.AddMenuItem("Preferences", "Change the language with: text-extractor language <code>")
	mPrefs.Disable()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Stop the text extractor")

	t.mu.Lock()
	t.ready = true
	t.langItem = mLang
	mLang.SetTitle(languageLabel(t.language))
	systray.SetTooltip(tooltip(t.busy))
	t.mu.Unlock()

	t.opts.Log.Debug().Msg("tray ready")
	go func() {
		for {
			select {
			case <-mExtract.ClickedCh:
				call(t.opts.OnExtract)
			case <-mCheck.ClickedCh:
				call(t.opts.OnCheck)
			case <-mQuit.ClickedCh:
				call(t.opts.OnQuit)
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	t.opts.Log.Debug().Msg("tray exited")
}

func call(f func()) {
	if f != nil {
		f()
	}
}

func languageLabel(name string) string { return "Language: " + name }

func extractLabel(hotkey string) string {
	if hotkey == "" {
		return "Extract Text from Screen"
	}
	return "Extract Text from Screen (" + hotkey + ")"
}

func tooltip(busy bool) string {
	if busy {
		return busyTooltip
	}
	return idleTooltip
}
