// Package hotkey binds the global extraction shortcut with gohook.
package hotkey

import (
	"context"
	"fmt"
	"strings"

	gohook "github.com/robotn/gohook"
	"github.com/rs/zerolog"
)

// Combo is a parsed shortcut: modifiers in gohook's naming plus one key.
type Combo struct {
	Modifiers []string
	Key       string
}

// Keys lists the combo the way gohook.Register expects it, key first.
func (c Combo) Keys() []string {
	return append([]string{c.Key}, c.Modifiers...)
}

func (c Combo) String() string {
	return strings.Join(append(append([]string{}, c.Modifiers...), c.Key), "+")
}

// Parse converts a shortcut like "Ctrl+Shift+E" into a Combo.
func Parse(spec string) (Combo, error) {
	keys := parseHotkey(spec)
	var c Combo
	for _, k := range keys {
		switch {
		case k == "":
			return Combo{}, fmt.Errorf("hotkey %q: empty key", spec)
		case isModifier(k):
			c.Modifiers = append(c.Modifiers, k)
		case c.Key != "":
			return Combo{}, fmt.Errorf("hotkey %q: more than one non-modifier key", spec)
		case !knownKey(k):
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", spec, k)
		default:
			c.Key = k
		}
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: no key besides modifiers", spec)
	}
	return c, nil
}

// Listen registers combo and invokes callback on every press until ctx is
// done. It blocks, so callers run it on its own goroutine.
func Listen(ctx context.Context, combo Combo, log zerolog.Logger, callback func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("hotkey listener panicked")
		}
	}()

	gohook.Register(gohook.KeyDown, combo.Keys(), func(gohook.Event) {
		log.Debug().Str("hotkey", combo.String()).Msg("hotkey pressed")
		if callback != nil {
			callback()
		}
	})
	log.Info().Str("hotkey", combo.String()).Msg("hotkey registered")

	events := gohook.Start()
	stop := context.AfterFunc(ctx, gohook.End)
	defer stop()
	<-gohook.Process(events)
	log.Debug().Msg("hotkey listener stopped")
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			keys = append(keys, "ctrl")
		case "alt":
			keys = append(keys, "alt")
		case "shift":
			keys = append(keys, "shift")
		case "win", "cmd", "super", "meta":
			keys = append(keys, "cmd")
		case "return":
			keys = append(keys, "enter")
		case "escape":
			keys = append(keys, "esc")
		default:
			keys = append(keys, part)
		}
	}

	return keys
}

func isModifier(k string) bool {
	switch k {
	case "ctrl", "alt", "shift", "cmd":
		return true
	}
	return false
}

var namedKeys = map[string]bool{
	"space": true, "enter": true, "esc": true, "tab": true,
	"backspace": true, "delete": true, "insert": true,
	"home": true, "end": true, "pageup": true, "pagedown": true,
	"left": true, "up": true, "right": true, "down": true,
	"print": true,
}

func knownKey(k string) bool {
	if len(k) == 1 {
		c := k[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	if namedKeys[k] {
		return true
	}
	var n int
	if _, err := fmt.Sscanf(k, "f%d", &n); err == nil && fmt.Sprintf("f%d", n) == k {
		return n >= 1 && n <= 24
	}
	return false
}
