package notification

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	appName     = "Text Extractor"
	appIcon     = "document-edit-symbolic"
	busName     = "org.freedesktop.Notifications"
	objectPath  = "/org/freedesktop/Notifications"
	notifyCall  = busName + ".Notify"
	expireAfter = int32(5000) // ms
)

// Notifier surfaces a title/body message to the user.
type Notifier interface {
	Notify(title, body string) error
}

// LogNotifier writes notifications to the log only.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(title, body string) error {
	n.Log.Info().Str("title", title).Str("body", body).Msg("notification")
	return nil
}

// bus is the slice of *dbus.Conn used here, so tests can stand in.
type bus interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// DesktopNotifier sends freedesktop notifications over the session bus and
// falls back to the log when the bus is unavailable.
type DesktopNotifier struct {
	fallback LogNotifier

	mu      sync.Mutex
	conn    bus
	connect func() (bus, error)
}

func NewDesktopNotifier(log zerolog.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		fallback: LogNotifier{Log: log},
		connect: func() (bus, error) {
			c, err := dbus.SessionBus()
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

func (n *DesktopNotifier) Notify(title, body string) error {
	if err := n.send(title, body); err != nil {
		n.fallback.Log.Warn().Err(err).Msg("desktop notification failed, logging instead")
		return n.fallback.Notify(title, body)
	}
	return nil
}

func (n *DesktopNotifier) send(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		c, err := n.connect()
		if err != nil {
			return fmt.Errorf("session bus: %w", err)
		}
		n.conn = c
	}

	obj := n.conn.Object(busName, objectPath)
	call := obj.Call(notifyCall, 0,
		appName, uint32(0), appIcon, title, body,
		[]string{}, map[string]dbus.Variant{}, expireAfter)
	if call.Err != nil {
		// Drop the connection so the next notification reconnects.
		n.conn = nil
		return call.Err
	}
	return nil
}

// New picks the notifier for kind ("desktop" or "log").
func New(kind string, log zerolog.Logger) Notifier {
	if kind == "log" {
		return LogNotifier{Log: log}
	}
	return NewDesktopNotifier(log)
}
