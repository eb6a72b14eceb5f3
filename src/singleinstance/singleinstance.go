// Package singleinstance lets CLI invocations hand work to the resident
// text-extractor over a loopback TCP line protocol:
//
//	client: PING\n            server: PONG\n
//	client: EXTRACT\n|CHECK\n server: SUCCESS\n<body> | ERROR\n<message>
package singleinstance

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
)

// Kind is the work a client asks the resident to do.
type Kind string

const (
	KindExtract Kind = "EXTRACT"
	KindCheck   Kind = "CHECK"
)

// ErrNoResident means no server in the port range answered PING.
var ErrNoResident = errors.New("no resident instance")

// Server owns the TCP endpoint and answers delegated requests.
type Server interface {
	// Start binds the first free port in the configured range.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted request, or ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one client connection awaiting a response.
type Conn interface {
	Request() Request
	RespondSuccess(body string) error
	RespondError(msg string) error
	Close() error
}

type Request struct {
	Kind Kind
}

// Client delegates a request to a resident server.
type Client interface {
	// Delegate returns ErrNoResident when nothing answers; a resident's
	// ERROR reply comes back as a *RemoteError.
	Delegate(ctx context.Context, kind Kind) (string, error)
}

// RemoteError carries the message of an ERROR reply.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return strings.TrimSpace(e.Message) }

func parseKind(line string) (Kind, bool) {
	switch k := Kind(strings.TrimSpace(line)); k {
	case KindExtract, KindCheck:
		return k, true
	default:
		return "", false
	}
}

// PortRange is the inclusive band of loopback ports a resident may bind.
type PortRange struct {
	Start, End int
}

var DefaultPortRange = PortRange{Start: 49600, End: 49650}

// PortRangeFromEnv applies SINGLEINSTANCE_PORT_START and
// SINGLEINSTANCE_PORT_END over DefaultPortRange. Unparsable values are
// ignored and the result stays within unprivileged ports.
func PortRangeFromEnv() PortRange {
	r := PortRange{
		Start: envPort("SINGLEINSTANCE_PORT_START", DefaultPortRange.Start),
		End:   envPort("SINGLEINSTANCE_PORT_END", DefaultPortRange.End),
	}
	r.Start = max(r.Start, 1024)
	r.End = min(r.End, 65535)
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

func envPort(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}
