package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	residentHost  = "127.0.0.1"
	pingRequest   = "PING\n"
	pongResponse  = "PONG\n"
	successStatus = "SUCCESS\n"
	errorStatus   = "ERROR\n"

	requestReadTimeout = 3 * time.Second
)

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	log      zerolog.Logger
	lis      net.Listener
	incoming chan *tcpConn
	done     chan struct{}
	once     sync.Once
	port     int
}

func NewServer(log zerolog.Logger) Server {
	return &tcpServer{
		log:      log.With().Str("component", "singleinstance").Logger(),
		incoming: make(chan *tcpConn, 8),
		done:     make(chan struct{}),
	}
}

// Start binds the first free port of the configured range.
func (s *tcpServer) Start(ctx context.Context) error {
	if s.lis != nil {
		return nil
	}
	r := PortRangeFromEnv()
	var lastErr error
	for port := r.Start; port <= r.End; port++ {
		addr := fmt.Sprintf("%s:%d", residentHost, port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		s.lis = lis
		s.port = port
		s.log.Info().Str("addr", addr).Msg("listening")
		go s.acceptLoop(ctx)
		return nil
	}
	return fmt.Errorf("no free port in %d-%d: %w", r.Start, r.End, lastErr)
}

func (s *tcpServer) Port() int { return s.port }

func (s *tcpServer) acceptLoop(ctx context.Context) {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Msg("accept failed")
			}
			return
		}
		go s.handle(ctx, c)
	}
}

// handle reads one request line. A client that never sends one is dropped
// when the read deadline passes.
func (s *tcpServer) handle(ctx context.Context, c net.Conn) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(requestReadTimeout))
	line, _ := bufio.NewReader(c).ReadString('\n')
	bw := bufio.NewWriter(c)
	if line == pingRequest {
		s.log.Debug().Str("remote", remote).Msg("PING -> PONG")
		_, _ = bw.WriteString(pongResponse)
		_ = bw.Flush()
		_ = c.Close()
		return
	}

	kind, ok := parseKind(line)
	if !ok {
		s.log.Warn().Str("remote", remote).Str("line", line).Msg("unknown request")
		_, _ = bw.WriteString(errorStatus + "unknown request")
		_ = bw.Flush()
		_ = c.Close()
		return
	}
	_ = c.SetDeadline(time.Time{})
	s.log.Info().Str("remote", remote).Str("kind", string(kind)).Msg("request")
	select {
	case s.incoming <- &tcpConn{c: c, r: Request{Kind: kind}, w: bw}:
	case <-ctx.Done():
		_ = c.Close()
	case <-s.done:
		_ = c.Close()
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, net.ErrClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.lis != nil {
			_ = s.lis.Close()
		}
	})
	return nil
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(body string) error {
	if _, err := tc.w.WriteString(successStatus + body); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(errorStatus + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
