package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct {
	// Wait bounds the whole exchange; an extraction includes an
	// interactive selection, so it is long.
	Wait time.Duration
}

func NewClient(wait time.Duration) Client { return &tcpClient{Wait: wait} }

func (c *tcpClient) Delegate(ctx context.Context, kind Kind) (string, error) {
	port, ok := DetectResidentPort(ctx)
	if !ok {
		return "", ErrNoResident
	}

	addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial resident: %w", err)
	}
	defer conn.Close()

	if c.Wait > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.Wait))
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(string(kind) + "\n"); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read status: %w", err)
	}
	body, _ := io.ReadAll(br)
	switch status {
	case successStatus:
		return string(body), nil
	case errorStatus:
		return "", &RemoteError{Message: string(body)}
	default:
		return "", fmt.Errorf("unexpected reply %q", status)
	}
}
