package compute

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// TCP is a client for a scripting service speaking a line protocol:
//
//	LOAD <library> <requester>\n   ->   OK\n | ERR <message>\n
//
// Every request carries a deadline: the context deadline if set, else
// Timeout.
type TCP struct {
	Addr    string
	Timeout time.Duration
}

// NewTCP creates a client for the service at addr.
func NewTCP(addr string, timeout time.Duration) *TCP {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TCP{Addr: addr, Timeout: timeout}
}

func (t *TCP) Name() string { return "R" }

func (t *TCP) Dial(ctx context.Context) (Conn, error) {
	d := net.Dialer{Timeout: t.Timeout}
	c, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %v", t.Addr, ErrServiceUnavailable, err)
	}
	return &tcpConn{conn: c, r: bufio.NewReader(c), timeout: t.Timeout}, nil
}

type tcpConn struct {
	mu      sync.Mutex
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

func (c *tcpConn) LoadLibrary(ctx context.Context, name, requester string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(c.conn, "LOAD %s %s\n", name, requester); err != nil {
		return fmt.Errorf("send load %s: %w", name, err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read load %s: %w", name, err)
	}

	line = strings.TrimSpace(line)
	switch {
	case line == "OK":
		return nil
	case strings.HasPrefix(line, "ERR"):
		msg := strings.TrimSpace(strings.TrimPrefix(line, "ERR"))
		return fmt.Errorf("%s: %w: %s", name, ErrLibraryUnavailable, msg)
	default:
		return fmt.Errorf("load %s: unexpected reply %q", name, line)
	}
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}
