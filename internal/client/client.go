// Package client speaks the framed request/response protocol to exprd.
package client

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/exprd/internal/calc"
	"github.com/danmuck/exprd/internal/protocol/frame"
	"github.com/danmuck/exprd/internal/protocol/session"
)

var ErrEmptyExpression = errors.New("client: empty expression")

// Client holds one connection. Calls are serialized so each response pairs
// with the request that produced it.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	cfg    session.Config
	limits frame.Limits
}

// Dial connects to addr with retry/backoff and optional TLS from cfg.
func Dial(ctx context.Context, addr string, cfg session.Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	conn, err := session.Dial(ctx, addr, cfg)
	if err != nil {
		return nil, err
	}
	return New(conn, cfg), nil
}

// New wraps an established connection.
func New(conn net.Conn, cfg session.Config) *Client {
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		cfg:    cfg,
		limits: frame.DefaultLimits(),
	}
}

// Send writes one expression and returns the raw response payload. A single
// trailing newline is stripped before framing.
func (c *Client) Send(expression string) ([]byte, error) {
	expression = strings.TrimSuffix(strings.TrimSuffix(expression, "\n"), "\r")
	if expression == "" {
		return nil, ErrEmptyExpression
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if d := c.cfg.WriteTimeout; d > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(d))
	}
	if err := frame.WriteFrame(c.conn, []byte(expression), c.limits); err != nil {
		return nil, err
	}
	if d := c.cfg.ReadTimeout; d > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
	}
	return frame.ReadFrame(c.reader, c.limits)
}

// Eval sends one expression and parses the response line.
func (c *Client) Eval(expression string) (calc.Response, error) {
	payload, err := c.Send(expression)
	if err != nil {
		return calc.Response{}, err
	}
	return calc.ParseResponse(payload)
}

func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Client) Close() error {
	return c.conn.Close()
}
