package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/exprd/internal/protocol/frame"
	"github.com/danmuck/exprd/internal/protocol/session"
)

var (
	ErrMissingServerID   = errors.New("server: missing server id")
	ErrMissingListenAddr = errors.New("server: missing listen addr")
	ErrInvalidMaxConns   = errors.New("server: max conns must be >= 0")
)

// ServiceConfig configures one exprd instance.
type ServiceConfig struct {
	ServerID        string
	ListenAddr      string
	AdminListenAddr string
	CorsOrigins     []string
	// MaxConns bounds concurrently served connections; 0 means unbounded.
	MaxConns int
	Limits   frame.Limits
	Session  session.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ServerID:        "exprd.local",
		ListenAddr:      "127.0.0.1:9000",
		AdminListenAddr: "",
		CorsOrigins:     []string{"http://localhost:3000"},
		MaxConns:        0,
		Limits:          frame.DefaultLimits(),
		Session:         session.DefaultConfig(),
	}
}

func (c ServiceConfig) Validate() error {
	if strings.TrimSpace(c.ServerID) == "" {
		return ErrMissingServerID
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return ErrMissingListenAddr
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxConns, c.MaxConns)
	}
	return c.Session.ValidateServerTransport()
}
