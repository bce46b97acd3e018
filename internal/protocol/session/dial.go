package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// Dial connects to addr, retrying with backoff up to MaxConnectAttempts.
// TLS is negotiated before returning when enabled.
func Dial(ctx context.Context, addr string, cfg Config) (net.Conn, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, err
	}
	var tlsCfg *tls.Config
	if cfg.TLS.Enabled {
		var err error
		if tlsCfg, err = cfg.ClientTLSConfig(); err != nil {
			return nil, err
		}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxConnectAttempts; attempt++ {
		conn, err := dialOnce(ctx, addr, cfg.ConnectTimeout, tlsCfg)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt == cfg.MaxConnectAttempts {
			break
		}
		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		log.Debug().
			Str("addr", addr).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Err(err).
			Msg("session.Dial retry")
		if err := waitBackoff(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("session: dial %s after %d attempts: %w", addr, cfg.MaxConnectAttempts, lastErr)
}

func dialOnce(ctx context.Context, addr string, timeout time.Duration, tlsCfg *tls.Config) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	if tlsCfg == nil {
		return dialer.DialContext(ctx, "tcp", addr)
	}
	td := &tls.Dialer{NetDialer: dialer, Config: tlsCfg}
	return td.DialContext(ctx, "tcp", addr)
}
