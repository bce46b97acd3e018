package session

import (
	"context"
	"crypto/tls"
	"errors"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/danmuck/exprd/internal/testutil/testlog"
	"github.com/danmuck/exprd/internal/testutil/tlstest"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	got := NextBackoffDelay(cfg, 2, rng)
	if got < 250*time.Millisecond || got > 750*time.Millisecond {
		t.Fatalf("jitter out of range: %v", got)
	}
}

func TestWaitBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitBackoff(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	cfg := Config{ReadTimeout: -time.Second, SecurityMode: " Production "}.WithDefaults()
	if cfg.ConnectTimeout != 5*time.Second {
		t.Fatalf("unexpected connect timeout: %v", cfg.ConnectTimeout)
	}
	if cfg.ReadTimeout != 0 {
		t.Fatalf("negative read timeout not cleared: %v", cfg.ReadTimeout)
	}
	if cfg.MaxConnectAttempts != 3 {
		t.Fatalf("unexpected attempts: %d", cfg.MaxConnectAttempts)
	}
	if cfg.Backoff.InitialDelay != 250*time.Millisecond {
		t.Fatalf("unexpected backoff: %+v", cfg.Backoff)
	}
	if cfg.SecurityMode != SecurityModeProduction {
		t.Fatalf("unexpected mode: %q", cfg.SecurityMode)
	}
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecurityMode = "paranoid"
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrInvalidSecurityMode) {
		t.Fatalf("expected ErrInvalidSecurityMode, got %v", err)
	}
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrInvalidSecurityMode) {
		t.Fatalf("expected ErrInvalidSecurityMode, got %v", err)
	}
}

func TestValidateClientTransportProductionRequiresTLSMTLS(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.SecurityMode = SecurityModeProduction
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}

	cfg.TLS.Enabled = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrMTLSRequired) {
		t.Fatalf("expected ErrMTLSRequired, got %v", err)
	}

	cfg.TLS.Mutual = true
	cfg.TLS.InsecureSkipVerify = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSInsecureSkipNotAllow) {
		t.Fatalf("expected ErrTLSInsecureSkipNotAllow, got %v", err)
	}
}

func TestValidateClientTransportMutualRequiresCertKeyCA(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.TLS.Enabled = true
	cfg.TLS.Mutual = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}

	cfg.TLS.CAFile = "/tmp/ca.pem"
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}

	cfg.TLS.CertFile = "/tmp/client.pem"
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSKeyFileRequired) {
		t.Fatalf("expected ErrTLSKeyFileRequired, got %v", err)
	}

	cfg.TLS.KeyFile = "/tmp/client.key"
	if err := cfg.ValidateClientTransport(); err != nil {
		t.Fatalf("expected valid transport config, got %v", err)
	}
}

func TestValidateServerTransportProductionRequiresTLSMTLS(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.SecurityMode = SecurityModeProduction
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}

	cfg.TLS.Enabled = true
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrMTLSRequired) {
		t.Fatalf("expected ErrMTLSRequired, got %v", err)
	}

	cfg.TLS.Mutual = true
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}

	cfg.TLS.CertFile = "/tmp/server.pem"
	cfg.TLS.KeyFile = "/tmp/server.key"
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}
}

func TestDialPlainTCP(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
	}()

	conn, err := Dial(context.Background(), ln.Addr().String(), DefaultConfig())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()
}

func TestDialRetriesThenFails(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := DefaultConfig()
	cfg.MaxConnectAttempts = 2
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}
	if _, err := Dial(context.Background(), addr, cfg); err == nil {
		t.Fatalf("expected dial failure")
	}
}

func TestDialMutualTLS(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir, "exprd-test-ca")
	server := ca.IssueServer(t, dir, "exprd.local")
	client := ca.IssueClient(t, dir, "exprctl.local")

	srvCfg := DefaultConfig()
	srvCfg.TLS = TLSConfig{Enabled: true, Mutual: true, CertFile: server.CertFile, KeyFile: server.KeyFile, CAFile: ca.CAFile()}
	if err := srvCfg.ValidateServerTransport(); err != nil {
		t.Fatalf("validate server: %v", err)
	}
	tlsCfg, err := srvCfg.ServerTLSConfig()
	if err != nil {
		t.Fatalf("server tls config: %v", err)
	}
	if tlsCfg.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Fatalf("expected client certs required")
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", tlsCfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	peer := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			peer <- ""
			return
		}
		defer conn.Close()
		tc := conn.(*tls.Conn)
		if err := tc.Handshake(); err != nil {
			peer <- ""
			return
		}
		certs := tc.ConnectionState().PeerCertificates
		if len(certs) == 0 {
			peer <- ""
			return
		}
		peer <- PeerIdentity(certs[0])
	}()

	cliCfg := DefaultConfig()
	cliCfg.TLS = TLSConfig{
		Enabled:    true,
		Mutual:     true,
		CertFile:   client.CertFile,
		KeyFile:    client.KeyFile,
		CAFile:     ca.CAFile(),
		ServerName: "localhost",
	}
	conn, err := Dial(context.Background(), ln.Addr().String(), cliCfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case got := <-peer:
		if got != "exprctl.local" {
			t.Fatalf("unexpected peer identity: %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for handshake")
	}
}

func TestServerTLSConfigMissingFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLS = TLSConfig{Enabled: true, CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"}
	if _, err := cfg.ServerTLSConfig(); err == nil {
		t.Fatalf("expected load error")
	}
}
