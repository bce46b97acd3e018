package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/exprd/internal/protocol/frame"
	"github.com/danmuck/exprd/internal/protocol/session"
	"github.com/danmuck/exprd/internal/server"
)

// exprd config.toml key mapping to server runtime settings.
type fileConfig struct {
	Addr                string   `toml:"addr"`
	ID                  string   `toml:"id"`
	AdminListenAddr     string   `toml:"admin_listen_addr"`
	CorsOrigins         []string `toml:"cors_origins"`
	MaxConns            int      `toml:"max_conns"`
	MaxFrameBytes       int64    `toml:"max_frame_bytes"`
	ReadTimeout         string   `toml:"read_timeout"`
	WriteTimeout        string   `toml:"write_timeout"`
	SessionSecurityMode string   `toml:"session_security_mode"`
	SessionTLSEnabled   bool     `toml:"session_tls_enabled"`
	SessionTLSMutual    bool     `toml:"session_tls_mutual"`
	SessionTLSCertFile  string   `toml:"session_tls_cert_file"`
	SessionTLSKeyFile   string   `toml:"session_tls_key_file"`
	SessionTLSCAFile    string   `toml:"session_tls_ca_file"`
}

// exprd loader for TOML config with default overlay.
func loadServiceConfig(path string) (server.ServiceConfig, error) {
	cfg := server.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return server.ServiceConfig{}, fmt.Errorf("load exprd config: %w", err)
	}

	if meta.IsDefined("addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("id") {
		cfg.ServerID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("max_conns") {
		cfg.MaxConns = raw.MaxConns
	}
	if meta.IsDefined("max_frame_bytes") {
		if raw.MaxFrameBytes < 0 || raw.MaxFrameBytes > frame.MaxPayload {
			return server.ServiceConfig{}, fmt.Errorf(
				"load exprd config: max_frame_bytes %d out of range (max %d)",
				raw.MaxFrameBytes,
				frame.MaxPayload,
			)
		}
		cfg.Limits.MaxPayloadBytes = uint32(raw.MaxFrameBytes)
	}
	if meta.IsDefined("read_timeout") {
		d, err := parseTimeout("read_timeout", raw.ReadTimeout)
		if err != nil {
			return server.ServiceConfig{}, err
		}
		cfg.Session.ReadTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := parseTimeout("write_timeout", raw.WriteTimeout)
		if err != nil {
			return server.ServiceConfig{}, err
		}
		cfg.Session.WriteTimeout = d
	}
	if meta.IsDefined("session_security_mode") {
		cfg.Session.SecurityMode = session.SecurityMode(strings.TrimSpace(raw.SessionSecurityMode))
	}
	if meta.IsDefined("session_tls_enabled") {
		cfg.Session.TLS.Enabled = raw.SessionTLSEnabled
	}
	if meta.IsDefined("session_tls_mutual") {
		cfg.Session.TLS.Mutual = raw.SessionTLSMutual
	}
	if meta.IsDefined("session_tls_cert_file") {
		cfg.Session.TLS.CertFile = strings.TrimSpace(raw.SessionTLSCertFile)
	}
	if meta.IsDefined("session_tls_key_file") {
		cfg.Session.TLS.KeyFile = strings.TrimSpace(raw.SessionTLSKeyFile)
	}
	if meta.IsDefined("session_tls_ca_file") {
		cfg.Session.TLS.CAFile = strings.TrimSpace(raw.SessionTLSCAFile)
	}

	cfg.Limits = cfg.Limits.Normalize()
	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return server.ServiceConfig{}, fmt.Errorf("load exprd config: %w", err)
	}
	return cfg, nil
}

func parseTimeout(key string, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("load exprd config: %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("load exprd config: %s must not be negative", key)
	}
	return d, nil
}

// defaultFileConfig mirrors server.DefaultServiceConfig in file form.
func defaultFileConfig() fileConfig {
	cfg := server.DefaultServiceConfig()
	return fileConfig{
		Addr:                cfg.ListenAddr,
		ID:                  cfg.ServerID,
		AdminListenAddr:     "127.0.0.1:9090",
		CorsOrigins:         cfg.CorsOrigins,
		MaxConns:            cfg.MaxConns,
		MaxFrameBytes:       int64(cfg.Limits.MaxPayloadBytes),
		ReadTimeout:         "0s",
		WriteTimeout:        "0s",
		SessionSecurityMode: string(cfg.Session.SecurityMode),
	}
}

func encodeTemplate(w io.Writer) error {
	return toml.NewEncoder(w).Encode(defaultFileConfig())
}

func writeTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := encodeTemplate(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
