package session

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrInvalidSecurityMode     = errors.New("session: invalid security mode")
	ErrTLSRequired             = errors.New("session: tls required")
	ErrMTLSRequired            = errors.New("session: mtls required")
	ErrTLSCertFileRequired     = errors.New("session: tls cert file required")
	ErrTLSKeyFileRequired      = errors.New("session: tls key file required")
	ErrTLSCAFileRequired       = errors.New("session: tls ca file required")
	ErrTLSInsecureSkipNotAllow = errors.New("session: insecure skip verify not allowed")
)

func NormalizeSecurityMode(mode SecurityMode) SecurityMode {
	if strings.TrimSpace(string(mode)) == "" {
		return SecurityModeDevelopment
	}
	return SecurityMode(strings.ToLower(strings.TrimSpace(string(mode))))
}

func (c Config) ValidateClientTransport() error {
	mode := NormalizeSecurityMode(c.SecurityMode)
	switch mode {
	case SecurityModeDevelopment, SecurityModeProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSecurityMode, c.SecurityMode)
	}

	if mode == SecurityModeProduction {
		if !c.TLS.Enabled {
			return ErrTLSRequired
		}
		if !c.TLS.Mutual {
			return ErrMTLSRequired
		}
		if c.TLS.InsecureSkipVerify {
			return ErrTLSInsecureSkipNotAllow
		}
	}
	if c.TLS.Mutual && !c.TLS.Enabled {
		return ErrTLSRequired
	}
	if c.TLS.Enabled && strings.TrimSpace(c.TLS.CAFile) == "" && !c.TLS.InsecureSkipVerify {
		return ErrTLSCAFileRequired
	}
	if c.TLS.Mutual {
		if strings.TrimSpace(c.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(c.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	return nil
}

func (c Config) ValidateServerTransport() error {
	mode := NormalizeSecurityMode(c.SecurityMode)
	switch mode {
	case SecurityModeDevelopment, SecurityModeProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSecurityMode, c.SecurityMode)
	}

	if mode == SecurityModeProduction {
		if !c.TLS.Enabled {
			return ErrTLSRequired
		}
		if !c.TLS.Mutual {
			return ErrMTLSRequired
		}
	}
	if c.TLS.Mutual && !c.TLS.Enabled {
		return ErrTLSRequired
	}
	if c.TLS.Enabled {
		if strings.TrimSpace(c.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(c.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	if c.TLS.Mutual && strings.TrimSpace(c.TLS.CAFile) == "" {
		return ErrTLSCAFileRequired
	}
	return nil
}

// ServerTLSConfig builds the listener TLS config. Client certificates are
// required in mutual or production mode.
func (c Config) ServerTLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("session: load server key pair: %w", err)
	}
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.NoClientCert,
	}

	if c.TLS.Mutual || NormalizeSecurityMode(c.SecurityMode) == SecurityModeProduction {
		pool, err := loadCAPool(c.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = pool
	}
	return cfg, nil
}

// ClientTLSConfig builds the dialer TLS config.
func (c Config) ClientTLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         strings.TrimSpace(c.TLS.ServerName),
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	if strings.TrimSpace(c.TLS.CAFile) != "" {
		pool, err := loadCAPool(c.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	if c.TLS.Mutual {
		cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("session: load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	caPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read tls ca bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(caPEM); !ok {
		return nil, fmt.Errorf("session: parse tls ca bundle: %s", path)
	}
	return pool, nil
}

// PeerIdentity extracts a peer name from a certificate using CN, then URI,
// then DNS SAN.
func PeerIdentity(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	if v := strings.TrimSpace(cert.Subject.CommonName); v != "" {
		return v
	}
	if len(cert.URIs) > 0 {
		if v := strings.TrimSpace(cert.URIs[0].String()); v != "" {
			return v
		}
	}
	if len(cert.DNSNames) > 0 {
		if v := strings.TrimSpace(cert.DNSNames[0]); v != "" {
			return v
		}
	}
	return ""
}
