package session

import "time"

// SecurityMode selects how strictly transport security is enforced.
type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// TLSConfig holds certificate material for one side of a connection.
type TLSConfig struct {
	Enabled            bool
	Mutual             bool
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// Config defines transport/session reliability defaults. Zero read/write
// timeouts leave frames without deadlines.
type Config struct {
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxConnectAttempts int
	Backoff            BackoffConfig
	SecurityMode       SecurityMode
	TLS                TLSConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		MaxConnectAttempts: 3,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		SecurityMode: SecurityModeDevelopment,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
	if c.WriteTimeout < 0 {
		c.WriteTimeout = 0
	}
	if c.MaxConnectAttempts <= 0 {
		c.MaxConnectAttempts = def.MaxConnectAttempts
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	c.SecurityMode = NormalizeSecurityMode(c.SecurityMode)
	return c
}
