package sessionkit

import (
	"errors"
	"time"
)

// Config defines registry behavior. Configure once, then treat as
// immutable; Build validates and snapshots it.
type Config struct {
	Session SessionConfig
	JWT     JWTConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// SessionConfig controls session persistence and lifetime policy.
type SessionConfig struct {
	// RedisPrefix namespaces every key the registry writes.
	RedisPrefix string
	// Lifetime is the absolute deadline assigned at issuance.
	Lifetime time.Duration
	// SlidingRenewal, when set, moves the deadline to now+Lifetime on
	// every successful renewal. Off by default: the deadline set at login
	// is final.
	SlidingRenewal bool
}

// JWTConfig controls access-token issuance.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events under backpressure instead of blocking
	// hot paths. Dropped counts are observable via [Registry.AuditDropped].
	DropIfFull bool
}

// MetricsConfig toggles the in-process counter set.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 30-day sessions,
// 15-minute access tokens, metrics on, audit off.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "sk",
			Lifetime:    30 * 24 * time.Hour,
		},
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "sessionkit",
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func (c *Config) validate() error {
	if c.Session.Lifetime < time.Minute {
		return errors.New("session lifetime must be at least one minute")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("access TTL must be positive")
	}
	if c.JWT.AccessTTL >= c.Session.Lifetime {
		return errors.New("access TTL must be shorter than session lifetime")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive when audit is enabled")
	}
	return nil
}
