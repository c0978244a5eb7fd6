package sessionkit

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"

	"github.com/airvend/sessionkit/jwt"
	"github.com/airvend/sessionkit/session"
)

// Builder assembles a [Registry]. Zero or more With* calls, then Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger logr.Logger
	sink   AuditSink
	clock  func() time.Time
	built  bool
}

// New returns a Builder pre-loaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the session store. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger logr.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithClock overrides time measurement, for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and constructs the Registry. A Builder
// builds at most once.
func (b *Builder) Build() (*Registry, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if err := b.config.validate(); err != nil {
		return nil, err
	}

	cfg := b.config
	if cfg.JWT.SigningMethod == "" {
		cfg.JWT.SigningMethod = string(jwt.MethodEd25519)
	}
	// Ephemeral keypair when none is supplied: fine for tests and single
	// instance deployments, useless across restarts or replicas.
	if cfg.JWT.SigningMethod == string(jwt.MethodEd25519) && len(cfg.JWT.PrivateKey) == 0 {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
	}

	manager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	logger := b.logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	b.built = true
	return &Registry{
		config:  cfg,
		store:   session.NewStore(b.redis, cfg.Session.RedisPrefix),
		jwt:     manager,
		metrics: NewMetrics(cfg.Metrics.Enabled),
		audit:   newAuditDispatcher(cfg.Audit, b.sink),
		log:     logger.WithName("sessionkit"),
		now:     clock,
	}, nil
}
