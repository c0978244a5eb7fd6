package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// ErrSessionExpired is the terminal outcome of a failed renewal. Every
// request queued during the failing renewal resolves with an error wrapping
// this sentinel; the underlying denial kind is preserved in the chain.
var ErrSessionExpired = errors.New("session expired, sign-in required")

// Renewer performs one renewal attempt against the server. Implementations
// own the refresh-credential transport (typically a cookie jar) and update
// the access credential on success.
type Renewer interface {
	Renew(ctx context.Context) error
}

// TokenSource supplies the current access credential for outbound requests
// and accepts the replacement issued by a renewal.
type TokenSource interface {
	Token() string
	SetToken(token string)
}

// MemoryTokenSource is a mutex-guarded in-process TokenSource.
type MemoryTokenSource struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryTokenSource(token string) *MemoryTokenSource {
	return &MemoryTokenSource{token: token}
}

func (s *MemoryTokenSource) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryTokenSource) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Config assembles a [Coordinator].
type Config struct {
	// Base is the wrapped transport. Defaults to http.DefaultTransport.
	Base http.RoundTripper
	// Renewer is required.
	Renewer Renewer
	// Tokens, when set, stamps the Authorization header on every outbound
	// request. Leave nil when the access credential rides an ambient
	// channel the Renewer refreshes on its own.
	Tokens TokenSource
	// ExemptPaths are request paths whose authorization failures must
	// never trigger renewal: the login and renewal endpoints themselves.
	ExemptPaths []string
	// OnUnauthenticated runs exactly once per settled failed renewal, and
	// once per authorization failure on an exempt path. Hosts use it to
	// redirect to their sign-in flow.
	OnUnauthenticated func()
	// RenewTimeout bounds one renewal attempt. Defaults to 15s.
	RenewTimeout time.Duration
	Logger       logr.Logger
}

// Coordinator is an http.RoundTripper that renews the session credential at
// most once per failure burst and replays every request that failed while
// the renewal was in flight.
//
// All state lives in the Coordinator itself; wrap one per logical session.
type Coordinator struct {
	base         http.RoundTripper
	renewer      Renewer
	tokens       TokenSource
	exempt       map[string]struct{}
	onUnauth     func()
	renewTimeout time.Duration
	log          logr.Logger

	mu sync.Mutex
	ep *episode
}

// episode is one in-flight renewal attempt and the requests awaiting its
// outcome. Constructed fresh by each leader, discarded after fan-out;
// never reused.
type episode struct {
	waiters []chan error
}

// New validates cfg and returns a ready Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Renewer == nil {
		return nil, errors.New("renewer is required")
	}

	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.RenewTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	exempt := make(map[string]struct{}, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = struct{}{}
	}

	return &Coordinator{
		base:         base,
		renewer:      cfg.Renewer,
		tokens:       cfg.Tokens,
		exempt:       exempt,
		onUnauth:     cfg.OnUnauthenticated,
		renewTimeout: timeout,
		log:          logger.WithName("coordinator"),
	}, nil
}

// Client returns an http.Client routed through the coordinator.
func (c *Coordinator) Client() *http.Client {
	return &http.Client{Transport: c}
}

// RoundTrip sends the request, and on an authorization failure renews the
// session credential (joining an in-flight renewal if one exists) before
// replaying the request exactly once.
//
// Requests with a body must set GetBody (http.NewRequest does) or the
// replay is skipped and the authorization failure returned as-is.
func (c *Coordinator) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.send(req)
	if err != nil {
		// Transport-level failures are the caller's problem, not an
		// authorization signal.
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if c.isExempt(req) {
		c.fireUnauthenticated()
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	discard(resp)

	if err := c.awaitRenewal(req.Context()); err != nil {
		return nil, err
	}
	return c.send(req)
}

// awaitRenewal ensures at most one renewal is in flight and returns its
// outcome. The first caller to observe no active episode becomes the
// leader; everyone else parks on a buffered channel until the leader fans
// the outcome out.
func (c *Coordinator) awaitRenewal(ctx context.Context) error {
	c.mu.Lock()
	if ep := c.ep; ep != nil {
		ch := make(chan error, 1)
		ep.waiters = append(ep.waiters, ch)
		c.mu.Unlock()

		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			// Only this waiter gives up; the buffered channel lets the
			// leader complete the hand-off regardless.
			return ctx.Err()
		}
	}

	ep := &episode{}
	c.ep = ep
	c.mu.Unlock()

	outcome := c.renew(ctx)

	c.mu.Lock()
	if c.ep != ep {
		c.mu.Unlock()
		// Nothing but this leader may clear the episode. Reaching this
		// point means mutual exclusion broke.
		panic("coordinator: episode settled twice")
	}
	c.ep = nil
	waiters := ep.waiters
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome
	}

	if outcome != nil {
		c.log.Info("session renewal failed", "waiters", len(waiters), "err", outcome.Error())
		c.fireUnauthenticated()
	}
	return outcome
}

// renew runs one renewal attempt. The attempt is detached from the
// leader's request context: the leader speaks for every queued waiter, and
// one caller's cancellation must not decide the episode for the rest.
func (c *Coordinator) renew(ctx context.Context) error {
	renewCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.renewTimeout)
	defer cancel()

	if err := c.renewer.Renew(renewCtx); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return nil
}

// send clones the request, stamps the current access credential, and
// rewinds the body so the clone is independently replayable.
func (c *Coordinator) send(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			clone.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.base.RoundTrip(clone)
}

func (c *Coordinator) isExempt(req *http.Request) bool {
	_, ok := c.exempt[req.URL.Path]
	return ok
}

func (c *Coordinator) fireUnauthenticated() {
	if c.onUnauth != nil {
		c.onUnauth()
	}
}

func discard(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
