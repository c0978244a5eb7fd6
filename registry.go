package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/airvend/sessionkit/internal"
	"github.com/airvend/sessionkit/jwt"
	"github.com/airvend/sessionkit/session"
)

// Registry is the server-side source of truth for issued refresh
// credentials. It creates sessions at login, performs the atomic
// lookup-validate-rotate sequence renewal requires, and answers the
// revocation and listing queries used by administrative tooling.
//
// All methods are safe for concurrent use after [Builder.Build].
type Registry struct {
	config  Config
	store   *session.Store
	jwt     *jwt.Manager
	metrics *Metrics
	audit   *auditDispatcher
	log     logr.Logger
	now     func() time.Time
}

// Close stops background workers. Safe to call more than once.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	if r.audit != nil {
		r.audit.Close()
	}
}

// CreateSession issues a new session for userID: fresh ID and jti, a fresh
// refresh credential whose hash alone is stored, and an absolute deadline
// of now plus the configured lifetime.
func (r *Registry) CreateSession(ctx context.Context, userID string, meta Metadata) (*CreateResult, error) {
	if r == nil || r.store == nil {
		return nil, ErrRegistryNotReady
	}
	if userID == "" {
		return nil, errors.New("empty user id")
	}

	secret, err := internal.NewCredentialSecret()
	if err != nil {
		return nil, err
	}

	now := r.now()
	sess := &session.Session{
		ID:              uuid.NewString(),
		UserID:          userID,
		JTI:             uuid.NewString(),
		CredentialHash:  internal.HashCredentialSecret(secret),
		IssuedIP:        meta.IP,
		IssuedUserAgent: meta.UserAgent,
		CreatedAt:       now.Unix(),
		UpdatedAt:       now.Unix(),
		ExpiresAt:       now.Add(r.config.Session.Lifetime).Unix(),
	}

	if err := r.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	credential, err := internal.EncodeCredential(sess.ID, secret)
	if err != nil {
		return nil, err
	}
	access, err := r.jwt.CreateAccess(sess.UserID, sess.ID, sess.JTI)
	if err != nil {
		return nil, err
	}

	r.metrics.Inc(MetricSessionCreated)
	r.emitAudit(ctx, auditEventSessionCreated, true, sess.UserID, sess.ID, meta.IP, nil, nil)

	return &CreateResult{
		Session:           sess,
		AccessToken:       access,
		RefreshCredential: credential,
	}, nil
}

// Renew validates the presented refresh credential and, atomically with
// that validation, rotates it. Of any number of concurrent renewals
// presenting the same credential, at most one succeeds; the rest observe
// [ErrCredentialRotated]. The superseded credential is invalid immediately,
// with no grace window.
func (r *Registry) Renew(ctx context.Context, credential string) (*RenewResult, error) {
	if r == nil || r.store == nil {
		return nil, ErrRegistryNotReady
	}

	sessionID, providedSecret, err := internal.DecodeCredential(credential)
	if err != nil {
		r.metrics.Inc(MetricRenewDenied)
		r.emitAudit(ctx, auditEventRenewDenied, false, "", "", "", ErrSessionNotFound, func() map[string]string {
			return map[string]string{"reason": "decode_failed"}
		})
		return nil, ErrSessionNotFound
	}

	nextSecret, err := internal.NewCredentialSecret()
	if err != nil {
		r.metrics.Inc(MetricRenewFailure)
		return nil, err
	}
	nextJTI := uuid.NewString()

	now := r.now()
	var extendTo time.Time
	if r.config.Session.SlidingRenewal {
		extendTo = now.Add(r.config.Session.Lifetime)
	}

	sess, err := r.store.Rotate(
		ctx,
		sessionID,
		internal.HashCredentialSecret(providedSecret),
		internal.HashCredentialSecret(nextSecret),
		nextJTI,
		now,
		extendTo,
	)
	if err != nil {
		return nil, r.mapRenewError(ctx, sessionID, err)
	}

	access, err := r.jwt.CreateAccess(sess.UserID, sess.ID, sess.JTI)
	if err != nil {
		r.metrics.Inc(MetricRenewFailure)
		return nil, err
	}
	nextCredential, err := internal.EncodeCredential(sess.ID, nextSecret)
	if err != nil {
		r.metrics.Inc(MetricRenewFailure)
		return nil, err
	}

	r.metrics.Inc(MetricRenewSuccess)
	r.emitAudit(ctx, auditEventRenewSuccess, true, sess.UserID, sess.ID, "", nil, nil)

	return &RenewResult{
		Session:           sess,
		AccessToken:       access,
		RefreshCredential: nextCredential,
	}, nil
}

func (r *Registry) mapRenewError(ctx context.Context, sessionID string, err error) error {
	switch {
	case errors.Is(err, redis.Nil):
		r.metrics.Inc(MetricRenewDenied)
		r.emitAudit(ctx, auditEventRenewDenied, false, "", sessionID, "", ErrSessionNotFound, func() map[string]string {
			return map[string]string{"reason": "session_not_found"}
		})
		return ErrSessionNotFound
	case errors.Is(err, session.ErrSessionExpired):
		r.metrics.Inc(MetricRenewDenied)
		r.emitAudit(ctx, auditEventRenewDenied, false, "", sessionID, "", ErrSessionExpired, func() map[string]string {
			return map[string]string{"reason": "expired"}
		})
		return ErrSessionExpired
	case errors.Is(err, session.ErrSessionRevoked):
		r.metrics.Inc(MetricRenewDenied)
		r.emitAudit(ctx, auditEventRenewDenied, false, "", sessionID, "", ErrSessionRevoked, func() map[string]string {
			return map[string]string{"reason": "revoked"}
		})
		return ErrSessionRevoked
	case errors.Is(err, session.ErrCredentialMismatch):
		r.metrics.Inc(MetricRenewReuseDetected)
		r.emitAudit(ctx, auditEventRenewReuse, false, "", sessionID, "", ErrCredentialRotated, nil)
		r.log.Info("refresh credential reuse detected, session torn down", "session_id", sessionID)
		return ErrCredentialRotated
	default:
		r.metrics.Inc(MetricRenewFailure)
		r.emitAudit(ctx, auditEventRenewDenied, false, "", sessionID, "", err, func() map[string]string {
			return map[string]string{"reason": "backend"}
		})
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
}

// Revoke marks a session revoked. Idempotent: revoking an already revoked
// or unknown session is a no-op success, never an error.
func (r *Registry) Revoke(ctx context.Context, sessionID string) error {
	if r == nil || r.store == nil {
		return ErrRegistryNotReady
	}

	found, err := r.store.Revoke(ctx, sessionID, r.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	if found {
		r.metrics.Inc(MetricSessionRevoked)
		r.emitAudit(ctx, auditEventSessionRevoked, true, "", sessionID, "", nil, nil)
	}
	return nil
}

// RevokeAllForUser revokes every live session belonging to userID.
func (r *Registry) RevokeAllForUser(ctx context.Context, userID string) error {
	if r == nil || r.store == nil {
		return ErrRegistryNotReady
	}

	ids, err := r.store.SessionIDsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	now := r.now()
	for _, id := range ids {
		if _, err := r.store.Revoke(ctx, id, now); err != nil {
			return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
		}
	}

	r.metrics.Inc(MetricRevokeAllForUser)
	r.emitAudit(ctx, auditEventRevokeAll, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"sessions": fmt.Sprintf("%d", len(ids))}
	})
	return nil
}

// GetSession returns a session by ID, or [ErrSessionNotFound] when it does
// not exist or is past its deadline. Read-only; for administrative use.
func (r *Registry) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if r == nil || r.store == nil {
		return nil, ErrRegistryNotReady
	}

	sess, err := r.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return sess, nil
}

// SessionsForUser lists a user's non-expired sessions, revoked included.
// Read-only; for administrative use.
func (r *Registry) SessionsForUser(ctx context.Context, userID string) ([]*session.Session, error) {
	if r == nil || r.store == nil {
		return nil, ErrRegistryNotReady
	}

	sessions, err := r.store.SessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return sessions, nil
}

// PurgeSession hard-deletes a session record and its index entry. This is
// a retention-policy operation; renewal and revocation never destroy
// records.
func (r *Registry) PurgeSession(ctx context.Context, sessionID string) error {
	if r == nil || r.store == nil {
		return ErrRegistryNotReady
	}
	if err := r.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return nil
}

// Validate verifies an access token signature and expiry. It does not
// consult the store: a revoked session's access token stays valid until
// its own short TTL runs out.
func (r *Registry) Validate(tokenStr string) (*jwt.AccessClaims, error) {
	if r == nil || r.jwt == nil {
		return nil, ErrRegistryNotReady
	}

	claims, err := r.jwt.ParseAccess(tokenStr)
	if err != nil {
		r.metrics.Inc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}
	r.metrics.Inc(MetricValidateSuccess)
	return claims, nil
}

// ValidateStrict additionally requires the backing session to still be
// live, so revocation takes effect before the access TTL elapses. Costs
// one store read per call.
func (r *Registry) ValidateStrict(ctx context.Context, tokenStr string) (*jwt.AccessClaims, error) {
	claims, err := r.Validate(tokenStr)
	if err != nil {
		return nil, err
	}

	sess, err := r.store.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.metrics.Inc(MetricValidateFailure)
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	if !sess.Live(r.now()) {
		r.metrics.Inc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// MetricsSnapshot returns a point-in-time copy of all registry counters.
func (r *Registry) MetricsSnapshot() MetricsSnapshot {
	if r == nil || r.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return r.metrics.Snapshot()
}

// AuditDropped reports audit events shed under backpressure.
func (r *Registry) AuditDropped() uint64 {
	if r == nil {
		return 0
	}
	return r.audit.Dropped()
}

// Ping reports store availability, for health endpoints.
func (r *Registry) Ping(ctx context.Context) error {
	if r == nil || r.store == nil {
		return ErrRegistryNotReady
	}
	if _, err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return nil
}

func (r *Registry) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID, sessionID, ip string,
	cause error,
	metaFn func() map[string]string,
) {
	if r.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: r.now(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        ip,
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metaFn != nil {
		event.Metadata = metaFn()
	}
	r.audit.Emit(ctx, event)
}
