package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCredentialMismatch is returned by Rotate when the presented hash does
// not match the stored one. The caller must treat this as a superseded or
// foreign credential; the session has already been torn down.
var ErrCredentialMismatch = errors.New("credential hash mismatch")

// ErrSessionRevoked is returned by Rotate for a revoked session.
var ErrSessionRevoked = errors.New("session revoked")

// ErrSessionExpired is returned by Rotate for a session past its deadline.
var ErrSessionExpired = errors.New("session expired")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusRevoked  int64 = 2
	rotateStatusMismatch int64 = 3
	rotateStatusCorrupt  int64 = 4
	rotateStatusRotated  int64 = 5
)

// rotateCredentialScript performs the lookup-validate-rotate sequence as a
// single atomic unit per session key. At most one of any set of concurrent
// rotations presenting the same credential hash can succeed; every loser
// observes a mismatch against the already-rotated hash. A mismatch deletes
// the session outright: a superseded credential showing up again means the
// secret leaked or a client replayed, and the lineage is no longer trusted.
//
// KEYS[1] session key
// ARGV[1] provided credential hash (32 raw bytes)
// ARGV[2] next credential hash (32 raw bytes)
// ARGV[3] next jti (16 raw bytes)
// ARGV[4] updated-at (8 bytes, big endian)
// ARGV[5] expires-at (8 bytes, big endian)
// ARGV[6] ttl in milliseconds ("0" keeps the current PTTL)
// ARGV[7] user index key prefix
// ARGV[8] session id
const rotateCredentialScript = `
local key = KEYS[1]
local data = redis.call("GET", key)
if not data then
  return {0}
end
if #data < 75 or string.byte(data, 1) ~= 1 then
  return {4}
end
local ttl = redis.call("PTTL", key)
if ttl <= 0 then
  redis.call("DEL", key)
  return {1}
end
if string.byte(data, 2) ~= 0 then
  return {2}
end
if string.sub(data, 3, 34) ~= ARGV[1] then
  local ulen = string.byte(data, 75)
  local uid = string.sub(data, 76, 75 + ulen)
  redis.call("DEL", key)
  redis.call("SREM", ARGV[7] .. uid, ARGV[8])
  return {3}
end
local updated = string.sub(data, 1, 2) .. ARGV[2] .. ARGV[3] .. string.sub(data, 51, 58) .. ARGV[4] .. ARGV[5] .. string.sub(data, 75)
local px = tonumber(ARGV[6])
if px <= 0 then
  px = ttl
end
redis.call("SET", key, updated, "PX", px)
return {5, updated}
`

var rotateCredentialLua = redis.NewScript(rotateCredentialScript)

// revokeSessionScript flips the revoked flag in place, preserving the
// remaining TTL so the record stays visible to admin queries until its
// natural expiry. Revocation is idempotent and monotonic.
//
// KEYS[1] session key
// ARGV[1] updated-at (8 bytes, big endian)
const revokeSessionScript = `
local key = KEYS[1]
local data = redis.call("GET", key)
if not data then
  return 0
end
if #data < 75 then
  return 0
end
local ttl = redis.call("PTTL", key)
if ttl <= 0 then
  return 0
end
if string.byte(data, 2) ~= 0 then
  return 1
end
local updated = string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3, 58) .. ARGV[1] .. string.sub(data, 67)
redis.call("SET", key, updated, "PX", ttl)
return 1
`

var revokeSessionLua = redis.NewScript(revokeSessionScript)

// Store is a Redis-backed session registry backend. All credential
// rotation and revocation paths go through Lua scripts so their
// lookup-validate-mutate sequences are atomic per session key.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a [Store] on the given Redis client. prefix namespaces
// every key the store writes.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sk"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userPrefix() string {
	return s.prefix + ":u:"
}

func (s *Store) userKey(userID string) string {
	return s.userPrefix() + userID
}

// Save persists a session with a TTL derived from its ExpiresAt and indexes
// it under its user.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := time.Until(time.Unix(sess.ExpiresAt, 0))
	if ttl <= 0 {
		return ErrSessionExpired
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.ID)
		// Index entries outlive the session blob by a margin; stale IDs
		// are filtered on read.
		pipe.Expire(ctx, s.userKey(sess.UserID), ttl+time.Hour)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get fetches a session by ID without mutating any state. Returns redis.Nil
// when the session does not exist or is past its deadline.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.ID = sessionID
	if sess.Expired(time.Now()) {
		return nil, redis.Nil
	}
	return sess, nil
}

// Rotate atomically swaps the session's credential hash and JTI if and only
// if providedHash matches the stored hash. updatedAt stamps the record;
// extendTo, when non-zero, moves the absolute deadline forward (sliding
// lifetime). The zero value keeps the current deadline and TTL.
func (s *Store) Rotate(
	ctx context.Context,
	sessionID string,
	providedHash, nextHash [32]byte,
	nextJTI string,
	updatedAt time.Time,
	extendTo time.Time,
) (*Session, error) {
	jti, err := parseJTI(nextJTI)
	if err != nil {
		return nil, err
	}

	if extendTo.IsZero() {
		return s.rotateKeepingDeadline(ctx, sessionID, providedHash, nextHash, jti, updatedAt)
	}

	px := time.Until(extendTo).Milliseconds()
	if px <= 0 {
		return nil, ErrSessionExpired
	}
	return s.runRotate(ctx, sessionID, providedHash, nextHash, jti, updatedAt, be64(extendTo.Unix()), px)
}

func (s *Store) rotateKeepingDeadline(
	ctx context.Context,
	sessionID string,
	providedHash, nextHash [32]byte,
	jti [16]byte,
	updatedAt time.Time,
) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	current, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if current.Expired(updatedAt) {
		return nil, ErrSessionExpired
	}
	// The deadline is re-read here but re-validated inside the script via
	// PTTL, so a concurrent expiry between the two steps still loses.
	return s.runRotate(ctx, sessionID, providedHash, nextHash, jti, updatedAt, be64(current.ExpiresAt), 0)
}

func (s *Store) runRotate(
	ctx context.Context,
	sessionID string,
	providedHash, nextHash [32]byte,
	jti [16]byte,
	updatedAt time.Time,
	expiresArg []byte,
	px int64,
) (*Session, error) {
	res, err := rotateCredentialLua.Run(ctx, s.redis,
		[]string{s.key(sessionID)},
		providedHash[:],
		nextHash[:],
		jti[:],
		be64(updatedAt.Unix()),
		expiresArg,
		px,
		s.userPrefix(),
		sessionID,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) == 0 {
		return nil, ErrCorruptRecord
	}

	status, ok := res[0].(int64)
	if !ok {
		return nil, ErrCorruptRecord
	}
	switch status {
	case rotateStatusNotFound:
		return nil, redis.Nil
	case rotateStatusExpired:
		return nil, ErrSessionExpired
	case rotateStatusRevoked:
		return nil, ErrSessionRevoked
	case rotateStatusMismatch:
		return nil, ErrCredentialMismatch
	case rotateStatusCorrupt:
		return nil, ErrCorruptRecord
	case rotateStatusRotated:
		if len(res) < 2 {
			return nil, ErrCorruptRecord
		}
		blob, ok := res[1].(string)
		if !ok {
			return nil, ErrCorruptRecord
		}
		sess, err := Decode([]byte(blob))
		if err != nil {
			return nil, err
		}
		sess.ID = sessionID
		return sess, nil
	default:
		return nil, fmt.Errorf("unexpected rotate status %d", status)
	}
}

// Revoke marks a session revoked, preserving its TTL. It is idempotent:
// revoking an already-revoked or missing session succeeds. The returned
// bool reports whether a live record was found.
func (s *Store) Revoke(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	res, err := revokeSessionLua.Run(ctx, s.redis,
		[]string{s.key(sessionID)},
		be64(now.Unix()),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

// Delete removes a session blob and its index entry. Used by retention
// tooling, never by renewal or revocation paths.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.userKey(sess.UserID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SessionIDsForUser returns the indexed session IDs for a user, including
// IDs whose blobs have since expired.
func (s *Store) SessionIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// SessionsForUser fetches every non-expired session for a user. Revoked
// sessions are included; they remain visible until their deadline passes.
func (s *Store) SessionsForUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.SessionIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now()
	sessions := make([]*Session, 0, len(ids))
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		sess.ID = ids[i]
		if sess.Expired(now) {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Ping reports Redis availability and round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func be64(v int64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}

func parseJTI(jti string) ([16]byte, error) {
	parsed, err := uuid.Parse(jti)
	if err != nil {
		return [16]byte{}, err
	}
	return parsed, nil
}
