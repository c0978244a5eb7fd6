package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	sessionkit "github.com/airvend/sessionkit"
	"github.com/airvend/sessionkit/internal"
	"github.com/airvend/sessionkit/middleware"
	"github.com/airvend/sessionkit/session"
)

// Endpoint paths. Exported so coordinator configurations can exempt the
// login and renewal paths from refresh handling.
const (
	PathLogin  = "/v1/auth/login"
	PathRenew  = "/v1/auth/renew"
	PathLogout = "/v1/auth/logout"
)

// DefaultCookieName carries the refresh credential between client and the
// renewal endpoint.
const DefaultCookieName = "sk_refresh"

// CredentialVerifier authenticates a login attempt. Password storage and
// hashing live with the caller; the server only needs a user ID back.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (userID string, err error)
}

// Config assembles a [Server].
type Config struct {
	Registry *sessionkit.Registry
	Verifier CredentialVerifier
	// CookieName defaults to [DefaultCookieName].
	CookieName string
	// CookiePath scopes the refresh cookie; defaults to "/v1/auth".
	CookiePath string
	// CookieSecure marks the cookie Secure. Enable everywhere TLS
	// terminates in front of this server.
	CookieSecure bool
	Logger       logr.Logger
}

// Server exposes the session registry over HTTP: login, renewal, and
// logout on the unauthenticated surface, and the administrative session
// interface behind a strict guard.
type Server struct {
	registry     *sessionkit.Registry
	verifier     CredentialVerifier
	cookieName   string
	cookiePath   string
	cookieSecure bool
	log          logr.Logger
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("credential verifier is required")
	}

	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	path := cfg.CookiePath
	if path == "" {
		path = "/v1/auth"
	}
	logger := cfg.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	return &Server{
		registry:     cfg.Registry,
		verifier:     cfg.Verifier,
		cookieName:   name,
		cookiePath:   path,
		cookieSecure: cfg.CookieSecure,
		log:          logger.WithName("httpapi"),
	}, nil
}

// Routes returns the chi router for the full API surface.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post(PathLogin, s.handleLogin)
	r.Post(PathRenew, s.handleRenew)
	r.Post(PathLogout, s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.GuardStrict(s.registry))
		r.Get("/v1/sessions/{sessionID}", s.handleGetSession)
		r.Delete("/v1/sessions/{sessionID}", s.handleRevokeSession)
		r.Get("/v1/users/{userID}/sessions", s.handleListSessions)
		r.Delete("/v1/users/{userID}/sessions", s.handleRevokeAll)
	})

	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	SessionID   string `json:"session_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed_request"})
		return
	}

	userID, err := s.verifier.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_credentials"})
		return
	}

	result, err := s.registry.CreateSession(r.Context(), userID, sessionkit.Metadata{
		IP:        remoteIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.log.Error(err, "session creation failed", "user_id", userID)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable"})
		return
	}

	s.setRefreshCookie(w, result.RefreshCredential, time.Unix(result.Session.ExpiresAt, 0))
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: result.AccessToken,
		SessionID:   result.Session.ID,
	})
}

// handleRenew is the endpoint the refresh coordinator calls. Denials come
// back as 401 with a machine-readable code so a failed renewal is
// distinguishable from an ordinary authorization failure, and the stale
// cookie is cleared so the client does not retry a dead credential.
func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: sessionkit.CodeSessionNotFound})
		return
	}

	result, err := s.registry.Renew(r.Context(), cookie.Value)
	if err != nil {
		if code, ok := sessionkit.DenialCode(err); ok {
			s.clearRefreshCookie(w)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: code})
			return
		}
		s.log.Error(err, "renewal failed")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable"})
		return
	}

	s.setRefreshCookie(w, result.RefreshCredential, time.Unix(result.Session.ExpiresAt, 0))
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: result.AccessToken})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	defer s.clearRefreshCookie(w)

	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	sessionID, _, err := internal.DecodeCredential(cookie.Value)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.registry.Revoke(r.Context(), sessionID); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionView is the administrative projection of a session. The
// credential hash never leaves the store.
type sessionView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	JTI             string    `json:"jti"`
	Revoked         bool      `json:"revoked"`
	IssuedIP        string    `json:"issued_ip,omitempty"`
	IssuedUserAgent string    `json:"issued_user_agent,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func viewOf(sess *session.Session) sessionView {
	return sessionView{
		ID:              sess.ID,
		UserID:          sess.UserID,
		JTI:             sess.JTI,
		Revoked:         sess.Revoked,
		IssuedIP:        sess.IssuedIP,
		IssuedUserAgent: sess.IssuedUserAgent,
		CreatedAt:       time.Unix(sess.CreatedAt, 0).UTC(),
		UpdatedAt:       time.Unix(sess.UpdatedAt, 0).UTC(),
		ExpiresAt:       time.Unix(sess.ExpiresAt, 0).UTC(),
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, sessionkit.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Revoke(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.registry.SessionsForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable"})
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, viewOf(sess))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RevokeAllForUser(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, credential string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    credential,
		Path:     s.cookiePath,
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     s.cookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
