package middleware

import (
	"context"
	"net/http"
	"strings"

	sessionkit "github.com/airvend/sessionkit"
	"github.com/airvend/sessionkit/jwt"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the access claims attached by [Guard].
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return claims, ok
}

// Guard rejects requests without a valid bearer access token. The 401 it
// writes is the signal the client-side coordinator watches for; the login
// and renewal endpoints must be mounted outside it.
func Guard(registry *sessionkit.Registry) func(http.Handler) http.Handler {
	return guard(func(_ *http.Request, token string) (*jwt.AccessClaims, error) {
		return registry.Validate(token)
	})
}

// GuardStrict additionally requires the backing session to still be live,
// at the cost of one store read per request. Revocation takes effect
// immediately instead of after the access TTL.
func GuardStrict(registry *sessionkit.Registry) func(http.Handler) http.Handler {
	return guard(func(r *http.Request, token string) (*jwt.AccessClaims, error) {
		return registry.ValidateStrict(r.Context(), token)
	})
}

func guard(validate func(*http.Request, string) (*jwt.AccessClaims, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := validate(r, token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="sessionkit"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}
