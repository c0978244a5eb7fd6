package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	sessionkit "github.com/airvend/sessionkit"
)

// EndpointRenewer renews against the server renewal endpoint. The refresh
// credential rides the HTTP client's cookie jar; the rotated replacement
// comes back the same way. On success the issued access token is pushed
// into Tokens.
type EndpointRenewer struct {
	// URL of the renewal endpoint.
	URL string
	// Client must carry a cookie jar holding the refresh cookie.
	Client *http.Client
	// Tokens receives the freshly issued access token. Optional.
	Tokens TokenSource
}

type renewResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

// Renew posts to the renewal endpoint and classifies the response. Denial
// codes map back to the sessionkit error taxonomy so callers can tell a
// revoked session from an expired one.
func (r *EndpointRenewer) Renew(ctx context.Context) error {
	client := r.Client
	if client == nil {
		return errors.New("renewer requires an http client with a cookie jar")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	var payload renewResponse
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); decodeErr != nil && resp.StatusCode == http.StatusOK {
		return decodeErr
	}

	if resp.StatusCode == http.StatusOK {
		if r.Tokens != nil && payload.AccessToken != "" {
			r.Tokens.SetToken(payload.AccessToken)
		}
		return nil
	}

	if denial, ok := sessionkit.DenialFromCode(payload.Error); ok {
		return denial
	}
	return fmt.Errorf("renewal endpoint returned status %d", resp.StatusCode)
}
