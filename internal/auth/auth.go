package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"submission-relay/internal/apperr"
)

// KeyPolicy is the single credential policy shared by the submit and monitor
// surfaces. Enforcement is tied to exactly one switch: production mode.
type KeyPolicy struct {
	Production bool
	SecretKey  string
}

// Check validates a presented secret key. Outside production mode every key,
// including an empty one, is accepted.
func (p KeyPolicy) Check(presented string) error {
	if !p.Production {
		return nil
	}
	if presented == "" || presented != p.SecretKey {
		return apperr.New(apperr.ErrAuthorization, "invalid or missing secret key")
	}
	return nil
}

// Identity is the caller-claimed identity on the token submission path.
type Identity struct {
	JID      string `json:"jid"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// IdentityVerifier checks a bearer token against a third-party identity
// service and an allow-list of accepted usernames.
type IdentityVerifier struct {
	BaseURL     string
	Whitelisted []string
	Client      *http.Client
}

// NewIdentityVerifier creates a verifier with a bounded request timeout.
func NewIdentityVerifier(baseURL string, whitelisted []string) *IdentityVerifier {
	return &IdentityVerifier{
		BaseURL:     baseURL,
		Whitelisted: whitelisted,
		Client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify fetches the authenticated identity for the token and requires it to
// match the claimed identity exactly. An empty allow-list accepts any
// verified user.
func (v *IdentityVerifier) Verify(ctx context.Context, token string, claimed Identity) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+"/users/me", nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrUpstream, err, "identity service request failed")
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := v.Client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.ErrUpstream, err, "identity service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.New(apperr.ErrAuthorization, "identity service rejected token")
	}

	var verified Identity
	if err := json.NewDecoder(resp.Body).Decode(&verified); err != nil {
		return apperr.Wrap(apperr.ErrUpstream, err, "identity service reply unreadable")
	}

	if verified.Username != claimed.Username || verified.JID != claimed.JID || verified.Email != claimed.Email {
		return apperr.WithStatus(apperr.ErrAuthorization, http.StatusForbidden, "identity mismatch")
	}

	if len(v.Whitelisted) == 0 {
		return nil
	}
	for _, u := range v.Whitelisted {
		if u == verified.Username {
			return nil
		}
	}
	return apperr.WithStatus(apperr.ErrAuthorization, http.StatusForbidden, "user %q is not whitelisted", verified.Username)
}
