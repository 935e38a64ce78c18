package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

var (
	ErrInvalidIdentityToken = errors.New("invalid identity token")
	ErrIdentityEmailMissing = errors.New("identity token has no verified email")
)

// IdentityClaims is what a verified third-party ID token tells us about the user.
type IdentityClaims struct {
	Subject string
	Email   string
	Name    string
}

// KeySetSource supplies the signing keys of the identity provider.
type KeySetSource interface {
	KeySet(ctx context.Context) (jwk.Set, error)
}

// RemoteKeySet fetches a JWKS document and keeps it for ttl.
type RemoteKeySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu        sync.Mutex
	set       jwk.Set
	fetchedAt time.Time
}

func NewRemoteKeySet(url string, ttl time.Duration) *RemoteKeySet {
	return &RemoteKeySet{url: url, ttl: ttl, client: &http.Client{Timeout: 10 * time.Second}}
}

func (r *RemoteKeySet) KeySet(ctx context.Context) (jwk.Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.set != nil && time.Since(r.fetchedAt) < r.ttl {
		return r.set, nil
	}

	set, err := r.fetch(ctx)
	if err != nil {
		// Keep serving the last good set if the provider is briefly unreachable.
		if r.set != nil {
			return r.set, nil
		}
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}

	r.set = set
	r.fetchedAt = time.Now()
	return set, nil
}

func (r *RemoteKeySet) fetch(ctx context.Context) (jwk.Set, error) {
	return jwk.Fetch(ctx, r.url, jwk.WithHTTPClient(r.client))
}

// StaticKeySet serves a fixed key set.
type StaticKeySet struct {
	Set jwk.Set
}

func (s StaticKeySet) KeySet(context.Context) (jwk.Set, error) {
	return s.Set, nil
}

// GoogleVerifier validates Google ID tokens for a single OAuth client.
type GoogleVerifier struct {
	clientID string
	issuers  []string
	keys     KeySetSource
}

func NewGoogleVerifier(clientID string, issuers []string, keys KeySetSource) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, issuers: issuers, keys: keys}
}

// Verify checks signature, audience, issuer and expiry of rawToken.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*IdentityClaims, error) {
	if v.clientID == "" {
		return nil, fmt.Errorf("%w: identity sign-in is not configured", ErrInvalidIdentityToken)
	}

	keyset, err := v.keys.KeySet(ctx)
	if err != nil {
		return nil, fmt.Errorf("load identity keys: %w", err)
	}

	token, err := jwt.Parse([]byte(rawToken),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithAudience(v.clientID),
		jwt.WithAcceptableSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
	}

	iss, _ := token.Issuer()
	if !slices.Contains(v.issuers, iss) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidIdentityToken, iss)
	}

	sub, ok := token.Subject()
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidIdentityToken)
	}

	var email string
	if err := token.Get("email", &email); err != nil || email == "" {
		return nil, ErrIdentityEmailMissing
	}
	if !emailVerified(token) {
		return nil, ErrIdentityEmailMissing
	}

	var name string
	_ = token.Get("name", &name)

	return &IdentityClaims{Subject: sub, Email: email, Name: name}, nil
}

// Google has sent email_verified both as a bool and as the string "true".
func emailVerified(token jwt.Token) bool {
	var b bool
	if err := token.Get("email_verified", &b); err == nil {
		return b
	}
	var s string
	if err := token.Get("email_verified", &s); err == nil {
		return s == "true"
	}
	return false
}
