package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Profile is the identity returned by a Provider after a successful exchange.
type Profile struct {
	Email     string
	Name      *string
	AvatarURL *string
}

// Provider is the OAuth identity backend.
type Provider interface {
	// AuthCodeURL returns the consent page URL for state, bound to verifier via PKCE.
	AuthCodeURL(state, verifier string) string

	// Exchange trades an authorization code for the user's profile.
	Exchange(ctx context.Context, code, verifier string) (Profile, error)
}

// GoogleProvider signs users in with Google OAuth 2.0 (authorization code + PKCE).
type GoogleProvider struct {
	oauth *oauth2.Config
	opts  []option.ClientOption
}

// GoogleOption configures GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithEndpoint overrides the OAuth endpoint.
func WithEndpoint(ep oauth2.Endpoint) GoogleOption {
	return func(p *GoogleProvider) { p.oauth.Endpoint = ep }
}

// WithClientOptions adds options for the userinfo API client.
func WithClientOptions(opts ...option.ClientOption) GoogleOption {
	return func(p *GoogleProvider) { p.opts = append(p.opts, opts...) }
}

// NewGoogleProvider builds a provider from cfg. It fails with
// ErrProviderUnavailable when the client is not configured.
func NewGoogleProvider(cfg Config, opts ...GoogleOption) (*GoogleProvider, error) {
	if !cfg.GoogleEnabled() {
		return nil, ErrProviderUnavailable
	}
	p := &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.GoogleClientID),
			ClientSecret: strings.TrimSpace(cfg.GoogleClientSecret),
			RedirectURL:  strings.TrimSpace(cfg.GoogleRedirectURL),
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", oauth2api.UserinfoEmailScope, oauth2api.UserinfoProfileScope},
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// AuthCodeURL implements Provider.
func (p *GoogleProvider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange implements Provider.
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (Profile, error) {
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Profile{}, fmt.Errorf("auth.google.exchange: %w", err)
	}

	opts := append([]option.ClientOption{option.WithTokenSource(p.oauth.TokenSource(ctx, tok))}, p.opts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return Profile{}, fmt.Errorf("auth.google.userinfo: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Profile{}, fmt.Errorf("auth.google.userinfo: %w", err)
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return Profile{}, ErrUnverifiedEmail
	}

	out := Profile{Email: strings.ToLower(strings.TrimSpace(info.Email))}
	if out.Email == "" {
		return Profile{}, fmt.Errorf("auth.google.userinfo: empty email")
	}
	if v := strings.TrimSpace(info.Name); v != "" {
		out.Name = &v
	}
	if v := strings.TrimSpace(info.Picture); v != "" {
		out.AvatarURL = &v
	}
	return out, nil
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string { return oauth2.GenerateVerifier() }

var _ Provider = (*GoogleProvider)(nil)
