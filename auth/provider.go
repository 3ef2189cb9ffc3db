package auth

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/oauth2"
)

// Authenticator performs the network side of token acquisition. *Flow satisfies it.
type Authenticator interface {
	Login(ctx context.Context, connection string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithNotifier sets the progress receiver.
func WithNotifier(n Notifier) ProviderOption {
	return func(p *Provider) { p.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = l }
}

// Provider hands out a usable access token, preferring in order the cached
// token, a refreshed token and finally an interactive login.
//
// Concurrent callers are not coalesced. Two callers that both find the cache
// empty each run their own refresh or login.
type Provider struct {
	store    *Store
	auth     Authenticator
	isValid  func(string) bool
	notifier Notifier
	logger   *slog.Logger
}

// NewProvider creates a Provider reading and writing tokens through store.
func NewProvider(store *Store, auth Authenticator, opts ...ProviderOption) *Provider {
	p := &Provider{
		store:    store,
		auth:     auth,
		isValid:  IsTokenValid,
		notifier: nopNotifier{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AccessToken returns a valid access token. connection is forwarded to the
// identity provider when an interactive login is needed.
func (p *Provider) AccessToken(ctx context.Context, connection string) (string, error) {
	if access, ok := p.store.Get(AccessTokenKey); ok && p.isValid(access) {
		p.notifier.TokenValid()
		return access, nil
	}

	if refresh, ok := p.store.Get(RefreshTokenKey); ok && p.isValid(refresh) {
		access, err := p.refresh(ctx, refresh)
		if err == nil {
			return access, nil
		}
		if ctx.Err() != nil {
			return "", contextOutcome(ctx.Err())
		}
		p.logger.Warn("refresh failed, falling back to interactive login", "error", err)
	}

	token, err := p.auth.Login(ctx, connection)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (p *Provider) refresh(ctx context.Context, refreshToken string) (string, error) {
	p.notifier.Refreshing()

	token, err := p.auth.Refresh(ctx, refreshToken)
	if err != nil {
		p.notifier.RefreshFailed(err)
		return "", err
	}

	if err := p.store.Set(AccessTokenKey, token.AccessToken); err != nil {
		p.notifier.RefreshFailed(err)
		return "", err
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		if err := p.store.Set(RefreshTokenKey, token.RefreshToken); err != nil {
			p.notifier.RefreshFailed(err)
			return "", err
		}
	}

	p.notifier.RefreshOK()
	return token.AccessToken, nil
}

// TokenSource adapts the provider to oauth2.TokenSource. The returned tokens
// carry the expiry read from the access token's claims when present.
func (p *Provider) TokenSource(ctx context.Context, connection string) oauth2.TokenSource {
	return &providerTokenSource{ctx: ctx, provider: p, connection: connection}
}

type providerTokenSource struct {
	ctx        context.Context
	provider   *Provider
	connection string
}

func (s *providerTokenSource) Token() (*oauth2.Token, error) {
	access, err := s.provider.AccessToken(s.ctx, s.connection)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, errors.New("empty access token")
	}

	token := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if exp, ok := TokenExpiry(access); ok {
		token.Expiry = exp
	}
	return token, nil
}
