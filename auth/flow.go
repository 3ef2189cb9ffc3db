package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/oauth2"
)

// Identity provider registration used by the distribution SDK.
const (
	DefaultBaseURL     = "https://auth.emergetools.com"
	DefaultClientID    = "XiFbzCzBHV5euyxbcxNHbqOHlKcTwzBX"
	DefaultRedirectURI = "app.install.callback://callback"
	DefaultAudience    = "https://auth0-jwt-authorizer"

	authorizePath = "authorize"
	tokenPath     = "oauth/token"
)

// DefaultScopes are requested on every login. offline_access yields a refresh token.
var DefaultScopes = []string{"openid", "profile", "email", "offline_access"}

// Config describes the identity provider and client registration.
type Config struct {
	BaseURL     string
	ClientID    string
	RedirectURI string
	Audience    string
	Scopes      []string
}

// DefaultConfig returns the fixed production registration.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		ClientID:    DefaultClientID,
		RedirectURI: DefaultRedirectURI,
		Audience:    DefaultAudience,
		Scopes:      DefaultScopes,
	}
}

// Endpoint returns the provider's authorize and token URLs.
func (c Config) Endpoint() (oauth2.Endpoint, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("invalid identity provider URL: %w", err)
	}
	return oauth2.Endpoint{
		AuthURL:   base.JoinPath(authorizePath).String(),
		TokenURL:  base.JoinPath(tokenPath).String(),
		AuthStyle: oauth2.AuthStyleInParams,
	}, nil
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithRandom sets the random source for PKCE and state generation.
func WithRandom(r io.Reader) FlowOption {
	return func(f *Flow) { f.random = r }
}

// WithFlowNotifier sets the progress receiver.
func WithFlowNotifier(n Notifier) FlowOption {
	return func(f *Flow) { f.notifier = n }
}

// WithFlowLogger sets the logger.
func WithFlowLogger(l *slog.Logger) FlowOption {
	return func(f *Flow) { f.logger = l }
}

// Flow runs the interactive authorization code + PKCE login.
type Flow struct {
	config         Config
	endpoint       oauth2.Endpoint
	callbackScheme string
	tokens         *tokenClient
	store          *Store
	presenter      Presenter
	random         io.Reader
	notifier       Notifier
	logger         *slog.Logger
}

// NewFlow creates a Flow. Tokens obtained by Login are written to store.
func NewFlow(cfg Config, httpClient Doer, store *Store, presenter Presenter, opts ...FlowOption) (*Flow, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if httpClient == nil || store == nil || presenter == nil {
		return nil, errors.New("http client, token store and presenter are required")
	}

	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}

	redirect, err := url.Parse(cfg.RedirectURI)
	if err != nil || redirect.Scheme == "" {
		return nil, fmt.Errorf("invalid redirect URI %q", cfg.RedirectURI)
	}

	f := &Flow{
		config:         cfg,
		endpoint:       endpoint,
		callbackScheme: redirect.Scheme,
		tokens: &tokenClient{
			tokenURL: endpoint.TokenURL,
			clientID: cfg.ClientID,
			http:     httpClient,
		},
		store:     store,
		presenter: presenter,
		notifier:  nopNotifier{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Login generates fresh PKCE parameters, presents the authorization page,
// exchanges the returned code and persists both tokens before returning them.
// Nothing is stored when any step fails.
func (f *Flow) Login(ctx context.Context, connection string) (*oauth2.Token, error) {
	pair, err := NewPKCEPair(f.random)
	if err != nil {
		return nil, err
	}
	state := NewState(f.random)

	authURL, err := f.authorizationURL(pair, state, connection)
	if err != nil {
		return nil, err
	}

	var instructions string
	if in, ok := f.presenter.(instructor); ok {
		instructions = in.Instructions()
	}
	f.notifier.AuthorizationStarted(authURL.String(), instructions)
	f.logger.Debug("presenting authorization page", "connection", connection)

	redirect, err := f.presenter.Present(ctx, authURL, f.callbackScheme)
	if err != nil {
		if errors.Is(err, ErrUserCancelled) || errors.Is(err, ErrNoCallbackURL) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: authentication surface: %w", ErrProvider, err)
	}

	code, err := f.parseCallback(redirect, state)
	if err != nil {
		return nil, err
	}

	token, err := f.tokens.exchangeCode(ctx, code, pair.Verifier, f.config.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	if err := f.persist(token); err != nil {
		return nil, err
	}

	f.notifier.AuthSuccess()
	return token, nil
}

// Refresh redeems a refresh token for a new access token. It does not persist.
func (f *Flow) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return f.tokens.refresh(ctx, refreshToken)
}

func (f *Flow) persist(token *oauth2.Token) error {
	if err := f.store.Set(AccessTokenKey, token.AccessToken); err != nil {
		f.notifier.TokenSaveFailed(err)
		return err
	}
	f.notifier.TokenSaved(AccessTokenKey)

	if token.RefreshToken == "" {
		f.logger.Warn("token response carried no refresh token")
		return nil
	}
	if err := f.store.Set(RefreshTokenKey, token.RefreshToken); err != nil {
		f.notifier.TokenSaveFailed(err)
		return err
	}
	f.notifier.TokenSaved(RefreshTokenKey)
	return nil
}

// authorizationURL builds the authorize request for one attempt.
func (f *Flow) authorizationURL(pair PKCEPair, state, connection string) (*url.URL, error) {
	authURL, err := url.Parse(f.endpoint.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("invalid authorize URL: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", f.config.ClientID)
	params.Set("redirect_uri", f.config.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(f.config.Scopes, " "))
	params.Set("state", state)
	params.Set("audience", f.config.Audience)
	params.Set("code_challenge", pair.Challenge)
	params.Set("code_challenge_method", "S256")
	if connection != "" {
		params.Set("connection", connection)
	}

	authURL.RawQuery = encodeQuery(params)
	return authURL, nil
}

// encodeQuery percent-encodes params in key order. A literal '+' is always
// sent as %2B and a space as %20, so no '+' is left for servers to read as a space.
func encodeQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range params[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(escapeQueryComponent(k))
			b.WriteByte('=')
			b.WriteString(escapeQueryComponent(v))
		}
	}
	return b.String()
}

func escapeQueryComponent(s string) string {
	// QueryEscape emits "+" only for spaces; literal plus signs are already %2B
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// parseCallback extracts the authorization code from the redirect.
func (f *Flow) parseCallback(redirect *url.URL, state string) (string, error) {
	if redirect == nil {
		return "", ErrNoCallbackURL
	}
	if !strings.EqualFold(redirect.Scheme, f.callbackScheme) {
		return "", fmt.Errorf("%w: unexpected scheme %q", ErrNoCallbackURL, redirect.Scheme)
	}

	query := redirect.Query()
	if errParam := query.Get("error"); errParam != "" {
		return "", fmt.Errorf("%w: %s: %s", ErrProvider, errParam, query.Get("error_description"))
	}

	code := query.Get("code")
	if code == "" {
		return "", ErrNoAuthorizationCode
	}

	if subtle.ConstantTimeCompare([]byte(query.Get("state")), []byte(state)) != 1 {
		return "", ErrStateMismatch
	}
	return code, nil
}
