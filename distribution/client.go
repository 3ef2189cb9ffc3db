// Package distribution queries the distribution backend for updates and
// releases, logging the user in when the backend demands it.
package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the production distribution API.
	DefaultBaseURL = "https://api.emergetools.com/distribution/"
	// DefaultPlatform is sent as the platform query parameter.
	DefaultPlatform = "ios"

	requestTimeout  = 30 * time.Second
	unknownErrorMsg = "Unknown error"
)

// Doer performs HTTP requests. *retry.Client from go-httpretry satisfies it.
type Doer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// TokenProvider returns an access token, logging the user in if needed.
// *auth.Provider satisfies it.
type TokenProvider interface {
	AccessToken(ctx context.Context, connection string) (string, error)
}

// Notifier receives request progress. tui.Displayer implementations satisfy it.
type Notifier interface {
	RequestStarted(endpoint string, authenticated bool)
	LoginEscalated(endpoint string)
}

type nopNotifier struct{}

func (nopNotifier) RequestStarted(string, bool) {}
func (nopNotifier) LoginEscalated(string)       {}

// endpoint is one backend operation.
type endpoint struct {
	path string
	// revealsDownload is set for lookups that return a download location.
	revealsDownload bool
}

var (
	checkForUpdatesEndpoint = endpoint{path: "checkForUpdates"}
	getReleaseEndpoint      = endpoint{path: "getRelease", revealsDownload: true}
	getAllReleasesEndpoint  = endpoint{path: "getAllReleases"}
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another backend.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.rawBaseURL = baseURL }
}

// WithPlatform overrides DefaultPlatform.
func WithPlatform(platform string) Option {
	return func(c *Client) { c.platform = platform }
}

// WithIdentity sets how the running build identifies itself.
func WithIdentity(identity Identity) Option {
	return func(c *Client) { c.identity = identity }
}

// WithNotifier sets the progress receiver.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to the distribution backend. One Client should be shared per
// process: once the backend has demanded a login, every later request made
// through the same Client carries a token.
type Client struct {
	rawBaseURL string
	baseURL    *url.URL
	platform   string
	http       Doer
	tokens     TokenProvider
	identity   Identity
	notifier   Notifier
	logger     *slog.Logger

	mu     sync.Mutex
	policy LoginPolicy
}

// NewClient creates a Client. tokens may be nil when every call uses NoLogin
// and the backend never demands a login.
func NewClient(httpClient Doer, tokens TokenProvider, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("http client is required")
	}

	c := &Client{
		rawBaseURL: DefaultBaseURL,
		platform:   DefaultPlatform,
		http:       httpClient,
		tokens:     tokens,
		identity:   &ExecutableIdentity{},
		notifier:   nopNotifier{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base, err := url.Parse(c.rawBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid distribution API URL %q", c.rawBaseURL)
	}
	c.baseURL = base
	return c, nil
}

// EffectivePolicy returns the policy applied on top of each call's own policy.
// It starts at NoLogin and only ever rises.
func (c *Client) EffectivePolicy() LoginPolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

func (c *Client) escalate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = Everything
}

// CheckForUpdate asks whether a newer build than the running one exists.
func (c *Client) CheckForUpdate(ctx context.Context, p CheckForUpdateParams) (*UpdateCheckResponse, error) {
	binary, app, err := resolveIdentity(c.identity, p.BinaryIdentifierOverride, p.AppIDOverride)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("apiKey", p.APIKey)
	query.Set("binaryIdentifier", binary)
	query.Set("appId", app)
	query.Set("platform", c.platform)
	if p.Tag != "" {
		query.Set("tag", p.Tag)
	}

	var resp UpdateCheckResponse
	if err := c.do(ctx, checkForUpdatesEndpoint, p.CommonParams, query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRelease fetches a single release including its download location.
func (c *Client) GetRelease(ctx context.Context, p GetReleaseParams) (*ReleaseInfo, error) {
	if p.ReleaseID == "" {
		return nil, errors.New("release ID is required")
	}

	query := url.Values{}
	query.Set("apiKey", p.APIKey)
	query.Set("id", p.ReleaseID)
	query.Set("platform", c.platform)

	var resp ReleaseInfo
	if err := c.do(ctx, getReleaseEndpoint, p.CommonParams, query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListReleases returns one page of the releases available for this app.
func (c *Client) ListReleases(ctx context.Context, p ListReleasesParams) (*AvailableBuildsResponse, error) {
	binary, app, err := resolveIdentity(c.identity, p.BinaryIdentifierOverride, p.AppIDOverride)
	if err != nil {
		return nil, err
	}

	page := p.Page
	if page < 1 {
		page = 1
	}

	query := url.Values{}
	query.Set("apiKey", p.APIKey)
	query.Set("binaryIdentifier", binary)
	query.Set("appId", app)
	query.Set("platform", c.platform)
	query.Set("page", strconv.Itoa(page))

	var resp AvailableBuildsResponse
	if err := c.do(ctx, getAllReleasesEndpoint, p.CommonParams, query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// requestState is the pipeline position of one call.
type requestState int

const (
	// stateUnauthenticated sends without a token; a 403 escalates.
	stateUnauthenticated requestState = iota
	// stateTokenAttached sends with a token; a 403 is final.
	stateTokenAttached
)

// do runs the request pipeline. A call makes at most two backend requests:
// the escalation from stateUnauthenticated to stateTokenAttached happens once
// and stateTokenAttached has no further transition.
func (c *Client) do(ctx context.Context, ep endpoint, common CommonParams, query url.Values, out any) error {
	state := stateUnauthenticated
	if c.EffectivePolicy().stricter(common.Login).requiresToken(ep.revealsDownload) {
		state = stateTokenAttached
	}

	for {
		var token string
		if state == stateTokenAttached {
			var err error
			if token, err = c.accessToken(ctx, common.Connection); err != nil {
				return err
			}
		}

		c.notifier.RequestStarted(ep.path, token != "")
		err := c.send(ctx, ep, query, token, out)

		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrLoginRequired) && state == stateUnauthenticated:
			c.logger.Info("backend requires login, retrying with a token", "endpoint", ep.path)
			c.escalate()
			c.notifier.LoginEscalated(ep.path)
			state = stateTokenAttached
		default:
			return err
		}
	}
}

func (c *Client) accessToken(ctx context.Context, connection string) (string, error) {
	if c.tokens == nil {
		return "", fmt.Errorf("%w: no token provider configured", ErrLoginRequired)
	}
	token, err := c.tokens.AccessToken(ctx, connection)
	if err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}
	return token, nil
}

// send performs one GET and decodes a 2xx body into out.
func (c *Client) send(ctx context.Context, ep endpoint, query url.Values, token string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	u := c.baseURL.JoinPath(ep.path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.DoWithContext(reqCtx, req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", ep.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("distribution response",
		"endpoint", ep.path,
		"status", resp.StatusCode,
		"authenticated", token != "",
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return nil
}

// errorFromResponse maps a non-2xx answer onto the error taxonomy.
func errorFromResponse(status int, body []byte) error {
	if status == http.StatusForbidden {
		return ErrLoginRequired
	}

	message := unknownErrorMsg
	var errResp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		message = errResp.Message
	}
	return &BadRequestError{StatusCode: status, Message: message}
}
