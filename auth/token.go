package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// tokenRequestTimeout bounds a single call to the token endpoint.
const tokenRequestTimeout = 10 * time.Second

// Doer performs HTTP requests. *retry.Client from go-httpretry satisfies it.
type Doer interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// tokenResponse covers both the authorization_code and refresh_token grants.
// The refresh grant omits refresh_token unless the provider rotates it.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// validateTokenResponse validates the token endpoint response
func validateTokenResponse(accessToken, tokenType string, expiresIn int) error {
	if accessToken == "" {
		return errors.New("access_token is empty")
	}

	if len(accessToken) < 10 {
		return fmt.Errorf("access_token is too short (length: %d)", len(accessToken))
	}

	if expiresIn <= 0 {
		return fmt.Errorf("expires_in must be positive, got: %d", expiresIn)
	}

	// token_type is optional, but when present it has to be Bearer
	if tokenType != "" && tokenType != "Bearer" {
		return fmt.Errorf("unexpected token_type: %s (expected Bearer)", tokenType)
	}

	return nil
}

// tokenClient talks to the identity provider's token endpoint. Request bodies
// are JSON, which the provider accepts in place of form encoding.
type tokenClient struct {
	tokenURL string
	clientID string
	http     Doer
}

func (c *tokenClient) exchangeCode(ctx context.Context, code, verifier, redirectURI string) (*oauth2.Token, error) {
	return c.post(ctx, map[string]string{
		"grant_type":    "authorization_code",
		"code_verifier": verifier,
		"client_id":     c.clientID,
		"code":          code,
		"redirect_uri":  redirectURI,
	})
}

func (c *tokenClient) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return c.post(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     c.clientID,
		"refresh_token": refreshToken,
	})
}

func (c *tokenClient) post(ctx context.Context, params map[string]string) (*oauth2.Token, error) {
	reqCtx, cancel := context.WithTimeout(ctx, tokenRequestTimeout)
	defer cancel()

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.DoWithContext(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retrieveErr := &oauth2.RetrieveError{Response: resp, Body: body}
		var errResp errorResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil {
			retrieveErr.ErrorCode = errResp.Error
			retrieveErr.ErrorDescription = errResp.ErrorDescription
		}
		return nil, fmt.Errorf("%w: %w", ErrProvider, retrieveErr)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if err := validateTokenResponse(
		tokenResp.AccessToken,
		tokenResp.TokenType,
		tokenResp.ExpiresIn,
	); err != nil {
		return nil, fmt.Errorf("invalid token response: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		Expiry:       time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}
	if tokenResp.IDToken != "" {
		token = token.WithExtra(map[string]any{"id_token": tokenResp.IDToken})
	}
	return token, nil
}
