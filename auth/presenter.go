package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/browser"
)

// Presenter shows the authorization URL in an interactive web surface and
// blocks until that surface reports the redirect to callbackScheme, an error,
// or cancellation (ErrUserCancelled).
type Presenter interface {
	Present(ctx context.Context, authURL *url.URL, callbackScheme string) (*url.URL, error)
}

// instructor is implemented by presenters that need to tell the user how to
// complete the login.
type instructor interface {
	Instructions() string
}

type outcome struct {
	redirect *url.URL
	err      error
}

// pending is a single-assignment outcome. Only the first resolve is kept.
type pending struct {
	once sync.Once
	ch   chan outcome
}

func newPending() *pending {
	return &pending{ch: make(chan outcome, 1)}
}

func (p *pending) resolve(redirect *url.URL, err error) bool {
	resolved := false
	p.once.Do(func() {
		p.ch <- outcome{redirect: redirect, err: err}
		resolved = true
	})
	return resolved
}

func (p *pending) wait(ctx context.Context) (*url.URL, error) {
	select {
	case o := <-p.ch:
		return o.redirect, o.err
	case <-ctx.Done():
		p.resolve(nil, contextOutcome(ctx.Err()))
		o := <-p.ch
		return o.redirect, o.err
	}
}

func contextOutcome(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrUserCancelled, err)
	}
	return fmt.Errorf("authentication surface timed out: %w", err)
}

// AwaitCallback adapts a completion-handler style surface. start receives a
// completion function that may be called any number of times; only the first
// call resolves the login.
func AwaitCallback(ctx context.Context, start func(complete func(redirect *url.URL, err error))) (*url.URL, error) {
	p := newPending()
	start(func(redirect *url.URL, err error) {
		p.resolve(redirect, err)
	})
	return p.wait(ctx)
}

// PastePresenter opens the system browser and reads the redirected callback
// URL from In. It serves custom-scheme redirect URIs that no local process
// can receive. An empty line cancels the login.
//
// In is read by a single goroutine for the lifetime of the presenter, so a
// login abandoned while waiting does not consume the line pasted for the next one.
type PastePresenter struct {
	In          io.Reader
	OpenBrowser bool
	OpenURL     func(string) error
	Logger      *slog.Logger

	startReader sync.Once
	lines       chan pastedLine
}

type pastedLine struct {
	text string
	err  error
}

// NewPastePresenter reads callback URLs from stdin.
func NewPastePresenter(openBrowser bool, logger *slog.Logger) *PastePresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PastePresenter{
		In:          os.Stdin,
		OpenBrowser: openBrowser,
		OpenURL:     browser.OpenURL,
		Logger:      logger,
	}
}

// Instructions tells the user to paste the redirected URL.
func (*PastePresenter) Instructions() string {
	return "After signing in, paste the URL your browser was redirected to and press Enter (empty line cancels)"
}

// readLines hands each line of In to the waiting Present call. The channel is
// closed after the first read error.
func (p *PastePresenter) readLines() {
	r := bufio.NewReader(p.In)
	for {
		line, err := r.ReadString('\n')
		p.lines <- pastedLine{text: line, err: err}
		if err != nil {
			close(p.lines)
			return
		}
	}
}

// Present implements Presenter.
func (p *PastePresenter) Present(ctx context.Context, authURL *url.URL, callbackScheme string) (*url.URL, error) {
	p.startReader.Do(func() {
		p.lines = make(chan pastedLine)
		go p.readLines()
	})

	if p.OpenBrowser && p.OpenURL != nil {
		if err := p.OpenURL(authURL.String()); err != nil {
			p.Logger.Warn("failed to open browser", "err", err)
		}
	}

	var pasted pastedLine
	select {
	case l, ok := <-p.lines:
		if !ok {
			return nil, ErrUserCancelled
		}
		pasted = l
	case <-ctx.Done():
		return nil, contextOutcome(ctx.Err())
	}

	line := strings.TrimSpace(pasted.text)
	if line == "" {
		if pasted.err != nil && !errors.Is(pasted.err, io.EOF) {
			return nil, fmt.Errorf("failed to read callback URL: %w", pasted.err)
		}
		return nil, ErrUserCancelled
	}

	redirect, err := url.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCallbackURL, err)
	}
	if !strings.EqualFold(redirect.Scheme, callbackScheme) {
		p.Logger.Debug("pasted URL has unexpected scheme", "scheme", redirect.Scheme, "want", callbackScheme)
	}
	return redirect, nil
}

// LoopbackPresenter receives the redirect on a local HTTP server. It is used
// when the redirect URI points at 127.0.0.1 or localhost.
type LoopbackPresenter struct {
	OpenBrowser bool
	OpenURL     func(string) error
	Logger      *slog.Logger

	listenAddr   string
	callbackPath string

	mu        sync.Mutex
	boundAddr string
}

// NewLoopbackPresenter creates a presenter listening on the host and path of redirectURI.
func NewLoopbackPresenter(redirectURI string, openBrowser bool, logger *slog.Logger) (*LoopbackPresenter, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Scheme != "http" || u.Host == "" {
		return nil, fmt.Errorf("loopback redirect URI must be http://host:port/path, got %q", redirectURI)
	}
	if logger == nil {
		logger = slog.Default()
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return &LoopbackPresenter{
		OpenBrowser:  openBrowser,
		OpenURL:      browser.OpenURL,
		Logger:       logger,
		listenAddr:   u.Host,
		callbackPath: path,
	}, nil
}

// IsLoopbackRedirect reports whether redirectURI can be served by a LoopbackPresenter.
func IsLoopbackRedirect(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || net.ParseIP(host).IsLoopback()
}

// Instructions tells the user the login completes in the browser.
func (*LoopbackPresenter) Instructions() string {
	return "Complete the sign-in in your browser; this window continues automatically"
}

// Addr returns the address the callback server is bound to while a login is in progress.
func (p *LoopbackPresenter) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.boundAddr
}

// Present implements Presenter.
func (p *LoopbackPresenter) Present(ctx context.Context, authURL *url.URL, callbackScheme string) (*url.URL, error) {
	listener, err := net.Listen("tcp", p.listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	p.mu.Lock()
	p.boundAddr = listener.Addr().String()
	p.mu.Unlock()

	result := newPending()

	mux := http.NewServeMux()
	mux.HandleFunc(p.callbackPath, func(w http.ResponseWriter, r *http.Request) {
		redirect := &url.URL{
			Scheme:   callbackScheme,
			Host:     r.Host,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
		}
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			writeCallbackPage(w, http.StatusBadRequest, "Authentication Failed", errParam)
		} else {
			// the code and state are checked by the caller after Present returns
			writeCallbackPage(w, http.StatusOK, "Sign-in Received",
				"Return to the terminal to finish logging in. You can close this window.")
		}
		if !result.resolve(redirect, nil) {
			p.Logger.Debug("ignoring repeated callback", "path", r.URL.Path)
		}
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			result.resolve(nil, fmt.Errorf("callback server failed: %w", err))
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			p.Logger.Warn("failed to shutdown callback server", "err", err)
		}
		p.mu.Lock()
		p.boundAddr = ""
		p.mu.Unlock()
	}()

	if p.OpenBrowser && p.OpenURL != nil {
		if err := p.OpenURL(authURL.String()); err != nil {
			p.Logger.Warn("failed to open browser", "err", err)
		}
	}

	return result.wait(ctx)
}

// writeCallbackPage renders the page shown in the browser after the redirect.
func writeCallbackPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.WriteHeader(status)

	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <meta charset="utf-8">
    <style>body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }</style>
</head>
<body>
    <h1>%[1]s</h1>
    <p>%[2]s</p>
</body>
</html>`, html.EscapeString(title), html.EscapeString(message))
}
