package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/joho/godotenv"
	"github.com/pkg/browser"

	tea "charm.land/bubbletea/v2"
	"github.com/go-authgate/update-cli/auth"
	"github.com/go-authgate/update-cli/distribution"
	"github.com/go-authgate/update-cli/logger"
	"github.com/go-authgate/update-cli/tui"
)

var (
	flagAPIKey      *string
	flagLogin       *string
	flagConnection  *string
	flagTag         *string
	flagReleaseID   *string
	flagList        *bool
	flagPage        *string
	flagBinaryID    *string
	flagAppID       *string
	flagAPIURL      *string
	flagAuthURL     *string
	flagRedirectURI *string
	flagTokenStore  *string
	flagTokenFile   *string
	flagNoBrowser   *bool
	flagJSON        *bool
	flagLogLevel    *string
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagAPIKey = flag.String("api-key", "", "Distribution API key (required, or set API_KEY env)")
	flagLogin = flag.String(
		"login",
		"",
		"Login policy: none, download or everything (default: none or LOGIN_POLICY env)",
	)
	flagConnection = flag.String("connection", "", "SSO connection name (or CONNECTION env)")
	flagTag = flag.String("tag", "", "Release tag to check (or TAG_NAME env)")
	flagReleaseID = flag.String("release-id", "", "Fetch a single release instead of checking for updates")
	flagList = flag.Bool("list", false, "List available releases instead of checking for updates")
	flagPage = flag.String("page", "", "Page of releases to list (default: 1 or PAGE env)")
	flagBinaryID = flag.String("binary-id", "", "Override the binary identifier (or BINARY_ID env)")
	flagAppID = flag.String("app-id", "", "Override the app identifier (or APP_ID env)")
	flagAPIURL = flag.String(
		"api-url",
		"",
		"Distribution API URL (default: "+distribution.DefaultBaseURL+" or API_URL env)",
	)
	flagAuthURL = flag.String(
		"auth-url",
		"",
		"Identity provider URL (default: "+auth.DefaultBaseURL+" or AUTH_URL env)",
	)
	flagRedirectURI = flag.String(
		"redirect-uri",
		"",
		"OAuth redirect URI; http://127.0.0.1:<port>/... starts a local callback server (or REDIRECT_URI env)",
	)
	flagTokenStore = flag.String(
		"token-store",
		"",
		"Token storage: keyring, file or memory (default: keyring or TOKEN_STORE env)",
	)
	flagTokenFile = flag.String(
		"token-file",
		"",
		"Token file for the file store (default: XDG data dir or TOKEN_FILE env)",
	)
	flagNoBrowser = flag.Bool("no-browser", false, "Print the login URL instead of opening a browser")
	flagJSON = flag.Bool("json", false, "Write the result as JSON to stdout")
	flagLogLevel = flag.String("log-level", "", "Log level: debug, info, warn or error (or LOG_LEVEL env)")
}

// appConfig is the resolved configuration of one run.
type appConfig struct {
	apiKey      string
	login       distribution.LoginPolicy
	connection  string
	tag         string
	releaseID   string
	list        bool
	page        int
	binaryID    string
	appID       string
	apiURL      string
	authURL     string
	redirectURI string
	tokenStore  auth.BackendType
	tokenFile   string
	noBrowser   bool
	jsonOutput  bool
	logLevel    slog.Level
}

// flagValues holds the raw command line values before env and defaults apply.
type flagValues struct {
	apiKey      string
	login       string
	connection  string
	tag         string
	releaseID   string
	page        string
	binaryID    string
	appID       string
	apiURL      string
	authURL     string
	redirectURI string
	tokenStore  string
	tokenFile   string
	logLevel    string
	list        bool
	noBrowser   bool
	jsonOutput  bool
}

// initConfig parses flags and initializes configuration
// Separated from init() to avoid conflicts with test flag parsing
func initConfig() *appConfig {
	flag.Parse()

	cfg, err := resolveConfig(flagValues{
		apiKey:      *flagAPIKey,
		login:       *flagLogin,
		connection:  *flagConnection,
		tag:         *flagTag,
		releaseID:   *flagReleaseID,
		page:        *flagPage,
		binaryID:    *flagBinaryID,
		appID:       *flagAppID,
		apiURL:      *flagAPIURL,
		authURL:     *flagAuthURL,
		redirectURI: *flagRedirectURI,
		tokenStore:  *flagTokenStore,
		tokenFile:   *flagTokenFile,
		logLevel:    *flagLogLevel,
		list:        *flagList,
		noBrowser:   *flagNoBrowser,
		jsonOutput:  *flagJSON,
	})
	if errors.Is(err, errMissingAPIKey) {
		fmt.Fprintln(os.Stderr, "Error: API_KEY not set. Please provide it via:")
		fmt.Fprintln(os.Stderr, "  1. Command line flag: -api-key=<your-api-key>")
		fmt.Fprintln(os.Stderr, "  2. Environment variable: API_KEY=<your-api-key>")
		fmt.Fprintln(os.Stderr, "  3. .env file: API_KEY=<your-api-key>")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Warn if using HTTP instead of HTTPS
	for _, u := range []string{cfg.apiURL, cfg.authURL} {
		if strings.HasPrefix(strings.ToLower(u), "http://") {
			fmt.Fprintf(
				os.Stderr,
				"⚠️  WARNING: %s uses HTTP instead of HTTPS. Tokens will be transmitted in plaintext!\n",
				u,
			)
			fmt.Fprintln(
				os.Stderr,
				"⚠️  This is only safe for local development. Use HTTPS in production.",
			)
			fmt.Fprintln(os.Stderr)
		}
	}

	return cfg
}

var errMissingAPIKey = errors.New("API key is required")

// resolveConfig applies env and defaults to the raw flags and validates the result.
func resolveConfig(f flagValues) (*appConfig, error) {
	// Priority: flag > env > default
	cfg := &appConfig{
		apiKey:      getConfig(f.apiKey, "API_KEY", ""),
		connection:  getConfig(f.connection, "CONNECTION", ""),
		tag:         getConfig(f.tag, "TAG_NAME", ""),
		releaseID:   getConfig(f.releaseID, "RELEASE_ID", ""),
		binaryID:    getConfig(f.binaryID, "BINARY_ID", ""),
		appID:       getConfig(f.appID, "APP_ID", ""),
		apiURL:      getConfig(f.apiURL, "API_URL", distribution.DefaultBaseURL),
		authURL:     getConfig(f.authURL, "AUTH_URL", auth.DefaultBaseURL),
		redirectURI: getConfig(f.redirectURI, "REDIRECT_URI", auth.DefaultRedirectURI),
		tokenStore:  auth.ParseBackendType(getConfig(f.tokenStore, "TOKEN_STORE", "keyring")),
		tokenFile:   getConfig(f.tokenFile, "TOKEN_FILE", ""),
		list:        getBoolConfig(f.list, "LIST_RELEASES"),
		noBrowser:   getBoolConfig(f.noBrowser, "NO_BROWSER"),
		jsonOutput:  getBoolConfig(f.jsonOutput, "JSON_OUTPUT"),
		logLevel:    logger.ParseLevel(getConfig(f.logLevel, "LOG_LEVEL", "warn")),
	}

	if cfg.apiKey == "" {
		return nil, errMissingAPIKey
	}

	var err error
	if cfg.login, err = distribution.ParseLoginPolicy(getConfig(f.login, "LOGIN_POLICY", "none")); err != nil {
		return nil, err
	}

	cfg.page = 1
	if raw := getConfig(f.page, "PAGE", ""); raw != "" {
		if cfg.page, err = strconv.Atoi(raw); err != nil || cfg.page < 1 {
			return nil, fmt.Errorf("invalid page %q: must be a positive integer", raw)
		}
	}

	if cfg.list && cfg.releaseID != "" {
		return nil, errors.New("-list and -release-id cannot be combined")
	}

	if err := validateServerURL(cfg.apiURL); err != nil {
		return nil, fmt.Errorf("invalid API_URL: %w", err)
	}
	if err := validateServerURL(cfg.authURL); err != nil {
		return nil, fmt.Errorf("invalid AUTH_URL: %w", err)
	}
	if u, err := url.Parse(cfg.redirectURI); err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("invalid REDIRECT_URI: %q", cfg.redirectURI)
	}

	return cfg, nil
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolConfig returns true when the flag is set or the env value parses as true.
func getBoolConfig(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	v, err := strconv.ParseBool(os.Getenv(envKey))
	return err == nil && v
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// newHTTPClient builds the shared retrying HTTP client.
func newHTTPClient() (*retry.Client, error) {
	baseHTTPClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DisableKeepAlives:   false,
		},
	}

	// Wrap with retry logic using go-httpretry
	return retry.NewBackgroundClient(
		retry.WithHTTPClient(baseHTTPClient),
	)
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	cfg := initConfig()
	log := logger.New(os.Stderr, cfg.logLevel)

	// pkg/browser echoes the opener's output, which would tear the TUI
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	httpClient, err := newHTTPClient()
	if err != nil {
		panic(fmt.Sprintf("failed to create retry client: %v", err))
	}

	// Pasting a callback URL needs a plain terminal, so the TUI only runs for
	// loopback redirects.
	if isTTY() && auth.IsLoopbackRedirect(cfg.redirectURI) {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr := run(cfg, d, httpClient, log)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		if runErr != nil {
			os.Exit(1)
		}
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		if err := run(cfg, d, httpClient, log); err != nil {
			os.Exit(1)
		}
	}
}

func run(cfg *appConfig, d tui.Displayer, httpClient auth.Doer, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, d, httpClient, log)
	if err != nil {
		d.Fatal(err)
		return err
	}

	if err := a.execute(ctx); err != nil {
		if errors.Is(err, auth.ErrUserCancelled) {
			d.Cancelled()
			return err
		}
		d.Fatal(err)
		return err
	}
	return nil
}
