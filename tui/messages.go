package tui

import (
	"time"
)

// Release is the display form of a release or listing entry.
type Release struct {
	ID          string
	AppName     string
	Version     string
	Build       string
	Tag         string
	DownloadURL string
	Created     time.Time
	// Gated is set when the download location requires a login.
	Gated bool
}

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgTokenValid signals that the cached access token is still valid.
type MsgTokenValid struct{}

// MsgRefreshing signals that a token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the token was refreshed successfully.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that token refresh failed.
type MsgRefreshFailed struct{ Err error }

// MsgAuthorizationStarted signals that the login page is being presented.
type MsgAuthorizationStarted struct {
	AuthURL      string
	Instructions string
}

// MsgAuthSuccess signals that the user logged in successfully.
type MsgAuthSuccess struct{}

// MsgTokenSaved signals that a token was persisted.
type MsgTokenSaved struct{ Key string }

// MsgTokenSaveFailed signals that persisting a token failed.
type MsgTokenSaveFailed struct{ Err error }

// MsgRequestStarted signals that a backend request was sent.
type MsgRequestStarted struct {
	Endpoint      string
	Authenticated bool
}

// MsgLoginEscalated signals that the backend demanded a login.
type MsgLoginEscalated struct{ Endpoint string }

// MsgUpToDate signals that no newer build exists.
type MsgUpToDate struct{ Current *Release }

// MsgUpdateAvailable signals that a newer build exists.
type MsgUpdateAvailable struct{ Update Release }

// MsgReleaseDetails carries a single release lookup result.
type MsgReleaseDetails struct{ Release Release }

// MsgReleaseList carries one page of releases.
type MsgReleaseList struct {
	Page        int
	TotalPages  int
	TotalBuilds int
	Builds      []Release
}

// MsgCancelled signals that the user abandoned the login.
type MsgCancelled struct{}

// MsgFatal signals a fatal error that should terminate the flow.
type MsgFatal struct{ Err error }
