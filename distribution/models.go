package distribution

import (
	"fmt"
	"time"
)

// downloadRequiresLoginPlaceholder replaces downloadUrl when the caller is not
// allowed to see the real location yet.
const downloadRequiresLoginPlaceholder = "REQUIRES_LOGIN"

// ReleaseInfo describes one build available for installation.
type ReleaseInfo struct {
	ID                       string  `json:"id"`
	Tag                      string  `json:"tag"`
	Version                  string  `json:"version"`
	AppID                    string  `json:"appId"`
	DownloadURL              string  `json:"downloadUrl"`
	IconURL                  *string `json:"iconUrl,omitempty"`
	AppName                  string  `json:"appName"`
	CreatedDate              string  `json:"createdDate"`
	CurrentReleaseDate       string  `json:"currentReleaseDate"`
	LoginRequiredForDownload bool    `json:"loginRequiredForDownload"`
}

// Created parses CreatedDate.
func (r *ReleaseInfo) Created() (time.Time, error) {
	return parseDate(r.CreatedDate)
}

// CurrentReleaseCreated parses CurrentReleaseDate.
func (r *ReleaseInfo) CurrentReleaseCreated() (time.Time, error) {
	return parseDate(r.CurrentReleaseDate)
}

// DownloadRequiresLogin reports whether DownloadURL is the placeholder sent in
// place of the real location. Fetch the release again with the Everything
// policy to reveal it.
func (r *ReleaseInfo) DownloadRequiresLogin() bool {
	return r.DownloadURL == downloadRequiresLoginPlaceholder
}

// LoginGated reports whether the release is configured to need a login for
// downloads. It stays set on releases fetched with a token.
func (r *ReleaseInfo) LoginGated() bool {
	return r.LoginRequiredForDownload
}

// UpdateCheckResponse is the answer to an update check. Update is nil when the
// running build is the newest one.
type UpdateCheckResponse struct {
	Current *ReleaseInfo `json:"current,omitempty"`
	Update  *ReleaseInfo `json:"update,omitempty"`
}

// ReleaseBasicInfo is one entry of a release listing.
type ReleaseBasicInfo struct {
	ID          string  `json:"id"`
	Tag         string  `json:"tag"`
	Version     string  `json:"version"`
	Build       string  `json:"build"`
	AppID       string  `json:"appId"`
	IconURL     *string `json:"iconUrl,omitempty"`
	AppName     string  `json:"appName"`
	CreatedDate string  `json:"createdDate"`
}

// Created parses CreatedDate.
func (r *ReleaseBasicInfo) Created() (time.Time, error) {
	return parseDate(r.CreatedDate)
}

// AvailableBuildsResponse is one page of releases.
type AvailableBuildsResponse struct {
	Page        int                `json:"page"`
	TotalPages  int                `json:"totalPages"`
	TotalBuilds int                `json:"totalBuilds"`
	Builds      []ReleaseBasicInfo `json:"builds"`
}

// HasNextPage reports whether a later page exists.
func (r *AvailableBuildsResponse) HasNextPage() bool {
	return r.Page < r.TotalPages
}

// parseDate accepts ISO-8601 timestamps with or without fractional seconds.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
