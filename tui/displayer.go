package tui

import (
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all output of the update check. It satisfies both
// auth.Notifier and distribution.Notifier.
type Displayer interface {
	Banner()
	TokenValid()
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	AuthorizationStarted(authURL, instructions string)
	AuthSuccess()
	TokenSaved(key string)
	TokenSaveFailed(err error)
	RequestStarted(endpoint string, authenticated bool)
	LoginEscalated(endpoint string)
	UpToDate(current *Release)
	UpdateAvailable(update Release)
	ReleaseDetails(release Release)
	ReleaseList(page, totalPages, totalBuilds int, builds []Release)
	Cancelled()
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty) and while the
// user has to paste a callback URL into the terminal.
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== Distribution Update Check ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) TokenValid() {
	fmt.Fprintln(p.w, "Access token is still valid, using it...")
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing access token...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Token refreshed successfully!")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
	fmt.Fprintln(p.w, "Starting interactive login...")
}

func (p *PlainDisplayer) AuthorizationStarted(authURL, instructions string) {
	fmt.Fprintln(p.w, "Login required.")
	fmt.Fprintln(p.w, "----------------------------------------")
	fmt.Fprintf(p.w, "Please open this link to sign in:\n%s\n", authURL)
	if instructions != "" {
		fmt.Fprintf(p.w, "\n%s\n", instructions)
	}
	fmt.Fprintln(p.w, "----------------------------------------")
}

func (p *PlainDisplayer) AuthSuccess() {
	fmt.Fprintln(p.w, "\nLogin successful!")
}

func (p *PlainDisplayer) TokenSaved(key string) {
	fmt.Fprintf(p.w, "Saved %s\n", key)
}

func (p *PlainDisplayer) TokenSaveFailed(err error) {
	fmt.Fprintf(p.w, "Warning: Failed to save tokens: %v\n", err)
}

func (p *PlainDisplayer) RequestStarted(endpoint string, authenticated bool) {
	if authenticated {
		fmt.Fprintf(p.w, "Calling %s (authenticated)...\n", endpoint)
		return
	}
	fmt.Fprintf(p.w, "Calling %s...\n", endpoint)
}

func (p *PlainDisplayer) LoginEscalated(endpoint string) {
	fmt.Fprintf(p.w, "%s requires login, retrying with a token...\n", endpoint)
}

func (p *PlainDisplayer) UpToDate(current *Release) {
	if current != nil {
		fmt.Fprintf(p.w, "\nUp to date: %s %s\n", current.AppName, current.Version)
		return
	}
	fmt.Fprintln(p.w, "\nNo update available.")
}

func (p *PlainDisplayer) UpdateAvailable(update Release) {
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintf(p.w, "Update available: %s %s\n", update.AppName, update.Version)
	p.releaseFields(update)
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) ReleaseDetails(release Release) {
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintf(p.w, "Release %s: %s %s\n", release.ID, release.AppName, release.Version)
	p.releaseFields(release)
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) releaseFields(r Release) {
	if r.Tag != "" {
		fmt.Fprintf(p.w, "Tag: %s\n", r.Tag)
	}
	if !r.Created.IsZero() {
		fmt.Fprintf(p.w, "Created: %s\n", r.Created.Format(time.RFC1123))
	}
	if r.Gated {
		fmt.Fprintln(p.w, "Download: login required")
	} else {
		fmt.Fprintf(p.w, "Download: %s\n", r.DownloadURL)
	}
}

func (p *PlainDisplayer) ReleaseList(page, totalPages, totalBuilds int, builds []Release) {
	fmt.Fprintf(p.w, "\nReleases (page %d of %d, %d total):\n", page, totalPages, totalBuilds)
	for _, b := range builds {
		fmt.Fprintf(p.w, "  %-24s %-12s build %-8s %s\n", b.ID, b.Version, b.Build, formatDate(b.Created))
	}
}

func (p *PlainDisplayer) Cancelled() {
	fmt.Fprintln(p.w, "Login cancelled.")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                              {}
func (NoopDisplayer) TokenValid()                          {}
func (NoopDisplayer) Refreshing()                          {}
func (NoopDisplayer) RefreshOK()                           {}
func (NoopDisplayer) RefreshFailed(_ error)                {}
func (NoopDisplayer) AuthorizationStarted(_, _ string)     {}
func (NoopDisplayer) AuthSuccess()                         {}
func (NoopDisplayer) TokenSaved(_ string)                  {}
func (NoopDisplayer) TokenSaveFailed(_ error)              {}
func (NoopDisplayer) RequestStarted(_ string, _ bool)      {}
func (NoopDisplayer) LoginEscalated(_ string)              {}
func (NoopDisplayer) UpToDate(_ *Release)                  {}
func (NoopDisplayer) UpdateAvailable(_ Release)            {}
func (NoopDisplayer) ReleaseDetails(_ Release)             {}
func (NoopDisplayer) ReleaseList(_, _, _ int, _ []Release) {}
func (NoopDisplayer) Cancelled()                           {}
func (NoopDisplayer) Fatal(_ error)                        {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) TokenValid() {
	t.p.Send(MsgTokenValid{})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) AuthorizationStarted(authURL, instructions string) {
	t.p.Send(MsgAuthorizationStarted{AuthURL: authURL, Instructions: instructions})
}

func (t *ProgramDisplayer) AuthSuccess() {
	t.p.Send(MsgAuthSuccess{})
}

func (t *ProgramDisplayer) TokenSaved(key string) {
	t.p.Send(MsgTokenSaved{Key: key})
}

func (t *ProgramDisplayer) TokenSaveFailed(err error) {
	t.p.Send(MsgTokenSaveFailed{Err: err})
}

func (t *ProgramDisplayer) RequestStarted(endpoint string, authenticated bool) {
	t.p.Send(MsgRequestStarted{Endpoint: endpoint, Authenticated: authenticated})
}

func (t *ProgramDisplayer) LoginEscalated(endpoint string) {
	t.p.Send(MsgLoginEscalated{Endpoint: endpoint})
}

func (t *ProgramDisplayer) UpToDate(current *Release) {
	t.p.Send(MsgUpToDate{Current: current})
}

func (t *ProgramDisplayer) UpdateAvailable(update Release) {
	t.p.Send(MsgUpdateAvailable{Update: update})
}

func (t *ProgramDisplayer) ReleaseDetails(release Release) {
	t.p.Send(MsgReleaseDetails{Release: release})
}

func (t *ProgramDisplayer) ReleaseList(page, totalPages, totalBuilds int, builds []Release) {
	t.p.Send(MsgReleaseList{
		Page:        page,
		TotalPages:  totalPages,
		TotalBuilds: totalBuilds,
		Builds:      builds,
	})
}

func (t *ProgramDisplayer) Cancelled() {
	t.p.Send(MsgCancelled{})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}

// formatDate renders a release date for listings.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
