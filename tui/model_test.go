package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
)

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		if m, ok = next.(Model); !ok {
			t.Fatalf("Update() returned %T", next)
		}
	}
	return m
}

func TestModel_LoginThenUpdate(t *testing.T) {
	m := update(t, NewModel(),
		MsgRequestStarted{Endpoint: "checkForUpdates"},
		MsgLoginEscalated{Endpoint: "checkForUpdates"},
		MsgAuthorizationStarted{AuthURL: "https://auth.example.com/authorize", Instructions: "paste it"},
	)
	if m.state != stateAuthorizing {
		t.Fatalf("state = %d, want stateAuthorizing", m.state)
	}
	if !strings.Contains(m.viewMain(), "https://auth.example.com/authorize") {
		t.Error("login URL not rendered")
	}

	m = update(t, m,
		MsgAuthSuccess{},
		MsgRequestStarted{Endpoint: "checkForUpdates", Authenticated: true},
		MsgUpdateAvailable{Update: Release{AppName: "Example", Version: "2.0.0", Gated: true}},
	)
	if m.state != stateResult {
		t.Fatalf("state = %d, want stateResult", m.state)
	}
	view := m.viewResult()
	for _, want := range []string{"Update available", "2.0.0", "login required", "requires login"} {
		if !strings.Contains(view, want) {
			t.Errorf("result view missing %q", want)
		}
	}
}

func TestModel_TickOnlyWhileAuthorizing(t *testing.T) {
	m := NewModel()
	if _, cmd := m.Update(tickMsg(time.Now())); cmd != nil {
		t.Error("tick rescheduled outside the login wait")
	}

	m = update(t, m, MsgAuthorizationStarted{AuthURL: "u"})
	next, cmd := m.Update(tickMsg(m.authStarted.Add(65 * time.Second)))
	if cmd == nil {
		t.Error("tick not rescheduled while waiting for login")
	}
	if got := formatDuration(next.(Model).waited); got != "1m 5s" {
		t.Errorf("elapsed = %q, want 1m 5s", got)
	}
}

func TestModel_TerminalStates(t *testing.T) {
	if m := update(t, NewModel(), MsgCancelled{}); !strings.Contains(m.viewCancelled(), "cancelled") {
		t.Error("cancel view missing")
	}
	m := update(t, NewModel(), MsgFatal{Err: errors.New("bad request (HTTP 400): Invalid API key")})
	if m.state != stateError || !strings.Contains(m.viewError(), "Invalid API key") {
		t.Errorf("error view = %q", m.viewError())
	}
}

func TestPlainDisplayer(t *testing.T) {
	var buf bytes.Buffer
	d := NewPlainDisplayer(&buf)

	d.AuthorizationStarted("https://auth.example.com/authorize?x=1", "Paste the URL")
	d.ReleaseDetails(Release{ID: "rel-1", AppName: "Example", Version: "1.2.3", DownloadURL: "https://cdn/x.plist"})
	d.ReleaseList(1, 2, 3, []Release{{ID: "a", Version: "1.0", Build: "7"}})
	d.UpToDate(nil)

	out := buf.String()
	for _, want := range []string{
		"https://auth.example.com/authorize?x=1",
		"Paste the URL",
		"Release rel-1: Example 1.2.3",
		"Download: https://cdn/x.plist",
		"page 1 of 2, 3 total",
		"No update available.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 7*time.Second, "3m 7s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
