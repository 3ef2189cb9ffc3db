package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// tickMsg is fired every second while waiting for the login to update the elapsed time.
type tickMsg time.Time

// state represents the current phase of the update check.
type state int

const (
	stateInit        state = iota
	stateRequesting        // waiting for the distribution backend
	stateRefreshing        // refreshing the cached token
	stateAuthorizing       // login page presented, waiting for the callback
	stateResult            // backend answered
	stateCancelled         // user abandoned the login
	stateError             // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the update-check TUI.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	endpoint string

	// Login info
	authURL      string
	instructions string
	authStarted  time.Time
	waited       time.Duration

	// Result / error display
	resultTitle string
	resultLines []string
	errMsg      string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles, defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleLinkBox = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("228")).
			Padding(0, 1)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.state != stateAuthorizing {
			return m, nil
		}
		m.waited = time.Time(msg).Sub(m.authStarted)
		return m, tickAfterSecond()

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── Login messages ───────────────────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgTokenValid:
		m.addStatus(statusOK, "Access token is still valid")
		return m, nil

	case MsgRefreshing:
		m.state = stateRefreshing
		m.addStatus(statusInfo, "Refreshing access token...")
		return m, nil

	case MsgRefreshOK:
		m.addStatus(statusOK, "Token refreshed successfully")
		return m, nil

	case MsgRefreshFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Refresh failed: %v", msg.Err))
		return m, nil

	case MsgAuthorizationStarted:
		m.authURL = msg.AuthURL
		m.instructions = msg.Instructions
		m.authStarted = time.Now()
		m.waited = 0
		m.state = stateAuthorizing
		m.addStatus(statusInfo, "Login page opened")
		return m, tickAfterSecond()

	case MsgAuthSuccess:
		m.state = stateRequesting
		m.addStatus(statusOK, "Login successful!")
		return m, nil

	case MsgTokenSaved:
		m.addStatus(statusOK, "Saved "+msg.Key)
		return m, nil

	case MsgTokenSaveFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Warning: failed to save tokens: %v", msg.Err))
		return m, nil

	// ── Distribution messages ────────────────────────────────────────────────

	case MsgRequestStarted:
		m.endpoint = msg.Endpoint
		m.state = stateRequesting
		if msg.Authenticated {
			m.addStatus(statusInfo, "Calling "+msg.Endpoint+" (authenticated)")
		} else {
			m.addStatus(statusInfo, "Calling "+msg.Endpoint)
		}
		return m, nil

	case MsgLoginEscalated:
		m.addStatus(statusWarn, msg.Endpoint+" requires login")
		return m, nil

	case MsgUpToDate:
		m.state = stateResult
		m.resultTitle = "✓ You are up to date"
		m.resultLines = nil
		if msg.Current != nil {
			m.resultLines = releaseLines(*msg.Current)
		}
		return m, nil

	case MsgUpdateAvailable:
		m.state = stateResult
		m.resultTitle = "⬆ Update available"
		m.resultLines = releaseLines(msg.Update)
		return m, nil

	case MsgReleaseDetails:
		m.state = stateResult
		m.resultTitle = "Release " + msg.Release.ID
		m.resultLines = releaseLines(msg.Release)
		return m, nil

	case MsgReleaseList:
		m.state = stateResult
		m.resultTitle = fmt.Sprintf("Releases (page %d of %d, %d total)",
			msg.Page, msg.TotalPages, msg.TotalBuilds)
		m.resultLines = make([]string, 0, len(msg.Builds))
		for _, b := range msg.Builds {
			m.resultLines = append(m.resultLines,
				fmt.Sprintf("%-24s %-12s build %-8s %s", b.ID, b.Version, b.Build, formatDate(b.Created)))
		}
		return m, nil

	case MsgCancelled:
		m.state = stateCancelled
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateResult:
		return tea.NewView(m.viewResult())
	case stateCancelled:
		return tea.NewView(m.viewCancelled())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

// viewMain is shown while requests or the login are in flight.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  Distribution Update Check  "))
	b.WriteString("\n\n")

	switch m.state {
	case stateAuthorizing:
		b.WriteString(styleBold.Render("Sign in to continue:"))
		b.WriteString("\n")
		b.WriteString(styleLinkBox.Render(m.authURL))
		b.WriteString("\n\n")
		if m.instructions != "" {
			b.WriteString(styleDim.Render(m.instructions))
			b.WriteString("\n\n")
		}
		b.WriteString(m.spinner.View())
		b.WriteString(" Waiting for login...  ")
		b.WriteString(styleDim.Render(formatDuration(m.waited) + " elapsed"))
		b.WriteString("\n")

	case stateRefreshing:
		b.WriteString(m.spinner.View())
		b.WriteString(" Refreshing access token...\n")

	case stateRequesting:
		b.WriteString(m.spinner.View())
		b.WriteString(" Contacting " + m.endpoint + "...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Initializing...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewResult is shown once the backend has answered.
func (m Model) viewResult() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  " + m.resultTitle))
	b.WriteString("\n\n")

	for _, line := range m.resultLines {
		b.WriteString("  " + line + "\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewCancelled is shown when the user abandoned the login.
func (m Model) viewCancelled() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleWarn.Render("  ⚠ Login cancelled"))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Update check failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

// releaseLines renders the result panel rows of a release.
func releaseLines(r Release) []string {
	lines := []string{
		styleBold.Render("App:      ") + r.AppName,
		styleBold.Render("Version:  ") + r.Version,
	}
	if r.Tag != "" {
		lines = append(lines, styleBold.Render("Tag:      ")+r.Tag)
	}
	if !r.Created.IsZero() {
		lines = append(lines, styleBold.Render("Created:  ")+formatDate(r.Created))
	}
	download := r.DownloadURL
	if r.Gated {
		download = styleWarn.Render("login required")
	}
	if download != "" {
		lines = append(lines, styleBold.Render("Download: ")+download)
	}
	return lines
}

// tickAfterSecond returns a command that fires tickMsg after one second.
func tickAfterSecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// formatDuration formats a duration as "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
