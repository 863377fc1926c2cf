package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/swifty-companion/intra-cli/intra"
	"github.com/swifty-companion/intra-cli/session"
)

// Backend is the set of intents the model emits. Implementations run
// the work asynchronously and answer with messages into the program.
type Backend interface {
	Login()
	Logout()
	Search(query string)
	Fetch(login string)
	CancelSearch()
}

// phase represents the current screen.
type phase int

const (
	phaseChecking    phase = iota
	phaseLoggedOut         // login prompt, possibly with an error banner
	phaseAuthorizing       // waiting for the browser consent flow
	phaseSearch            // search bar + suggestions
	phaseLoading           // profile fetch in flight
	phaseProfile           // profile view
	phaseFatal
)

// Model is the BubbleTea model for the companion client.
type Model struct {
	backend Backend
	phase   phase
	spinner spinner.Model
	input   textinput.Model
	width   int
	height  int

	authURL  string
	loginErr string

	suggestions []intra.User
	selected    int
	searchErr   string

	profile  *intra.User
	fetching string

	fatalErr string
}

// Lipgloss styles — defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("37")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("37")).
			Padding(0, 2)

	styleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("228"))

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial model.
func NewModel(backend Backend) Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("37"))),
	)

	ti := textinput.New()
	ti.Placeholder = "Enter a 42 login..."

	return Model{
		backend: backend,
		phase:   phaseChecking,
		spinner: s,
		input:   ti,
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

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	// ── Session and API messages ─────────────────────────────────────────────

	case MsgSessionStatus:
		return m.applySessionStatus(msg.Status)

	case MsgAuthPrompt:
		m.phase = phaseAuthorizing
		m.authURL = msg.URL
		return m, nil

	case MsgSearchResults:
		if m.phase != phaseSearch {
			return m, nil
		}
		m.suggestions = msg.Users
		m.selected = 0
		m.searchErr = ""
		return m, nil

	case MsgSearchFailed:
		if m.phase != phaseSearch {
			return m, nil
		}
		m.suggestions = nil
		m.searchErr = msg.Message
		return m, nil

	case MsgProfile:
		m.profile = msg.User
		m.phase = phaseProfile
		m.fetching = ""
		return m, nil

	case MsgProfileFailed:
		m.phase = phaseSearch
		m.fetching = ""
		m.searchErr = msg.Message
		return m, nil

	case MsgFatal:
		m.fatalErr = msg.Err.Error()
		m.phase = phaseFatal
		return m, nil
	}

	return m, nil
}

// applySessionStatus maps a session transition onto a screen.
func (m Model) applySessionStatus(s session.Status) (tea.Model, tea.Cmd) {
	switch s.State {
	case session.StateChecking:
		m.phase = phaseChecking
	case session.StateAuthenticated:
		m.phase = phaseSearch
		m.loginErr = ""
		m.searchErr = ""
		m.suggestions = nil
		m.profile = nil
		m.input.SetValue("")
		m.input.Focus()
	case session.StateUnauthenticated:
		// A silent demotion mid-search lands back on the login screen.
		m.phase = phaseLoggedOut
		m.loginErr = s.Err
		m.suggestions = nil
		m.profile = nil
		m.backend.CancelSearch()
	}
	return m, nil
}

// handleKey dispatches key presses per phase.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.phase {
	case phaseLoggedOut:
		if msg.String() == "enter" {
			m.phase = phaseAuthorizing
			m.authURL = ""
			m.loginErr = ""
			m.backend.Login()
		}
		return m, nil

	case phaseSearch:
		switch msg.String() {
		case "up":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down":
			if m.selected < len(m.suggestions)-1 {
				m.selected++
			}
			return m, nil
		case "enter":
			login := strings.TrimSpace(m.input.Value())
			if len(m.suggestions) > 0 && m.selected < len(m.suggestions) {
				login = m.suggestions[m.selected].Login
			}
			if login == "" {
				return m, nil
			}
			m.phase = phaseLoading
			m.fetching = login
			m.searchErr = ""
			m.backend.CancelSearch()
			m.backend.Fetch(login)
			return m, nil
		case "ctrl+l":
			m.backend.Logout()
			return m, nil
		default:
			var cmd tea.Cmd
			before := m.input.Value()
			m.input, cmd = m.input.Update(msg)
			if after := m.input.Value(); after != before {
				m.searchErr = ""
				m.backend.Search(after)
			}
			return m, cmd
		}

	case phaseProfile:
		switch msg.String() {
		case "esc", "backspace":
			m.phase = phaseSearch
			m.profile = nil
			m.input.Focus()
			return m, nil
		case "ctrl+l":
			m.backend.Logout()
			return m, nil
		}
		return m, nil
	}

	return m, nil
}

// View renders the current screen.
func (m Model) View() tea.View {
	switch m.phase {
	case phaseLoggedOut:
		return tea.NewView(m.viewLoggedOut())
	case phaseAuthorizing:
		return tea.NewView(m.viewAuthorizing())
	case phaseSearch:
		return tea.NewView(m.viewSearch())
	case phaseLoading:
		return tea.NewView(m.viewLoading())
	case phaseProfile:
		return tea.NewView(m.viewProfile())
	case phaseFatal:
		return tea.NewView(m.viewFatal())
	default:
		return tea.NewView(m.viewChecking())
	}
}

func (m Model) title() string {
	return "\n" + styleTitleBox.Render("  Swifty Companion  ") + "\n\n"
}

func (m Model) viewChecking() string {
	return m.title() + m.spinner.View() + " Checking stored session...\n"
}

func (m Model) viewLoggedOut() string {
	var b strings.Builder
	b.WriteString(m.title())
	if m.loginErr != "" {
		b.WriteString(styleErr.Render("  ✗ " + m.loginErr))
		b.WriteString("\n\n")
	}
	b.WriteString(styleBold.Render("Press enter to login with your 42 account."))
	b.WriteString("\n")
	b.WriteString(styleDim.Render("ctrl+c: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewAuthorizing() string {
	var b strings.Builder
	b.WriteString(m.title())
	b.WriteString(m.spinner.View())
	b.WriteString(" Waiting for authorization in your browser...\n")
	if m.authURL != "" {
		b.WriteString("\n")
		b.WriteString(styleDim.Render("If the browser did not open, visit:"))
		b.WriteString("\n")
		b.WriteString(m.authURL)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewSearch() string {
	var b strings.Builder
	b.WriteString(m.title())
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	for i, u := range m.suggestions {
		line := fmt.Sprintf("%s  %s", u.Login, styleDim.Render(u.DisplayName))
		if i == m.selected {
			b.WriteString(styleSelected.Render("› " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if len(m.suggestions) > 0 {
		b.WriteString("\n")
	}

	if m.searchErr != "" {
		b.WriteString(styleErr.Render("  ✗ " + m.searchErr))
		b.WriteString("\n")
	}

	b.WriteString(styleDim.Render("enter: open · ↑/↓: select · ctrl+l: logout · ctrl+c: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewLoading() string {
	return m.title() + m.spinner.View() + " Loading profile of " + m.fetching + "...\n"
}

func (m Model) viewProfile() string {
	u := m.profile
	if u == nil {
		return m.viewSearch()
	}

	var b strings.Builder
	b.WriteString(m.title())

	b.WriteString(styleBold.Render(u.DisplayName))
	b.WriteString(styleDim.Render("  " + u.Login))
	b.WriteString("\n")

	if len(u.Campus) > 0 {
		b.WriteString(styleDim.Render(u.Campus[0].Name + ", " + u.Campus[0].Country))
		b.WriteString("\n")
	}
	if u.Location != "" {
		b.WriteString("Location: " + u.Location + "\n")
	}
	b.WriteString(fmt.Sprintf("Wallet: %d  Correction points: %d\n", u.Wallet, u.CorrectionPoint))
	if avatar := u.AvatarURL(); avatar != "" {
		b.WriteString(styleDim.Render("Avatar: " + avatar))
		b.WriteString("\n")
	}

	if len(u.CursusUsers) > 0 {
		b.WriteString("\n")
		b.WriteString(styleBold.Render("Cursus"))
		b.WriteString("\n")
		for _, cu := range u.CursusUsers {
			grade := cu.Grade
			if grade == "" {
				grade = "-"
			}
			b.WriteString(fmt.Sprintf("  %-24s level %6.2f  %s\n", cu.Cursus.Name, cu.Level, grade))
		}
	}

	if len(u.ProjectsUsers) > 0 {
		b.WriteString("\n")
		b.WriteString(styleBold.Render("Projects"))
		b.WriteString("\n")
		shown := u.ProjectsUsers
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, pu := range shown {
			b.WriteString("  " + renderProjectLine(pu) + "\n")
		}
		if rest := len(u.ProjectsUsers) - len(shown); rest > 0 {
			b.WriteString(styleDim.Render(fmt.Sprintf("  … and %d more", rest)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(styleDim.Render("esc: back · ctrl+l: logout · ctrl+c: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewFatal() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ " + m.fatalErr))
	b.WriteString("\n")
	return b.String()
}

// renderProjectLine renders one project participation with its status
// tag and final mark.
func renderProjectLine(pu intra.ProjectUser) string {
	var tag string
	switch pu.Status {
	case intra.StatusFinished:
		mark := ""
		if pu.FinalMark != nil {
			mark = fmt.Sprintf(" %d", *pu.FinalMark)
		}
		if pu.Validated != nil && !*pu.Validated {
			tag = styleErr.Render("✗" + mark)
		} else {
			tag = styleOK.Render("✓" + mark)
		}
	case intra.StatusInProgress:
		tag = styleWarn.Render("…")
	case intra.StatusSearchingAGroup:
		tag = styleDim.Render("⌕ group")
	case intra.StatusCreatingGroup:
		tag = styleDim.Render("+ group")
	default:
		tag = styleDim.Render(pu.Status)
	}
	return fmt.Sprintf("%-28s %s", pu.Project.Name, tag)
}
