// Package tui renders the companion client in the terminal: a login
// prompt, a debounced search bar with suggestions, and a profile view.
// A Displayer abstracts the session-lifecycle output so the same flow
// drives both the interactive program and the plain one-shot mode.
package tui

import (
	"fmt"
	"io"

	tea "charm.land/bubbletea/v2"

	"github.com/swifty-companion/intra-cli/intra"
	"github.com/swifty-companion/intra-cli/session"
)

// Displayer abstracts session and profile output.
type Displayer interface {
	SessionStatus(s session.Status)
	AuthPrompt(url string)
	Profile(u *intra.User)
	Error(message string)
	Fatal(err error)
}

// PlainDisplayer writes plain text to w. Used when stderr is not a TTY
// (pipes, CI, SSH without pty) and for the one-shot fetch mode.
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) SessionStatus(s session.Status) {
	switch s.State {
	case session.StateChecking:
		fmt.Fprintln(p.w, "Checking stored session...")
	case session.StateAuthenticated:
		fmt.Fprintln(p.w, "Logged in.")
	case session.StateUnauthenticated:
		if s.Err != "" {
			fmt.Fprintf(p.w, "Not logged in: %s\n", s.Err)
		} else {
			fmt.Fprintln(p.w, "Not logged in.")
		}
	}
}

func (p *PlainDisplayer) AuthPrompt(url string) {
	fmt.Fprintln(p.w, "Open this link to authorize:")
	fmt.Fprintln(p.w, url)
	fmt.Fprintln(p.w, "Waiting for the browser to complete login...")
}

func (p *PlainDisplayer) Profile(u *intra.User) {
	fmt.Fprintf(p.w, "%s (%s)\n", u.DisplayName, u.Login)
	if len(u.Campus) > 0 {
		fmt.Fprintf(p.w, "Campus: %s, %s\n", u.Campus[0].Name, u.Campus[0].Country)
	}
	if u.Location != "" {
		fmt.Fprintf(p.w, "Location: %s\n", u.Location)
	}
	fmt.Fprintf(p.w, "Wallet: %d  Correction points: %d\n", u.Wallet, u.CorrectionPoint)
	if avatar := u.AvatarURL(); avatar != "" {
		fmt.Fprintf(p.w, "Avatar: %s\n", avatar)
	}
	for _, cu := range u.CursusUsers {
		grade := cu.Grade
		if grade == "" {
			grade = "-"
		}
		fmt.Fprintf(p.w, "Cursus %s: level %.2f, grade %s\n", cu.Cursus.Name, cu.Level, grade)
	}
	for _, pu := range u.ProjectsUsers {
		mark := ""
		if pu.FinalMark != nil {
			mark = fmt.Sprintf(" (%d)", *pu.FinalMark)
		}
		fmt.Fprintf(p.w, "Project %s: %s%s\n", pu.Project.Name, pu.Status, mark)
	}
}

func (p *PlainDisplayer) Error(message string) {
	fmt.Fprintf(p.w, "Error: %s\n", message)
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) SessionStatus(_ session.Status) {}
func (NoopDisplayer) AuthPrompt(_ string)            {}
func (NoopDisplayer) Profile(_ *intra.User)          {}
func (NoopDisplayer) Error(_ string)                 {}
func (NoopDisplayer) Fatal(_ error)                  {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) SessionStatus(s session.Status) {
	t.p.Send(MsgSessionStatus{Status: s})
}

func (t *ProgramDisplayer) AuthPrompt(url string) {
	t.p.Send(MsgAuthPrompt{URL: url})
}

func (t *ProgramDisplayer) Profile(u *intra.User) {
	t.p.Send(MsgProfile{User: u})
}

func (t *ProgramDisplayer) Error(message string) {
	t.p.Send(MsgSearchFailed{Message: message})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
