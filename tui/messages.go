package tui

import (
	"github.com/swifty-companion/intra-cli/intra"
	"github.com/swifty-companion/intra-cli/session"
)

// MsgSessionStatus carries a session state transition into the UI.
type MsgSessionStatus struct{ Status session.Status }

// MsgAuthPrompt signals that the consent URL is ready and the browser
// has been opened.
type MsgAuthPrompt struct{ URL string }

// MsgSearchResults delivers suggestions for the query that produced
// them. The search coordinator discards stale queries before they get
// this far.
type MsgSearchResults struct {
	Query string
	Users []intra.User
}

// MsgSearchFailed signals that a suggestion search failed.
type MsgSearchFailed struct {
	Query   string
	Message string
}

// MsgProfile delivers a fetched profile.
type MsgProfile struct{ User *intra.User }

// MsgProfileFailed signals that a profile fetch failed.
type MsgProfileFailed struct {
	Login   string
	Message string
}

// MsgFatal signals an unrecoverable error that should end the program.
type MsgFatal struct{ Err error }
