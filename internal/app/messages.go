package app

import (
	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/call"
	"github.com/lexnova/lexnova/internal/report"
)

// NavigateMsg asks the router to move to Path.
type NavigateMsg struct {
	Path string
}

// LoginResultMsg carries the outcome of a login attempt.
type LoginResultMsg struct {
	Err error
}

// RegisterResultMsg carries the outcome of a registration.
type RegisterResultMsg struct {
	Err error
}

// JoinResultMsg carries the outcome of the client join flow.
type JoinResultMsg struct {
	Result *api.JoinResult
	Err    error
}

// SessionsLoadedMsg is sent after the session list was fetched.
type SessionsLoadedMsg struct {
	Err error
}

// SessionCreatedMsg is sent after the create form's submission finished.
// UploadErr is set when the session exists but the script did not attach.
type SessionCreatedMsg struct {
	Session   *api.Session
	Err       error
	UploadErr error
}

// SessionStartedMsg carries the join tokens for a started session.
type SessionStartedMsg struct {
	SessionID string
	Tokens    *api.StartTokens
	Err       error
}

// ScriptAnalyzedMsg carries a script analysis.
type ScriptAnalyzedMsg struct {
	SessionID string
	Analysis  *api.ScriptAnalysis
	Err       error
}

// RoomConnectedMsg is sent when the transport connected. Gen ties room
// messages to one visit of the room screen.
type RoomConnectedMsg struct {
	Gen int
}

// RoomConnectErrorMsg is sent when the transport failed to connect.
type RoomConnectErrorMsg struct {
	Gen int
	Err error
}

// RoomEventMsg wraps one transport event.
type RoomEventMsg struct {
	Gen   int
	Event call.Event
}

// RoomEventsClosedMsg is sent when the transport's event channel closed.
type RoomEventsClosedMsg struct {
	Gen int
}

// RoomTickMsg advances the elapsed-time counter.
type RoomTickMsg struct {
	Gen int
}

// ToggleAckMsg is the transport's answer to a mic or camera toggle.
type ToggleAckMsg struct {
	Gen     int
	Media   call.Media
	Seq     uint64
	Enabled bool
	Err     error
}

// ReportLoadedMsg carries a fetched report.
type ReportLoadedMsg struct {
	SessionID string
	Report    *api.SessionReport
	Err       error
}

// ReportReviewedMsg carries the certification gate's decision.
type ReportReviewedMsg struct {
	Decision report.Decision
	Err      error
}

// CertifyDoneMsg is sent when certification finished.
type CertifyDoneMsg struct {
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}
