package tui

import (
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all output from the session flows.
type Displayer interface {
	Banner()
	SessionFound()
	TokenValid()
	TokenExpired()
	NoSession()
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	LoggingIn(email string)
	LoginOK(name string)
	SessionSaved(path string)
	SessionEphemeral()
	SessionExpired()
	LoggedOut()
	APICallOK(what string)
	APICallFailed(err error)
	Done(name, role, mode string, expiresIn time.Duration)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== Tastebook ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) SessionFound() {
	fmt.Fprintln(p.w, "Found existing session!")
}

func (p *PlainDisplayer) TokenValid() {
	fmt.Fprintln(p.w, "Access token is still valid, using it...")
}

func (p *PlainDisplayer) TokenExpired() {
	fmt.Fprintln(p.w, "Access token expired, refreshing...")
}

func (p *PlainDisplayer) NoSession() {
	fmt.Fprintln(p.w, "No stored session found.")
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing access token...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Token refreshed successfully!")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
}

func (p *PlainDisplayer) LoggingIn(email string) {
	fmt.Fprintf(p.w, "Logging in as %s...\n", email)
}

func (p *PlainDisplayer) LoginOK(name string) {
	fmt.Fprintf(p.w, "Welcome back, %s!\n", name)
}

func (p *PlainDisplayer) SessionSaved(path string) {
	fmt.Fprintf(p.w, "Session saved to %s\n", path)
}

func (p *PlainDisplayer) SessionEphemeral() {
	fmt.Fprintln(p.w, "Session will not be remembered (use --remember to keep it).")
}

func (p *PlainDisplayer) SessionExpired() {
	fmt.Fprintln(p.w, "Session expired, please log in again.")
}

func (p *PlainDisplayer) LoggedOut() {
	fmt.Fprintln(p.w, "Logged out.")
}

func (p *PlainDisplayer) APICallOK(what string) {
	fmt.Fprintf(p.w, "%s: OK\n", what)
}

func (p *PlainDisplayer) APICallFailed(err error) {
	fmt.Fprintf(p.w, "API call failed: %v\n", err)
}

func (p *PlainDisplayer) Done(name, role, mode string, expiresIn time.Duration) {
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintln(p.w, "Current Session:")
	fmt.Fprintf(p.w, "User: %s\n", name)
	if role != "" {
		fmt.Fprintf(p.w, "Role: %s\n", role)
	}
	fmt.Fprintf(p.w, "Storage: %s\n", mode)
	fmt.Fprintf(p.w, "Token Expires In: %s\n", expiresIn.Round(time.Second))
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                              {}
func (NoopDisplayer) SessionFound()                        {}
func (NoopDisplayer) TokenValid()                          {}
func (NoopDisplayer) TokenExpired()                        {}
func (NoopDisplayer) NoSession()                           {}
func (NoopDisplayer) Refreshing()                          {}
func (NoopDisplayer) RefreshOK()                           {}
func (NoopDisplayer) RefreshFailed(_ error)                {}
func (NoopDisplayer) LoggingIn(_ string)                   {}
func (NoopDisplayer) LoginOK(_ string)                     {}
func (NoopDisplayer) SessionSaved(_ string)                {}
func (NoopDisplayer) SessionEphemeral()                    {}
func (NoopDisplayer) SessionExpired()                      {}
func (NoopDisplayer) LoggedOut()                           {}
func (NoopDisplayer) APICallOK(_ string)                   {}
func (NoopDisplayer) APICallFailed(_ error)                {}
func (NoopDisplayer) Done(_, _, _ string, _ time.Duration) {}
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

func (t *ProgramDisplayer) SessionFound() {
	t.p.Send(MsgSessionFound{})
}

func (t *ProgramDisplayer) TokenValid() {
	t.p.Send(MsgTokenValid{})
}

func (t *ProgramDisplayer) TokenExpired() {
	t.p.Send(MsgTokenExpired{})
}

func (t *ProgramDisplayer) NoSession() {
	t.p.Send(MsgNoSession{})
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

func (t *ProgramDisplayer) LoggingIn(email string) {
	t.p.Send(MsgLoggingIn{Email: email})
}

func (t *ProgramDisplayer) LoginOK(name string) {
	t.p.Send(MsgLoginOK{Name: name})
}

func (t *ProgramDisplayer) SessionSaved(path string) {
	t.p.Send(MsgSessionSaved{Path: path})
}

func (t *ProgramDisplayer) SessionEphemeral() {
	t.p.Send(MsgSessionEphemeral{})
}

func (t *ProgramDisplayer) SessionExpired() {
	t.p.Send(MsgSessionExpired{})
}

func (t *ProgramDisplayer) LoggedOut() {
	t.p.Send(MsgLoggedOut{})
}

func (t *ProgramDisplayer) APICallOK(what string) {
	t.p.Send(MsgAPICallOK{What: what})
}

func (t *ProgramDisplayer) APICallFailed(err error) {
	t.p.Send(MsgAPICallFailed{Err: err})
}

func (t *ProgramDisplayer) Done(name, role, mode string, expiresIn time.Duration) {
	t.p.Send(MsgDone{Name: name, Role: role, Mode: mode, ExpiresIn: expiresIn})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
