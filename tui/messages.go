package tui

import (
	"time"
)

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgSessionFound signals that a stored session was found.
type MsgSessionFound struct{}

// MsgTokenValid signals that the stored access token is still valid.
type MsgTokenValid struct{}

// MsgTokenExpired signals that the access token has expired.
type MsgTokenExpired struct{}

// MsgNoSession signals that no stored session was found.
type MsgNoSession struct{}

// MsgRefreshing signals that a token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the token was refreshed successfully.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that token refresh failed.
type MsgRefreshFailed struct{ Err error }

// MsgLoggingIn signals that a credential login is in progress.
type MsgLoggingIn struct{ Email string }

// MsgLoginOK signals a successful login.
type MsgLoginOK struct{ Name string }

// MsgSessionSaved signals that the session was stored persistently.
type MsgSessionSaved struct{ Path string }

// MsgSessionEphemeral signals that the session lives only for this process.
type MsgSessionEphemeral struct{}

// MsgSessionExpired signals that the session could not be renewed and the
// user must log in again.
type MsgSessionExpired struct{}

// MsgLoggedOut signals that the session was cleared on request.
type MsgLoggedOut struct{}

// MsgAPICallOK signals that an API call succeeded.
type MsgAPICallOK struct{ What string }

// MsgAPICallFailed signals that an API call failed.
type MsgAPICallFailed struct{ Err error }

// MsgDone signals successful completion, carrying the session summary.
type MsgDone struct {
	Name      string
	Role      string
	Mode      string
	ExpiresIn time.Duration
}

// MsgFatal signals a fatal error that should terminate the flow.
type MsgFatal struct{ Err error }
