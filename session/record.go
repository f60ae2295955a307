package session

import (
	"strconv"
	"time"
)

// ExpiryBuffer is subtracted from the server-reported token lifetime so that
// renewal happens before the server would actually reject the token.
const ExpiryBuffer = 5 * time.Minute

// Mode selects which storage area holds the session. It is chosen once at
// login time ("remember me") instead of being inferred by probing storage.
type Mode int

const (
	// ModePersistent stores the session in the area that survives restarts.
	ModePersistent Mode = iota
	// ModeSessionOnly stores the session in the area cleared at process end.
	ModeSessionOnly
)

func (m Mode) String() string {
	if m == ModeSessionOnly {
		return "session-only"
	}
	return "persistent"
}

// Profile is the denormalized snapshot of user-facing fields kept alongside
// the tokens so the UI never needs a round trip for them.
type Profile struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Theme    string `json:"theme,omitempty"`
	Language string `json:"language,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Tokens is the credential set committed by Store.Write. ExpiresIn is the
// server-reported lifetime in seconds; the stored expiry is computed from it.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Record is the decoded session as read back from a storage area.
type Record struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // zero when no expiry was stored
	Profile      *Profile  // nil when absent or unparseable
	UserID       string
	Mode         Mode
}

// Expired reports whether the access token must be treated as unusable.
// A record with no stored expiry is trusted until the server rejects it.
func (r *Record) Expired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(r.ExpiresAt)
}

// expiryAt computes the stored expiry for a token issued at now:
// issue time plus lifetime minus the renewal buffer.
func expiryAt(now time.Time, expiresIn int) time.Time {
	return now.Add(time.Duration(expiresIn)*time.Second - ExpiryBuffer)
}

func formatExpiry(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// parseExpiry decodes a stringified epoch-millisecond timestamp. Malformed
// values read as "no expiry stored" rather than an error.
func parseExpiry(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
