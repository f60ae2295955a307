package session

import (
	"encoding/json"
	"errors"
	"time"
)

// Store is the single source of truth for the active session. It fronts two
// storage areas: a persistent one that survives restarts and a session-only
// one cleared at process end. Exactly one of them holds the authoritative
// record; when both somehow carry a token, the persistent one wins.
type Store struct {
	persistent Area
	session    Area
	now        func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreClock overrides the clock used for expiry computation
// (primarily for testing).
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store over the given persistent and session-only areas.
func NewStore(persistent, session Area, options ...StoreOption) (*Store, error) {
	if persistent == nil {
		return nil, errors.New("session: persistent area is required")
	}
	if session == nil {
		return nil, errors.New("session: session-only area is required")
	}
	s := &Store{
		persistent: persistent,
		session:    session,
		now:        time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Read returns the active session record, checking the persistent area first
// and then the session-only area. It returns nil when neither holds a token.
func (s *Store) Read() (*Record, error) {
	pe, err := s.persistent.Load()
	if err != nil {
		return nil, err
	}
	if pe.AccessToken != "" {
		return decodeRecord(pe, ModePersistent), nil
	}

	se, err := s.session.Load()
	if err != nil {
		return nil, err
	}
	if se.AccessToken != "" {
		return decodeRecord(se, ModeSessionOnly), nil
	}

	return nil, nil
}

// Write commits the token set into the area selected by mode. The stored
// expiry is always recomputed alongside the access token; the two are never
// updated independently. When profile is nil the previously stored profile
// and user-id marker are preserved (token renewal does not touch them), and
// an empty refresh token likewise keeps the existing one.
//
// The computed expiry is returned so callers can arrange proactive renewal.
func (s *Store) Write(t Tokens, profile *Profile, mode Mode) (time.Time, error) {
	area := s.area(mode)

	e, err := area.Load()
	if err != nil {
		return time.Time{}, err
	}

	expiry := expiryAt(s.now(), t.ExpiresIn)
	e.AccessToken = t.AccessToken
	e.ExpiresAt = formatExpiry(expiry)
	if t.RefreshToken != "" {
		e.RefreshToken = t.RefreshToken
	}
	if profile != nil {
		raw, err := json.Marshal(profile)
		if err != nil {
			return time.Time{}, err
		}
		e.Profile = string(raw)
		e.UserID = profile.ID
	}

	if err := area.Store(e); err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

// Clear removes the session from both areas unconditionally, defending
// against leftover state from a persistence-mode switch. It is idempotent.
func (s *Store) Clear() error {
	return errors.Join(s.persistent.Clear(), s.session.Clear())
}

// IsAuthenticated reports whether the client currently counts as logged in:
// either a non-expired access token exists, or no token exists but the
// session-only area carries a bare user-id marker (the cookie-session mode
// where the client holds no bearer token at all).
func (s *Store) IsAuthenticated() bool {
	rec, err := s.Read()
	if err != nil {
		return false
	}
	if rec != nil {
		return !rec.Expired(s.now())
	}

	se, err := s.session.Load()
	if err != nil {
		return false
	}
	return se.UserID != ""
}

// MergeProfile merges the given fields into the stored profile snapshot,
// in whichever area currently holds it. Unknown fields in the stored JSON
// are preserved. Returns the merged profile.
func (s *Store) MergeProfile(fields map[string]any) (*Profile, error) {
	mode := ModeSessionOnly
	e, err := s.persistent.Load()
	if err != nil {
		return nil, err
	}
	if e.AccessToken != "" || e.Profile != "" {
		mode = ModePersistent
	} else {
		if e, err = s.session.Load(); err != nil {
			return nil, err
		}
	}

	// Merge at the map level so fields this client version doesn't know
	// about survive the round trip.
	current := map[string]any{}
	if e.Profile != "" {
		if err := json.Unmarshal([]byte(e.Profile), &current); err != nil {
			current = map[string]any{}
		}
	}
	for k, v := range fields {
		current[k] = v
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	e.Profile = string(raw)
	if id, ok := current["id"].(string); ok && id != "" {
		e.UserID = id
	}
	if err := s.area(mode).Store(e); err != nil {
		return nil, err
	}

	var merged Profile
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (s *Store) area(mode Mode) Area {
	if mode == ModeSessionOnly {
		return s.session
	}
	return s.persistent
}

// decodeRecord turns raw area entries into a Record. Malformed stored
// values (expiry, profile JSON) decode as absent, never as an error.
func decodeRecord(e Entries, mode Mode) *Record {
	rec := &Record{
		AccessToken:  e.AccessToken,
		RefreshToken: e.RefreshToken,
		ExpiresAt:    parseExpiry(e.ExpiresAt),
		UserID:       e.UserID,
		Mode:         mode,
	}
	if e.Profile != "" {
		var p Profile
		if err := json.Unmarshal([]byte(e.Profile), &p); err == nil {
			rec.Profile = &p
		}
	}
	return rec
}
