package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ErrNotAuthenticated indicates that no session exists at all.
var ErrNotAuthenticated = errors.New("not logged in")

// ErrSessionExpired indicates that the session can no longer be renewed:
// the access token is unusable and no refresh token is available (or the
// refresh was rejected). The local session has already been cleared.
var ErrSessionExpired = errors.New("session expired")

// Credentials is the login input. Remember selects the persistent storage
// area so the session survives restarts.
type Credentials struct {
	Email    string
	Password string
	Remember bool
}

// Grant is what the server returns when it mints tokens: on login it also
// carries the user profile; on refresh only the token fields are set, and
// RefreshToken is empty unless the server rotates it.
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	Profile      *Profile
}

// AuthAPI is the server-side collaborator the Manager drives. It is an
// interface so the HTTP implementation can live next to the intercepted
// client without a dependency cycle, and so tests can fake the network.
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (*Grant, error)
	LoginWithDeviceToken(ctx context.Context, deviceToken string) (*Grant, error)
	Refresh(ctx context.Context, refreshToken string) (*Grant, error)
	Logout(ctx context.Context, accessToken string) error
}

// Manager owns the session lifecycle: login, proactive renewal, single-flight
// refresh, and teardown. It is an explicitly constructed object with its own
// timer state; create one per process (or per test) and Close it when done.
type Manager struct {
	api   AuthAPI
	store *Store
	sched *renewScheduler
	group singleflight.Group
	now   func() time.Time

	// onExpired runs when the session becomes unrenewable. notified
	// guards it to at most one invocation per session generation, so a
	// burst of failing requests cannot trigger it repeatedly.
	onExpired func()
	notified  atomic.Bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the manager's clock (primarily for testing).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithSessionExpiredHook sets the callback invoked when the session is
// cleared because it could not be renewed. The CLI uses it to tell the user
// to log in again; it fires at most once per expired session.
func WithSessionExpiredHook(fn func()) ManagerOption {
	return func(m *Manager) {
		m.onExpired = fn
	}
}

// NewManager creates a Manager over the given auth endpoint and store.
func NewManager(api AuthAPI, store *Store, options ...ManagerOption) (*Manager, error) {
	if api == nil {
		return nil, errors.New("session: auth API is required")
	}
	if store == nil {
		return nil, errors.New("session: store is required")
	}

	m := &Manager{
		api:   api,
		store: store,
		now:   time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	m.sched = newRenewScheduler(m.now)
	return m, nil
}

// Close cancels any pending renewal timer. The stored session is untouched.
func (m *Manager) Close() {
	m.sched.Cancel()
}

// Login exchanges credentials for a session. Any previous session is cleared
// from both areas first so a persistence-mode switch leaves no stale state.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*Profile, error) {
	g, err := m.api.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	mode := ModeSessionOnly
	if creds.Remember {
		mode = ModePersistent
	}
	if err := m.store.Clear(); err != nil {
		return nil, err
	}
	if err := m.commit(g, mode); err != nil {
		return nil, err
	}
	return g.Profile, nil
}

// Resume re-authenticates with a long-lived device token, the remembered
// login mode that needs no password. Device tokens imply a remembered
// install, so the session always lands in the persistent area.
func (m *Manager) Resume(ctx context.Context, deviceToken string) (*Profile, error) {
	g, err := m.api.LoginWithDeviceToken(ctx, deviceToken)
	if err != nil {
		return nil, err
	}
	if err := m.store.Clear(); err != nil {
		return nil, err
	}
	if err := m.commit(g, ModePersistent); err != nil {
		return nil, err
	}
	return g.Profile, nil
}

// Logout tells the server to invalidate the token (best effort) and clears
// the local session regardless of whether that call succeeds.
func (m *Manager) Logout(ctx context.Context) error {
	if rec, err := m.store.Read(); err == nil && rec != nil && rec.AccessToken != "" {
		_ = m.api.Logout(ctx, rec.AccessToken)
	}
	m.sched.Cancel()
	return m.store.Clear()
}

// Token returns a usable bearer token, refreshing first when the stored one
// is expired. ErrNotAuthenticated means no session exists and the caller
// should proceed unauthenticated; ErrSessionExpired means the session was
// just torn down.
func (m *Manager) Token(ctx context.Context) (*oauth2.Token, error) {
	rec, err := m.store.Read()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotAuthenticated
	}
	if !rec.Expired(m.now()) {
		return bearer(rec.AccessToken, rec.ExpiresAt), nil
	}
	if rec.RefreshToken == "" {
		// Valid only for the token's lifetime; expiry forces logout.
		m.expire()
		return nil, ErrSessionExpired
	}
	return m.Refresh(ctx)
}

// TokenSource adapts the Manager to oauth2.TokenSource for callers that
// integrate with the oauth2 ecosystem.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	return ts.m.Token(ts.ctx)
}

// Refresh exchanges the stored refresh token for a new access token. At most
// one network call is in flight at a time: concurrent callers share the
// outcome of the in-flight exchange instead of issuing duplicates, which
// matters when the server rotates refresh tokens on use (every duplicate
// call after the first would fail and log the user out).
//
// On failure the session is cleared and the expired hook fires.
func (m *Manager) Refresh(ctx context.Context) (*oauth2.Token, error) {
	v, err, _ := m.group.Do("refresh", func() (any, error) {
		rec, err := m.store.Read()
		if err != nil {
			return nil, err
		}
		if rec == nil || rec.RefreshToken == "" {
			m.expire()
			return nil, ErrSessionExpired
		}

		g, err := m.api.Refresh(ctx, rec.RefreshToken)
		if err != nil {
			m.expire()
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}

		// Rotation vs fixed mode: when the server returns no refresh
		// token the stored one is preserved by Store.Write.
		expiry, err := m.store.Write(tokensOf(g), g.Profile, rec.Mode)
		if err != nil {
			return nil, err
		}
		m.notified.Store(false)
		m.scheduleRenewal(expiry)
		return bearer(g.AccessToken, expiry), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

// Invalidate tears the session down as unrenewable: both areas cleared, the
// renewal timer cancelled, and the expired hook fired (once). Used when the
// server keeps rejecting a token that was just refreshed.
func (m *Manager) Invalidate() {
	m.expire()
}

// IsAuthenticated reports whether the client currently counts as logged in.
func (m *Manager) IsAuthenticated() bool {
	return m.store.IsAuthenticated()
}

// Mode reports which storage area holds the active session; ok is false
// when no session exists.
func (m *Manager) Mode() (Mode, bool) {
	rec, err := m.store.Read()
	if err != nil || rec == nil {
		return ModePersistent, false
	}
	return rec.Mode, true
}

// Profile returns the stored profile snapshot, if any.
func (m *Manager) Profile() *Profile {
	rec, err := m.store.Read()
	if err != nil || rec == nil {
		return nil
	}
	return rec.Profile
}

// UpdateUserData merges profile fields (theme, language, avatar, ...) into
// the stored snapshot, in whichever area currently holds it.
func (m *Manager) UpdateUserData(fields map[string]any) (*Profile, error) {
	return m.store.MergeProfile(fields)
}

// commit stores a fresh grant and arranges proactive renewal at its expiry.
func (m *Manager) commit(g *Grant, mode Mode) error {
	expiry, err := m.store.Write(tokensOf(g), g.Profile, mode)
	if err != nil {
		return err
	}
	m.notified.Store(false)
	m.scheduleRenewal(expiry)
	return nil
}

func (m *Manager) scheduleRenewal(expiry time.Time) {
	if !expiry.After(m.now()) {
		// Already past the renewal point; the reactive 401 path covers it.
		return
	}
	m.sched.Schedule(expiry, func() {
		// The reactive 401 path remains as a backstop if this fails.
		_, _ = m.Refresh(context.Background())
	})
}

func (m *Manager) expire() {
	m.sched.Cancel()
	_ = m.store.Clear()
	if m.notified.CompareAndSwap(false, true) && m.onExpired != nil {
		m.onExpired()
	}
}

func tokensOf(g *Grant) Tokens {
	return Tokens{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		ExpiresIn:    g.ExpiresIn,
	}
}

func bearer(token string, expiry time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}
}
