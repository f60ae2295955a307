// Package api is the HTTP client for the Tastebook platform. Every request
// made through Client automatically carries a valid bearer credential (or
// none, if unauthenticated) and every response has already absorbed one
// authorization-retry cycle.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"

	"github.com/tastebook/tastebook-cli/session"
)

// Timeout configuration for different operations
const (
	authRequestTimeout = 10 * time.Second
	apiRequestTimeout  = 15 * time.Second
)

// Config configures a Client and the session subsystem it carries.
type Config struct {
	// BaseURL is the platform server, e.g. https://api.tastebook.example.
	BaseURL string

	// TokenFile backs the persistent storage area.
	TokenFile string

	// DeviceID identifies this install; sent with auth requests so the
	// server can bind device tokens to it.
	DeviceID string

	// HTTPClient overrides the underlying transport (tests). When nil a
	// TLS1.2+ keep-alive transport is used.
	HTTPClient *http.Client

	// OnSessionExpired runs (at most once per expired session) when the
	// session can no longer be renewed. The CLI prints a log-in-again
	// notice here; a web front end would redirect to its login page.
	OnSessionExpired func()

	// Clock overrides time.Now (tests).
	Clock func() time.Time
}

// Client is the configured HTTP surface exposed to the rest of the
// application, plus the typed resource wrappers hanging off it.
type Client struct {
	baseURL  string
	deviceID string
	http     *retry.Client
	session  *session.Manager
}

// New wires the full client: storage areas, session store and manager, the
// bare auth endpoint the manager refreshes through, and the retrying HTTP
// client the interceptors run on.
func New(cfg Config) (*Client, error) {
	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if cfg.TokenFile == "" {
		return nil, errors.New("api: token file is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				DisableKeepAlives:   false,
			},
		}
	}

	retryClient, err := retry.NewBackgroundClient(
		retry.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	store, err := session.NewStore(
		session.NewFileArea(cfg.TokenFile),
		session.NewMemoryArea(),
		storeOptions(cfg)...,
	)
	if err != nil {
		return nil, err
	}

	auth := &authEndpoint{
		baseURL:  baseURL,
		deviceID: cfg.DeviceID,
		http:     retryClient,
	}

	mgr, err := session.NewManager(auth, store, managerOptions(cfg)...)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:  baseURL,
		deviceID: cfg.DeviceID,
		http:     retryClient,
		session:  mgr,
	}, nil
}

func storeOptions(cfg Config) []session.StoreOption {
	if cfg.Clock == nil {
		return nil
	}
	return []session.StoreOption{session.WithStoreClock(cfg.Clock)}
}

func managerOptions(cfg Config) []session.ManagerOption {
	var opts []session.ManagerOption
	if cfg.Clock != nil {
		opts = append(opts, session.WithClock(cfg.Clock))
	}
	if cfg.OnSessionExpired != nil {
		opts = append(opts, session.WithSessionExpiredHook(cfg.OnSessionExpired))
	}
	return opts
}

func validateBaseURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// Session exposes the session manager (login, logout, profile access).
func (c *Client) Session() *session.Manager {
	return c.session
}

// Close releases the session manager's timer state.
func (c *Client) Close() {
	c.session.Close()
}

// APIError is a non-2xx platform response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// apiError decodes the platform's {"error": ..., "message": ...} shape,
// falling back to the raw body when the response isn't JSON.
func apiError(status int, body []byte) *APIError {
	var parsed struct {
		Code    string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil &&
		(parsed.Code != "" || parsed.Message != "") {
		return &APIError{Status: status, Code: parsed.Code, Message: parsed.Message}
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
}

// do runs one request through both interceptors: the bearer credential is
// attached up front (refreshing proactively if the stored token is already
// expired), and an authorization failure triggers exactly one
// refresh-and-retry of the identical request.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body, out any,
) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	// Request interceptor: consult expiry, refresh if needed, attach the
	// bearer credential. When no token is obtainable the request proceeds
	// unauthenticated; the server rejects it if the endpoint requires auth.
	var bearer string
	tok, err := c.session.Token(ctx)
	switch {
	case err == nil:
		bearer = tok.AccessToken
	case errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, session.ErrSessionExpired):
		// proceed unauthenticated
	default:
		return err
	}

	resp, respBody, err := c.send(ctx, method, path, query, payload, bearer)
	if err != nil {
		return err
	}

	// Response interceptor: a 401 gets one refresh-and-retry. The retried
	// response is final either way.
	if resp.StatusCode == http.StatusUnauthorized {
		newTok, refreshErr := c.session.Refresh(ctx)
		if refreshErr != nil {
			// Session already cleared and the expired hook fired.
			return apiError(resp.StatusCode, respBody)
		}

		resp, respBody, err = c.send(ctx, method, path, query, payload, newTok.AccessToken)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			// A freshly minted token was rejected: the session is
			// unrenewable, not merely stale.
			c.session.Invalidate()
			return apiError(resp.StatusCode, respBody)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, respBody)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// send builds and executes one attempt. The payload bytes are retained by
// the caller so a retry resubmits the identical request.
func (c *Client) send(
	ctx context.Context,
	method, path string,
	query url.Values,
	payload []byte,
	bearer string,
) (*http.Response, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, apiRequestTimeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	resp, err := c.http.DoWithContext(reqCtx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, respBody, nil
}
