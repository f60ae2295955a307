package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	retry "github.com/appleboy/go-httpretry"

	"github.com/tastebook/tastebook-cli/session"
)

// ErrInvalidCredentials indicates a rejected email/password pair.
var ErrInvalidCredentials = errors.New("invalid email or password")

// authEndpoint implements session.AuthAPI against the platform's auth
// routes. It deliberately runs on the bare retry client, not the
// intercepted one: refresh calls must never themselves trigger a refresh.
type authEndpoint struct {
	baseURL  string
	deviceID string
	http     *retry.Client
}

type grantResponse struct {
	Token        string           `json:"token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int              `json:"expires_in"`
	User         *session.Profile `json:"user"`
}

func (a *authEndpoint) Login(
	ctx context.Context,
	creds session.Credentials,
) (*session.Grant, error) {
	g, err := a.grant(ctx, "/api/auth/login", map[string]any{
		"email":       creds.Email,
		"password":    creds.Password,
		"remember_me": creds.Remember,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return g, nil
}

func (a *authEndpoint) LoginWithDeviceToken(
	ctx context.Context,
	deviceToken string,
) (*session.Grant, error) {
	return a.grant(ctx, "/api/auth/device-login", map[string]any{
		"device_token": deviceToken,
	})
}

func (a *authEndpoint) Refresh(
	ctx context.Context,
	refreshToken string,
) (*session.Grant, error) {
	return a.grant(ctx, "/api/auth/refresh", map[string]any{
		"refresh_token": refreshToken,
	})
}

// Logout is a best-effort notification; the caller clears local state
// whether or not the server heard it.
func (a *authEndpoint) Logout(ctx context.Context, accessToken string) error {
	reqCtx, cancel := context.WithTimeout(ctx, authRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		reqCtx, http.MethodPost, a.baseURL+"/api/auth/logout", nil,
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.http.DoWithContext(reqCtx, req)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}
	return nil
}

// grant posts a token-minting request and decodes the common grant shape.
func (a *authEndpoint) grant(
	ctx context.Context,
	path string,
	body map[string]any,
) (*session.Grant, error) {
	reqCtx, cancel := context.WithTimeout(ctx, authRequestTimeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		reqCtx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.deviceID != "" {
		req.Header.Set("X-Device-ID", a.deviceID)
	}

	resp, err := a.http.DoWithContext(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, respBody)
	}

	var gr grantResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if err := validateGrant(gr); err != nil {
		return nil, fmt.Errorf("invalid token response: %w", err)
	}

	return &session.Grant{
		AccessToken:  gr.Token,
		RefreshToken: gr.RefreshToken,
		ExpiresIn:    gr.ExpiresIn,
		Profile:      gr.User,
	}, nil
}

// validateGrant rejects token responses the session layer must never store.
func validateGrant(gr grantResponse) error {
	if gr.Token == "" {
		return errors.New("token is empty")
	}
	if len(gr.Token) < 10 {
		return fmt.Errorf("token is too short (length: %d)", len(gr.Token))
	}
	if gr.ExpiresIn <= 0 {
		return fmt.Errorf("expires_in must be positive, got: %d", gr.ExpiresIn)
	}
	return nil
}
