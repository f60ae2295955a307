package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tastebook/tastebook-cli/session"
)

// User is a platform user as seen by others.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Bio       string `json:"bio"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
	PostCount int    `json:"post_count"`
}

// User returns another user's public profile.
func (c *Client) User(ctx context.Context, id string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserData patches the caller's own profile (theme, language, avatar,
// name, ...) and merges the confirmed fields into the local session
// snapshot, so the UI sees them without a round trip.
func (c *Client) UpdateUserData(
	ctx context.Context,
	fields map[string]any,
) (*session.Profile, error) {
	if err := c.do(ctx, http.MethodPatch, "/api/users/me", nil, fields, nil); err != nil {
		return nil, err
	}
	return c.session.UpdateUserData(fields)
}

// Follow subscribes the caller to a user's posts.
func (c *Client) Follow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost,
		"/api/users/"+url.PathEscape(userID)+"/follow", nil, nil, nil)
}

// Unfollow removes a follow.
func (c *Client) Unfollow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete,
		"/api/users/"+url.PathEscape(userID)+"/follow", nil, nil, nil)
}

// Followers lists the users following userID.
func (c *Client) Followers(ctx context.Context, userID string) ([]User, error) {
	var users []User
	err := c.do(ctx, http.MethodGet,
		"/api/users/"+url.PathEscape(userID)+"/followers", nil, nil, &users)
	if err != nil {
		return nil, err
	}
	return users, nil
}
