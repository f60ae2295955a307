package api

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Notification is one entry in the user's notification feed (new follower,
// comment on a post, rating milestone, ...). The fan-out happens server-side.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	PostID    string    `json:"post_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifications lists the caller's notifications, optionally unread only.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}
	var ns []Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", q, nil, &ns); err != nil {
		return nil, err
	}
	return ns, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost,
		"/api/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, nil, nil)
}
