package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Post is a published recipe.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	Ingredients []string  `json:"ingredients"`
	Steps       []string  `json:"steps"`
	Author      Author    `json:"author"`
	Rating      float64   `json:"rating"`
	RatingCount int       `json:"rating_count"`
	CommentCnt  int       `json:"comment_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Author is the post-embedded subset of a user.
type Author struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Comment is one comment on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPost is the input for creating a recipe post.
type NewPost struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url,omitempty"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
}

// Feed returns one page of the recipe feed (posts from followed users plus
// ranked suggestions; the ranking lives server-side).
func (c *Client) Feed(ctx context.Context, page int) ([]Post, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	var posts []Post
	if err := c.do(ctx, http.MethodGet, "/api/posts/feed", q, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Post returns a single recipe post.
func (c *Client) Post(ctx context.Context, id string) (*Post, error) {
	var p Post
	if err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost publishes a new recipe.
func (c *Client) CreatePost(ctx context.Context, in NewPost) (*Post, error) {
	var p Post
	if err := c.do(ctx, http.MethodPost, "/api/posts", nil, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RatePost submits a 1-5 star rating; the aggregate comes back server-side.
func (c *Client) RatePost(ctx context.Context, id string, stars int) (*Post, error) {
	if stars < 1 || stars > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5, got %d", stars)
	}
	var p Post
	err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(id)+"/ratings", nil,
		map[string]int{"stars": stars}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Comments returns the comments on a post.
func (c *Client) Comments(ctx context.Context, postID string) ([]Comment, error) {
	var comments []Comment
	err := c.do(ctx, http.MethodGet,
		"/api/posts/"+url.PathEscape(postID)+"/comments", nil, nil, &comments)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// AddComment posts a comment.
func (c *Client) AddComment(ctx context.Context, postID, text string) (*Comment, error) {
	var cm Comment
	err := c.do(ctx, http.MethodPost,
		"/api/posts/"+url.PathEscape(postID)+"/comments", nil,
		map[string]string{"text": text}, &cm)
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

// SearchPosts searches recipes by free text.
func (c *Client) SearchPosts(ctx context.Context, query string) ([]Post, error) {
	q := url.Values{}
	q.Set("q", query)
	var posts []Post
	if err := c.do(ctx, http.MethodGet, "/api/posts/search", q, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
