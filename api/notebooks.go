package api

import (
	"context"
	"net/http"
	"net/url"
)

// Notebook is a personal collection of saved posts.
type Notebook struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PostCount int    `json:"post_count"`
}

// Notebooks lists the caller's notebooks.
func (c *Client) Notebooks(ctx context.Context) ([]Notebook, error) {
	var nbs []Notebook
	if err := c.do(ctx, http.MethodGet, "/api/notebooks", nil, nil, &nbs); err != nil {
		return nil, err
	}
	return nbs, nil
}

// CreateNotebook creates an empty notebook.
func (c *Client) CreateNotebook(ctx context.Context, name string) (*Notebook, error) {
	var nb Notebook
	err := c.do(ctx, http.MethodPost, "/api/notebooks", nil,
		map[string]string{"name": name}, &nb)
	if err != nil {
		return nil, err
	}
	return &nb, nil
}

// SavePost saves a post into a notebook.
func (c *Client) SavePost(ctx context.Context, notebookID, postID string) error {
	return c.do(ctx, http.MethodPost,
		"/api/notebooks/"+url.PathEscape(notebookID)+"/posts", nil,
		map[string]string{"post_id": postID}, nil)
}

// UnsavePost removes a post from a notebook.
func (c *Client) UnsavePost(ctx context.Context, notebookID, postID string) error {
	return c.do(ctx, http.MethodDelete,
		"/api/notebooks/"+url.PathEscape(notebookID)+"/posts/"+url.PathEscape(postID),
		nil, nil, nil)
}

// NotebookPosts lists the posts saved in a notebook.
func (c *Client) NotebookPosts(ctx context.Context, notebookID string) ([]Post, error) {
	var posts []Post
	err := c.do(ctx, http.MethodGet,
		"/api/notebooks/"+url.PathEscape(notebookID)+"/posts", nil, nil, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}
