package api

import (
	"context"
	"net/http"
)

// Allergies returns the caller's tracked allergens; the server uses them to
// flag recipes whose ingredients match.
func (c *Client) Allergies(ctx context.Context) ([]string, error) {
	var allergens []string
	if err := c.do(ctx, http.MethodGet, "/api/users/me/allergies", nil, nil, &allergens); err != nil {
		return nil, err
	}
	return allergens, nil
}

// SetAllergies replaces the caller's allergen list.
func (c *Client) SetAllergies(ctx context.Context, allergens []string) error {
	return c.do(ctx, http.MethodPut, "/api/users/me/allergies", nil,
		map[string][]string{"allergens": allergens}, nil)
}
