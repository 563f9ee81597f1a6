package users

import (
	"context"
	"fmt"

	"github.com/discotek/discotek-go/internal/rest"
)

// User is the backend user record. WalletBalance and Points are the two
// fields the checkout flow mutates.
type User struct {
	ID            string  `json:"id"`
	Name          string  `json:"nombre"`
	Email         string  `json:"email"`
	WalletBalance float64 `json:"saldo"`
	Points        int     `json:"puntos"`
}

// Client wraps the user endpoints.
type Client struct {
	rest *rest.Client
}

// NewClient builds a user client on the shared transport.
func NewClient(transport *rest.Client) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("rest client required")
	}
	return &Client{rest: transport}, nil
}

// Get fetches a user by id.
func (c *Client) Get(ctx context.Context, id string) (*User, error) {
	var user User
	if err := c.rest.Get(ctx, "GET /api/usuarios/{id}", "/api/usuarios/"+id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update replaces the user record and returns the persisted version.
// The backend exposes no partial patch: wallet and points changes go
// through this full update.
func (c *Client) Update(ctx context.Context, user *User) (*User, error) {
	var updated User
	if err := c.rest.Put(ctx, "PUT /api/usuarios/{id}", "/api/usuarios/"+user.ID, user, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
