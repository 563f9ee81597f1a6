package orders

import (
	"context"
	"fmt"

	"github.com/discotek/discotek-go/internal/rest"
	"github.com/discotek/discotek-go/pkg/enums"
)

// Client wraps the order and order-line endpoints. It is a thin typed
// layer: the cart orchestrator owns all reconciliation logic.
type Client struct {
	rest *rest.Client
}

// NewClient builds an order client on the shared transport.
func NewClient(transport *rest.Client) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("rest client required")
	}
	return &Client{rest: transport}, nil
}

// ListByUser returns every order owned by the user, any status.
func (c *Client) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	var list []Order
	if err := c.rest.Get(ctx, "GET /api/usuarios/{id}/pedidos", "/api/usuarios/"+userID+"/pedidos", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Create persists a new order and returns it with its server id.
func (c *Client) Create(ctx context.Context, order *Order) (*Order, error) {
	var created Order
	if err := c.rest.Post(ctx, "POST /api/pedidos", "/api/pedidos", order, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the order header.
func (c *Client) Update(ctx context.Context, order *Order) (*Order, error) {
	var updated Order
	if err := c.rest.Put(ctx, "PUT /api/pedidos/{id}", "/api/pedidos/"+order.ID, order, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the order row. The backend cascades line removal.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.rest.Delete(ctx, "DELETE /api/pedidos/{id}", "/api/pedidos/"+id)
}

// Complete flips the order to COMPLETADO and returns the final record.
func (c *Client) Complete(ctx context.Context, id string) (*Order, error) {
	var completed Order
	if err := c.rest.Put(ctx, "PUT /api/pedidos/{id}/completar", "/api/pedidos/"+id+"/completar", struct{}{}, &completed); err != nil {
		return nil, err
	}
	if completed.Status != enums.OrderStatusCompleted {
		return nil, fmt.Errorf("order %s reported status %s after completion", id, completed.Status)
	}
	return &completed, nil
}

// ListLines returns the persisted lines of an order.
func (c *Client) ListLines(ctx context.Context, orderID string) ([]Line, error) {
	var list []Line
	if err := c.rest.Get(ctx, "GET /api/pedidos/{id}/lineas", "/api/pedidos/"+orderID+"/lineas", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateLine persists a new order line and returns it with its id.
func (c *Client) CreateLine(ctx context.Context, line *Line) (*Line, error) {
	var created Line
	if err := c.rest.Post(ctx, "POST /api/lineas", "/api/lineas", line, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateLine replaces an order line.
func (c *Client) UpdateLine(ctx context.Context, line *Line) (*Line, error) {
	var updated Line
	if err := c.rest.Put(ctx, "PUT /api/lineas/{id}", "/api/lineas/"+line.ID, line, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteLine removes one order line.
func (c *Client) DeleteLine(ctx context.Context, id string) error {
	return c.rest.Delete(ctx, "DELETE /api/lineas/{id}", "/api/lineas/"+id)
}
