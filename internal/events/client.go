package events

import (
	"context"
	"fmt"
	"time"

	"github.com/discotek/discotek-go/internal/rest"
	"github.com/discotek/discotek-go/pkg/enums"
)

// AssumedDuration is how long an event is assumed to run after its
// scheduled start. The backend stores no end time, so availability
// checks treat start + 7h as the cutoff.
const AssumedDuration = 7 * time.Hour

// Event is the subset of the backend event record the cart needs for
// availability re-verification.
type Event struct {
	ID       string            `json:"id"`
	Name     string            `json:"nombre"`
	Status   enums.EventStatus `json:"estado"`
	VenueID  string            `json:"idDiscoteca"`
	StartsAt time.Time         `json:"fechaInicio"`
}

// Available reports whether entries for the event can still be sold at
// the given instant.
func (e Event) Available(now time.Time) bool {
	if e.Status != enums.EventStatusActive {
		return false
	}
	return now.Before(e.StartsAt.Add(AssumedDuration))
}

// Client wraps the event read endpoint.
type Client struct {
	rest *rest.Client
}

// NewClient builds an event client on the shared transport.
func NewClient(transport *rest.Client) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("rest client required")
	}
	return &Client{rest: transport}, nil
}

// Get fetches an event by id.
func (c *Client) Get(ctx context.Context, id string) (*Event, error) {
	var event Event
	if err := c.rest.Get(ctx, "GET /api/eventos/{id}", "/api/eventos/"+id, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
