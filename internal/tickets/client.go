package tickets

import (
	"context"
	"fmt"

	"github.com/discotek/discotek-go/internal/rest"
	"github.com/discotek/discotek-go/pkg/enums"
)

// Ticket is one physical entry unit. A cart line with quantity N becomes
// N ticket rows at checkout.
type Ticket struct {
	ID      string             `json:"id,omitempty"`
	UserID  string             `json:"idUsuario"`
	EventID string             `json:"idEvento"`
	SlotID  string             `json:"idFranja"`
	Status  enums.TicketStatus `json:"estado"`
	Price   float64            `json:"precio"`
}

// Reservation is one VIP bottle-service reservation, created per ticket
// rather than per line. Total includes the ticket price plus the line's
// bottle costs.
type Reservation struct {
	ID       string  `json:"id,omitempty"`
	TicketID string  `json:"idEntrada"`
	ZoneID   string  `json:"idZonaVip"`
	Total    float64 `json:"precioTotal"`
}

// BottleDetail records one bottle type selected for a reservation.
type BottleDetail struct {
	ID            string  `json:"id,omitempty"`
	ReservationID string  `json:"idReserva"`
	BottleID      string  `json:"idBotella"`
	Quantity      int     `json:"cantidad"`
	UnitPrice     float64 `json:"precio"`
}

// Client wraps the ticket, reservation and bottle-detail create endpoints.
type Client struct {
	rest *rest.Client
}

// NewClient builds a ticket client on the shared transport.
func NewClient(transport *rest.Client) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("rest client required")
	}
	return &Client{rest: transport}, nil
}

// CreateTicket persists one entry unit.
func (c *Client) CreateTicket(ctx context.Context, ticket *Ticket) (*Ticket, error) {
	var created Ticket
	if err := c.rest.Post(ctx, "POST /api/entradas", "/api/entradas", ticket, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateReservation persists one VIP reservation bound to a ticket.
func (c *Client) CreateReservation(ctx context.Context, reservation *Reservation) (*Reservation, error) {
	var created Reservation
	if err := c.rest.Post(ctx, "POST /api/reservas", "/api/reservas", reservation, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateBottleDetail persists one bottle selection for a reservation.
func (c *Client) CreateBottleDetail(ctx context.Context, detail *BottleDetail) (*BottleDetail, error) {
	var created BottleDetail
	path := "/api/reservas/" + detail.ReservationID + "/botellas"
	if err := c.rest.Post(ctx, "POST /api/reservas/{id}/botellas", path, detail, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
