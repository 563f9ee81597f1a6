package orders

import (
	"time"

	"github.com/discotek/discotek-go/pkg/enums"
)

// Order is the server-owned aggregate header. While EN_PROCESO it backs
// the cart; COMPLETADO is terminal.
type Order struct {
	ID        string            `json:"id,omitempty"`
	UserID    string            `json:"idUsuario"`
	Status    enums.OrderStatus `json:"estado"`
	Total     float64           `json:"total"`
	CreatedAt time.Time         `json:"fecha"`
}

// Line is one persisted order line. Payload carries the serialized cart
// item and is the sole source of truth for cart reconstruction; Quantity
// and UnitPrice are denormalized copies for backend reporting.
type Line struct {
	ID        string  `json:"id,omitempty"`
	OrderID   string  `json:"idPedido"`
	Quantity  int     `json:"cantidad"`
	UnitPrice float64 `json:"precioUnitario"`
	Payload   string  `json:"contenido"`
}
