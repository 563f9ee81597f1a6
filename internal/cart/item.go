package cart

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/discotek/discotek-go/internal/orders"
	"github.com/discotek/discotek-go/pkg/enums"
	pkgerrors "github.com/discotek/discotek-go/pkg/errors"
	"github.com/discotek/discotek-go/pkg/types"
	"github.com/google/uuid"
)

// LineItem is one logical cart entry: N identical units of a ticket or
// VIP reservation configuration. ID is a locally generated opaque id,
// never the server's line id; LineID is the persisted order-line this
// item maps to once synchronized, and is excluded from the serialized
// payload to avoid self-reference.
type LineItem struct {
	ID         string                  `json:"idItem"`
	Kind       enums.ItemKind          `json:"tipo"`
	EventID    string                  `json:"idEvento"`
	SlotID     string                  `json:"idFranja"`
	ZoneID     string                  `json:"idZonaVip,omitempty"`
	Bottles    []types.BottleSelection `json:"botellas,omitempty"`
	UnitPrice  float64                 `json:"precioBase"`
	Multiplier float64                 `json:"multiplicador"`
	Quantity   int                     `json:"cantidad"`

	LineID string `json:"-"`
}

func newItemID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("item-%d-%s", now.UnixMilli(), random)
}

// SameLine is the Matching Rule: two items are the same logical line iff
// kind, event and time slot match, plus the VIP zone for reservation
// lines. Quantity and bottle selections are deliberately excluded, so
// changing bottles on an otherwise identical VIP line updates the
// existing line instead of creating a new one.
func SameLine(a, b LineItem) bool {
	if a.Kind != b.Kind || a.EventID != b.EventID || a.SlotID != b.SlotID {
		return false
	}
	if a.Kind == enums.ItemKindVIPReservation && a.ZoneID != b.ZoneID {
		return false
	}
	return true
}

// UnitTotal is the price of one unit: base price times the slot multiplier.
func (i LineItem) UnitTotal() float64 {
	return i.UnitPrice * i.Multiplier
}

// Subtotal is the line's contribution to the cart total: units plus,
// for VIP lines, the bottle selections (charged once per line).
func (i LineItem) Subtotal() float64 {
	total := i.UnitTotal() * float64(i.Quantity)
	if i.Kind == enums.ItemKindVIPReservation {
		total += types.BottlesCost(i.Bottles)
	}
	return total
}

func encodePayload(item LineItem) (string, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode line payload")
	}
	return string(raw), nil
}

func decodeLine(line orders.Line) (LineItem, error) {
	var item LineItem
	if err := json.Unmarshal([]byte(line.Payload), &item); err != nil {
		return LineItem{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode line payload")
	}
	if !item.Kind.IsValid() {
		return LineItem{}, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("line %s payload has unknown kind %q", line.ID, item.Kind))
	}
	item.LineID = line.ID
	return item, nil
}
