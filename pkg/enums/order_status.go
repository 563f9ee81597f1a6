package enums

import "fmt"

// OrderStatus tracks whether an order is still acting as a cart or has
// been purchased. There is no cancelled status: deleting the order row
// is how a cart is abandoned.
type OrderStatus string

const (
	OrderStatusInProgress OrderStatus = "EN_PROCESO"
	OrderStatusCompleted  OrderStatus = "COMPLETADO"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusInProgress,
	OrderStatusCompleted,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
