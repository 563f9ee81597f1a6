package enums

// TicketStatus is the lifecycle state of an issued entry or reservation unit.
type TicketStatus string

const (
	TicketStatusActive TicketStatus = "activa"
	TicketStatusUsed   TicketStatus = "usada"
)

// String implements fmt.Stringer.
func (s TicketStatus) String() string {
	return string(s)
}
