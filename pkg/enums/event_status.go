package enums

// EventStatus reflects whether a club event can still sell entries.
type EventStatus string

const (
	EventStatusActive    EventStatus = "activo"
	EventStatusCancelled EventStatus = "cancelado"
	EventStatusFinished  EventStatus = "finalizado"
)

// String implements fmt.Stringer.
func (s EventStatus) String() string {
	return string(s)
}
