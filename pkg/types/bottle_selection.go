package types

// BottleSelection is one bottle choice attached to a VIP reservation line.
type BottleSelection struct {
	BottleID  string  `json:"idBotella"`
	Name      string  `json:"nombre,omitempty"`
	UnitPrice float64 `json:"precio"`
	Quantity  int     `json:"cantidad"`
}

// Cost returns the total cost of this selection.
func (b BottleSelection) Cost() float64 {
	return b.UnitPrice * float64(b.Quantity)
}

// BottlesCost sums the cost of every selection.
func BottlesCost(selections []BottleSelection) float64 {
	var total float64
	for _, sel := range selections {
		total += sel.Cost()
	}
	return total
}
