package enums

import "testing"

func TestParseItemKind(t *testing.T) {
	kind, err := ParseItemKind("RESERVA_VIP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != ItemKindVIPReservation {
		t.Fatalf("expected VIP kind, got %s", kind)
	}
	if _, err := ParseItemKind("entrada"); err == nil {
		t.Fatal("lowercase value should not parse")
	}
	if ItemKind("BARRA").IsValid() {
		t.Fatal("unknown kind should be invalid")
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("EN_PROCESO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != OrderStatusInProgress {
		t.Fatalf("expected in-progress, got %s", status)
	}
	if _, err := ParseOrderStatus("CANCELADO"); err == nil {
		t.Fatal("there is no cancelled order status")
	}
}
