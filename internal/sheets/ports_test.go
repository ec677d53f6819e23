package sheets

import "testing"

func TestValuesPrependsHeader(t *testing.T) {
	got := Values([]LedgerRow{{Project: "Tower A", Vendor: "Acme", Item: "Wiring", Amount: 15000, ExpectedDate: "2024-06-30", Status: "Paid"}})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0][0] != "Project" || got[0][5] != "Status" {
		t.Fatalf("header = %v", got[0])
	}
	if got[1][3] != 15000.0 || got[1][5] != "Paid" {
		t.Fatalf("row = %v", got[1])
	}
}
