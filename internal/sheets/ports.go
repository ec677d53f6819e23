package sheets

import (
	"context"
)

// LedgerRow is one payment as it appears in the exported ledger.
type LedgerRow struct {
	Project      string
	Vendor       string
	Item         string
	Amount       float64
	ExpectedDate string
	Status       string
}

// Header is the first row written above the ledger rows.
var Header = []string{"Project", "Vendor", "Item", "Amount", "Expected date", "Status"}

// Ports for outbound adapters.
type (
	// LedgerWriter replaces the exported ledger with rows and returns a
	// reference to the written range.
	LedgerWriter interface {
		WriteLedger(ctx context.Context, rows []LedgerRow) (rangeRef string, err error)
	}
)

// Values lays rows out below the header in sheet order.
func Values(rows []LedgerRow) [][]any {
	out := make([][]any, 0, len(rows)+1)
	head := make([]any, len(Header))
	for i, h := range Header {
		head[i] = h
	}
	out = append(out, head)
	for _, r := range rows {
		out = append(out, []any{r.Project, r.Vendor, r.Item, r.Amount, r.ExpectedDate, r.Status})
	}
	return out
}
