package core

import "time"

// UpcomingLimit is the number of outstanding payments listed on the overview.
const UpcomingLimit = 5

// PaidPeriod selects which paid payments feed Summary.TotalPaid.
type PaidPeriod string

const (
	// PaidAllTime sums every paid payment regardless of date.
	PaidAllTime PaidPeriod = "all-time"
	// PaidThisMonth sums paid payments last updated in the current calendar month.
	PaidThisMonth PaidPeriod = "month"
)

func (p PaidPeriod) IsValid() bool {
	return p == PaidAllTime || p == PaidThisMonth
}

// Label is the caption shown next to the paid total.
func (p PaidPeriod) Label() string {
	if p == PaidThisMonth {
		return "Paid this month"
	}
	return "Paid (all time)"
}

// Summary is the dashboard view of a payment collection.
type Summary struct {
	TotalOutstanding float64
	TotalPaid        float64
	OutstandingCount int
	PaidCount        int
	Period           PaidPeriod
	// Upcoming holds the first outstanding payments in the order they were
	// given, which is the collection's delivery order.
	Upcoming []Payment
}

// Summarize derives dashboard totals from payments. It does not reorder.
func Summarize(payments []Payment, now time.Time, period PaidPeriod) Summary {
	if !period.IsValid() {
		period = PaidAllTime
	}
	s := Summary{Period: period, Upcoming: []Payment{}}
	for _, p := range payments {
		amount := CoerceAmount(p.Amount)
		if p.IsOutstanding() {
			s.TotalOutstanding += amount
			s.OutstandingCount++
			if len(s.Upcoming) < UpcomingLimit {
				s.Upcoming = append(s.Upcoming, p)
			}
			continue
		}
		if period == PaidThisMonth && !sameMonth(p.UpdatedAt, now) {
			continue
		}
		s.TotalPaid += amount
		s.PaidCount++
	}
	return s
}

func sameMonth(t, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	t = t.In(now.Location())
	return t.Year() == now.Year() && t.Month() == now.Month()
}
