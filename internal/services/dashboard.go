package services

import (
	"time"

	"sitepay/internal/cache"
	"sitepay/internal/core"
)

// PaymentSource is satisfied by the state container.
type PaymentSource interface {
	PaymentsWithVersion() ([]core.Payment, uint64)
}

type dashboardKey struct {
	version uint64
	period  core.PaidPeriod
	month   string
}

// DashboardService computes the overview summary, recomputing only when the
// payments mirror, the paid period or the calendar month changes.
type DashboardService struct {
	source        PaymentSource
	defaultPeriod core.PaidPeriod
	now           func() time.Time
	cache         *cache.LRUCache[dashboardKey, core.Summary]
}

func NewDashboardService(source PaymentSource, defaultPeriod core.PaidPeriod) *DashboardService {
	if !defaultPeriod.IsValid() {
		defaultPeriod = core.PaidAllTime
	}
	return &DashboardService{
		source:        source,
		defaultPeriod: defaultPeriod,
		now:           time.Now,
		cache:         cache.NewLRUCache[dashboardKey, core.Summary](8, 0),
	}
}

// DefaultPeriod is the configured paid period.
func (s *DashboardService) DefaultPeriod() core.PaidPeriod {
	return s.defaultPeriod
}

// Summary returns the summary for period; an empty or unknown period uses
// the configured default.
func (s *DashboardService) Summary(period core.PaidPeriod) core.Summary {
	if !period.IsValid() {
		period = s.defaultPeriod
	}
	now := s.now()
	payments, version := s.source.PaymentsWithVersion()
	key := dashboardKey{version: version, period: period, month: now.Format("2006-01")}

	if sum, ok := s.cache.Get(key); ok {
		return sum
	}
	sum := core.Summarize(payments, now, period)
	s.cache.Set(key, sum)
	return sum
}
