package http

import (
	"net/http"
	"time"

	"sitepay/internal/core"
)

type overviewView struct {
	pageData
	Summary   core.Summary
	PaidLabel string
	Projects  int
	Vendors   int
}

func (s *Server) summary(r *http.Request) core.Summary {
	period := core.PaidPeriod(r.URL.Query().Get("period"))
	if s.dashboard == nil {
		if !period.IsValid() {
			period = core.PaidAllTime
		}
		return core.Summarize(s.domain.Payments(), time.Now(), period)
	}
	return s.dashboard.Summary(period)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sum := s.summary(r)
	s.render(w, r, http.StatusOK, "index.html", overviewView{
		pageData:  s.page(r, "Overview", "overview"),
		Summary:   sum,
		PaidLabel: sum.Period.Label(),
		Projects:  len(s.domain.Projects()),
		Vendors:   len(s.domain.Vendors()),
	})
}

type upcomingJSON struct {
	ID           string  `json:"id"`
	Project      string  `json:"project"`
	Vendor       string  `json:"vendor"`
	Item         string  `json:"item"`
	Amount       float64 `json:"amount"`
	AmountText   string  `json:"amountText"`
	ExpectedDate string  `json:"expectedDate"`
	Status       string  `json:"status"`
	StatusLabel  string  `json:"statusLabel"`
}

type dashboardJSON struct {
	Ready            bool           `json:"ready"`
	Currency         string         `json:"currency"`
	Period           string         `json:"period"`
	PaidLabel        string         `json:"paidLabel"`
	TotalOutstanding float64        `json:"totalOutstanding"`
	TotalPaid        float64        `json:"totalPaid"`
	OutstandingText  string         `json:"outstandingText"`
	PaidText         string         `json:"paidText"`
	OutstandingCount int            `json:"outstandingCount"`
	PaidCount        int            `json:"paidCount"`
	Upcoming         []upcomingJSON `json:"upcoming"`
}

func (s *Server) handleDashboardAPI(w http.ResponseWriter, r *http.Request) {
	sum := s.summary(r)
	out := dashboardJSON{
		Ready:            s.domain.Ready(),
		Currency:         s.formatter.Code(),
		Period:           string(sum.Period),
		PaidLabel:        sum.Period.Label(),
		TotalOutstanding: sum.TotalOutstanding,
		TotalPaid:        sum.TotalPaid,
		OutstandingText:  s.formatter.Format(sum.TotalOutstanding),
		PaidText:         s.formatter.Format(sum.TotalPaid),
		OutstandingCount: sum.OutstandingCount,
		PaidCount:        sum.PaidCount,
		Upcoming:         make([]upcomingJSON, 0, len(sum.Upcoming)),
	}
	for _, p := range sum.Upcoming {
		out.Upcoming = append(out.Upcoming, upcomingJSON{
			ID:           p.ID,
			Project:      p.ProjectName,
			Vendor:       p.VendorName,
			Item:         p.Item,
			Amount:       core.CoerceAmount(p.Amount),
			AmountText:   s.formatter.Format(p.Amount),
			ExpectedDate: p.ExpectedDate,
			Status:       string(p.Status),
			StatusLabel:  core.LookupStatus(p.Status).Label,
		})
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, out)
}
