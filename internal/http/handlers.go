package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"sitepay/internal/core"
	"sitepay/internal/docstore"
	"sitepay/internal/editor"
	"sitepay/internal/log"
	"sitepay/internal/state"
)

var (
	errUnknownProject = errors.New("unknown project")
	errUnknownVendor  = errors.New("unknown vendor")
)

// notices are shown after a redirect; the query only carries the key.
var notices = map[string]string{
	"payment-saved":   "Payment saved",
	"payment-deleted": "Payment deleted",
	"vendor-saved":    "Vendor added",
	"vendor-deleted":  "Vendor deleted",
	"project-saved":   "Project added",
	"project-deleted": "Project deleted",
}

type pageData struct {
	Title  string
	Active string
	Ready  bool
	Errors []state.SubscriptionError
	Notice string
}

func (s *Server) page(r *http.Request, title, active string) pageData {
	return pageData{
		Title:  title,
		Active: active,
		Ready:  s.domain.Ready(),
		Errors: s.domain.Errors(),
		Notice: notices[r.URL.Query().Get("notice")],
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender, "template", name, log.FieldError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// done answers a successful write: JSON clients get the id, htmx gets a
// client-side redirect, browsers a 303.
func (s *Server) done(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, status int, collection, id, target, notice string) {
	switch {
	case p != nil && p.IsJSON():
		writeJSON(w, status, map[string]string{"id": id})
	case isHTMX(r):
		NewHTMXResponse().
			Redirect(target).
			TriggerChanged(collection, id).
			Notify(NotifySuccess, notices[notice]).
			Write(w)
	default:
		http.Redirect(w, r, target+"?notice="+notice, http.StatusSeeOther)
	}
}

// notifyFailure adds an error toast for htmx requests before the form is
// rendered again.
func notifyFailure(w http.ResponseWriter, r *http.Request, err error) {
	if !isHTMX(r) {
		return
	}
	if msgs := userMessages(err); len(msgs) > 0 {
		NewHTMXResponse().Notify(NotifyError, msgs[0]).Apply(w)
	}
}

// statusFor maps write and validation errors to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, state.ErrNoSession):
		return http.StatusServiceUnavailable
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrSubmitInFlight):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNameTooLong),
		errors.Is(err, core.ErrInvalidVendorTy),
		errors.Is(err, errUnknownProject),
		errors.Is(err, errUnknownVendor),
		errors.Is(err, editor.ErrNotConfirmed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// userMessages turns err, possibly joined, into messages for the form.
func userMessages(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, userMessages(e)...)
		}
		return out
	}
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return []string{"Amount must be a non-negative number."}
	case errors.Is(err, core.ErrInvalidDate):
		return []string{"Expected date must be a date (YYYY-MM-DD)."}
	case errors.Is(err, core.ErrInvalidStatus):
		return []string{"Choose one of the listed statuses."}
	case errors.Is(err, core.ErrEmptyName):
		return []string{"Name is required."}
	case errors.Is(err, core.ErrNameTooLong):
		return []string{"Name is too long (max 200 characters)."}
	case errors.Is(err, core.ErrInvalidVendorTy):
		return []string{"Choose one of the listed trades."}
	case errors.Is(err, errUnknownProject):
		return []string{"The selected project no longer exists."}
	case errors.Is(err, errUnknownVendor):
		return []string{"The selected vendor no longer exists."}
	case errors.Is(err, editor.ErrNotConfirmed):
		return []string{"Tick the confirmation box to delete."}
	case errors.Is(err, editor.ErrSubmitInFlight):
		return []string{"A save is already in progress."}
	case errors.Is(err, state.ErrNoSession):
		return []string{"Still connecting to the store. Your input is kept, try again in a moment."}
	case errors.Is(err, docstore.ErrNotFound):
		return []string{"This record was deleted in the meantime."}
	default:
		return []string{"Saving failed. Your input is kept, try again."}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady answers 503 until every collection delivered its first snapshot.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients()},
	}

	if s.domain.Ready() {
		checks["collections"] = "ok"
	} else {
		checks["collections"] = "connecting"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if errs := s.domain.Errors(); len(errs) > 0 {
		failed := make(map[string]string, len(errs))
		for _, e := range errs {
			failed[e.Collection] = e.Err.Error()
		}
		checks["subscription_errors"] = failed
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}
