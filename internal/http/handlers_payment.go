package http

import (
	"errors"
	"fmt"
	"net/http"

	"sitepay/internal/core"
	"sitepay/internal/docstore"
	"sitepay/internal/editor"
	"sitepay/internal/log"
	"sitepay/internal/state"
)

type paymentsView struct {
	pageData
	Payments []core.Payment
}

type paymentFormView struct {
	pageData
	Draft    editor.Draft
	Projects []core.Project
	Vendors  []core.Vendor
	Statuses []core.Status
	Messages []string
	Failed   bool
	Token    string

	// UnknownStatus marks a stored status code outside the registry. It is
	// shown as is until the user picks a listed one.
	UnknownStatus bool

	// Stale* mark a kept reference to a project or vendor deleted since.
	StaleProject bool
	StaleVendor  bool
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "payments.html", paymentsView{
		pageData: s.page(r, "Payments", "payments"),
		Payments: s.domain.Payments(),
	})
}

func (s *Server) newEditor() *editor.PaymentEditor {
	return editor.New(s.domain, s.logger)
}

// renderPaymentForm shows the editor. A failed submission keeps its token so
// sending it again cannot create a second record.
func (s *Server) renderPaymentForm(w http.ResponseWriter, r *http.Request, status int, ed *editor.PaymentEditor, token string, err error) {
	title := "New payment"
	draft := ed.Draft()
	if draft.IsEdit() {
		title = "Edit payment"
	}
	if !validToken(token) {
		token = newSubmissionToken()
	}
	_, projectOK := s.domain.Project(draft.ProjectID)
	_, vendorOK := s.domain.Vendor(draft.VendorID)
	s.render(w, r, status, "payment_form.html", paymentFormView{
		pageData:     s.page(r, title, "payments"),
		Draft:        draft,
		Projects:     s.domain.Projects(),
		Vendors:      s.domain.Vendors(),
		Statuses:     core.Statuses(),
		Messages:     userMessages(err),
		Failed:       ed.State() == editor.Failed,
		Token:        token,
		StaleProject: draft.ProjectID != "" && !projectOK,
		StaleVendor:  draft.VendorID != "" && !vendorOK,

		UnknownStatus: !draft.Status.IsValid(),
	})
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request, what string) {
	s.render(w, r, http.StatusNotFound, "not_found.html", struct {
		pageData
		What string
	}{pageData: s.page(r, "Not found", ""), What: what})
}

func (s *Server) handleNewPayment(w http.ResponseWriter, r *http.Request) {
	ed := s.newEditor()
	_ = ed.Open(nil)
	s.renderPaymentForm(w, r, http.StatusOK, ed, "", nil)
}

func (s *Server) handleEditPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := s.domain.Payment(r.PathValue("id"))
	if !ok {
		s.renderNotFound(w, r, "payment")
		return
	}
	ed := s.newEditor()
	_ = ed.Open(&p)
	s.renderPaymentForm(w, r, http.StatusOK, ed, "", nil)
}

// applyPaymentForm copies the submitted values into the editor. Every sent
// field is applied so the form can be shown back even when some are invalid;
// fields left out of the submission keep the stored value.
func (s *Server) applyPaymentForm(ed *editor.PaymentEditor, f PaymentForm) error {
	draft := ed.Draft()
	var errs []error

	if f.Sent(fieldProjectID) {
		switch project, ok := s.domain.Project(f.ProjectID); {
		case f.ProjectID == "" || ok:
			errs = append(errs, ed.SelectProject(project))
		case f.ProjectID != draft.ProjectID:
			// A reference kept from an edited payment may point at a deleted
			// project; only a new selection must exist.
			errs = append(errs, errUnknownProject)
		}
	}
	if f.Sent(fieldVendorID) {
		switch vendor, ok := s.domain.Vendor(f.VendorID); {
		case f.VendorID == "" || ok:
			errs = append(errs, ed.SelectVendor(vendor))
		case f.VendorID != draft.VendorID:
			errs = append(errs, errUnknownVendor)
		}
	}
	if f.Sent(fieldItem) {
		errs = append(errs, ed.SetItem(f.Item))
	}
	if f.Sent(fieldAmount) {
		errs = append(errs, ed.SetAmount(f.Amount))
	}
	if f.Sent(fieldExpectedDate) {
		errs = append(errs, ed.SetExpectedDate(f.ExpectedDate))
	}
	if f.Sent(fieldStatus) && f.Status != "" {
		errs = append(errs, ed.SetStatus(core.Status(f.Status)))
	}
	return errors.Join(errs...)
}

func (s *Server) handleSavePayment(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}
	form := ParsePaymentForm(parser)

	ed := s.newEditor()
	if form.ID != "" {
		p, ok := s.domain.Payment(form.ID)
		if !ok {
			s.failPayment(w, r, parser, ed, http.StatusNotFound, fmt.Errorf("payment %s: %w", form.ID, docstore.ErrNotFound))
			return
		}
		_ = ed.Open(&p)
	} else {
		_ = ed.Open(nil)
	}

	if err := s.applyPaymentForm(ed, form); err != nil {
		s.failPayment(w, r, parser, ed, statusFor(err), err)
		return
	}

	status := http.StatusCreated
	if form.ID != "" {
		status = http.StatusOK
	}

	tracked := validToken(form.Token)
	if tracked {
		prev, first := s.submissions.begin(form.Token)
		switch {
		case !first && prev.done:
			log.FromContext(r.Context()).InfoContext(r.Context(), "Repeated payment submission", log.FieldPaymentID, prev.id)
			s.done(w, r, parser, status, state.CollectionPayments, prev.id, "/payments", "payment-saved")
			return
		case !first:
			s.failPayment(w, r, parser, ed, http.StatusConflict, editor.ErrSubmitInFlight)
			return
		}
	}

	id, err := ed.Submit(r.Context())
	if err != nil {
		if tracked {
			s.submissions.abort(form.Token)
		}
		s.failPayment(w, r, parser, ed, statusFor(err), err)
		return
	}
	if tracked {
		s.submissions.finish(form.Token, id)
	}
	s.done(w, r, parser, status, state.CollectionPayments, id, "/payments", "payment-saved")
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}

	id := r.PathValue("id")
	ed := s.newEditor()
	p, ok := s.domain.Payment(id)
	if !ok {
		s.failPayment(w, r, parser, ed, http.StatusNotFound, fmt.Errorf("payment %s: %w", id, docstore.ErrNotFound))
		return
	}
	_ = ed.Open(&p)

	if err := ed.Delete(r.Context(), Confirmed(parser)); err != nil {
		s.failPayment(w, r, parser, ed, statusFor(err), err)
		return
	}
	s.done(w, r, parser, http.StatusOK, state.CollectionPayments, id, "/payments", "payment-deleted")
}

// failPayment shows the editor again with the user's input and the error.
func (s *Server) failPayment(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, ed *editor.PaymentEditor, status int, err error) {
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Payment write failed", log.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Payment form rejected", log.FieldError, err, log.FieldStatusCode, status)
	}

	if p.IsJSON() {
		writeJSON(w, status, map[string]any{"errors": userMessages(err)})
		return
	}
	notifyFailure(w, r, err)
	if ed.State() == editor.Closed {
		s.renderNotFound(w, r, "payment")
		return
	}
	s.renderPaymentForm(w, r, status, ed, p.Get("token"), err)
}
