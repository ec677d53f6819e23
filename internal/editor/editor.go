// Package editor is the create/edit form state machine for a payment.
//
// The editor closes only after the store confirms a write. A failed submit
// keeps the form and the error so the user can retry or cancel.
package editor

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"sitepay/internal/core"
	"sitepay/internal/docstore"
	"sitepay/internal/log"
	"sitepay/internal/state"
)

type State int

const (
	Closed State = iota
	OpenCreate
	OpenEdit
	Pending
	Failed
)

func (s State) String() string {
	switch s {
	case OpenCreate:
		return "open_create"
	case OpenEdit:
		return "open_edit"
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	default:
		return "closed"
	}
}

var (
	ErrSubmitInFlight = errors.New("editor: submit already in flight")
	ErrNotOpen        = errors.New("editor: not open")
	ErrNotEditing     = errors.New("editor: delete needs an existing payment")
	ErrNotConfirmed   = errors.New("editor: delete not confirmed")
)

// Saver is the part of the state container the editor writes through.
type Saver interface {
	SavePayment(ctx context.Context, p core.Payment) (string, error)
	DeletePayment(ctx context.Context, id string) error
}

// Draft is the form as the user sees it. AmountRaw is kept verbatim so an
// invalid entry can be shown back.
type Draft struct {
	ID           string
	ProjectID    string
	ProjectName  string
	VendorID     string
	VendorName   string
	Item         string
	AmountRaw    string
	ExpectedDate string
	Status       core.Status
	CreatedAt    time.Time
}

// IsEdit reports whether the draft belongs to an existing payment.
func (d Draft) IsEdit() bool { return d.ID != "" }

type PaymentEditor struct {
	saver  Saver
	logger *log.Logger

	mu    sync.Mutex
	state State
	draft Draft
	err   error
}

func New(saver Saver, logger *log.Logger) *PaymentEditor {
	if logger == nil {
		logger = log.Discard()
	}
	return &PaymentEditor{saver: saver, logger: logger.WithComponent(log.ComponentEditor)}
}

// Open starts a create form when p is nil and an edit form otherwise.
func (e *PaymentEditor) Open(p *core.Payment) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Pending {
		return ErrSubmitInFlight
	}
	e.err = nil
	if p == nil {
		e.state = OpenCreate
		e.draft = Draft{Status: core.StatusDraft}
		return nil
	}
	e.state = OpenEdit
	e.draft = Draft{
		ID:           p.ID,
		ProjectID:    p.ProjectID,
		ProjectName:  p.ProjectName,
		VendorID:     p.VendorID,
		VendorName:   p.VendorName,
		Item:         p.Item,
		AmountRaw:    formatAmount(p.Amount),
		ExpectedDate: p.ExpectedDate,
		Status:       p.Status,
		CreatedAt:    p.CreatedAt,
	}
	// An unknown stored status stays as is; Submit rejects it until the user
	// picks a listed one.
	return nil
}

func formatAmount(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (e *PaymentEditor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the error of the last failed submit or delete.
func (e *PaymentEditor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *PaymentEditor) Draft() Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// edit applies fn to the draft when the form is open.
func (e *PaymentEditor) edit(fn func(d *Draft) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case Closed:
		return ErrNotOpen
	case Pending:
		return ErrSubmitInFlight
	}
	return fn(&e.draft)
}

// SelectProject sets the project id and name together. An empty id clears both.
func (e *PaymentEditor) SelectProject(p core.Project) error {
	return e.edit(func(d *Draft) error {
		if p.ID == "" {
			d.ProjectID, d.ProjectName = "", ""
			return nil
		}
		d.ProjectID, d.ProjectName = p.ID, p.Name
		return nil
	})
}

// SelectVendor sets the vendor id and name together. An empty id clears both.
func (e *PaymentEditor) SelectVendor(v core.Vendor) error {
	return e.edit(func(d *Draft) error {
		if v.ID == "" {
			d.VendorID, d.VendorName = "", ""
			return nil
		}
		d.VendorID, d.VendorName = v.ID, v.Name
		return nil
	})
}

func (e *PaymentEditor) SetItem(item string) error {
	return e.edit(func(d *Draft) error {
		d.Item = strings.TrimSpace(item)
		return nil
	})
}

// SetAmount stores raw as typed. It reports an unparsable value but keeps it
// in the draft; Submit refuses it.
func (e *PaymentEditor) SetAmount(raw string) error {
	return e.edit(func(d *Draft) error {
		d.AmountRaw = strings.TrimSpace(raw)
		_, err := core.ParseAmount(d.AmountRaw)
		return err
	})
}

func (e *PaymentEditor) SetExpectedDate(date string) error {
	return e.edit(func(d *Draft) error {
		date = strings.TrimSpace(date)
		d.ExpectedDate = date
		if date == "" {
			return nil
		}
		if _, err := time.Parse(core.DateLayout, date); err != nil {
			return core.ErrInvalidDate
		}
		return nil
	})
}

func (e *PaymentEditor) SetStatus(s core.Status) error {
	return e.edit(func(d *Draft) error {
		if !s.IsValid() {
			return core.ErrInvalidStatus
		}
		d.Status = s
		return nil
	})
}

// payment converts the draft; it fails only on input the user must fix.
func (d Draft) payment() (core.Payment, error) {
	amount, err := core.ParseAmount(d.AmountRaw)
	if err != nil {
		return core.Payment{}, err
	}
	p := core.Payment{
		ID:           d.ID,
		ProjectID:    d.ProjectID,
		ProjectName:  d.ProjectName,
		VendorID:     d.VendorID,
		VendorName:   d.VendorName,
		Item:         d.Item,
		Amount:       amount,
		ExpectedDate: d.ExpectedDate,
		Status:       d.Status,
		CreatedAt:    d.CreatedAt,
	}
	return p, p.Validate()
}

// Fields returns the document fields a submit would send.
func (e *PaymentEditor) Fields() (docstore.Fields, error) {
	e.mu.Lock()
	d := e.draft
	e.mu.Unlock()
	p, err := d.payment()
	if err != nil {
		return nil, err
	}
	return state.PaymentFields(p), nil
}

// Submit saves the draft. On success the editor closes and the payment id is
// returned. Invalid input leaves the form open; a store failure moves it to
// Failed with the form intact.
func (e *PaymentEditor) Submit(ctx context.Context) (string, error) {
	e.mu.Lock()
	switch e.state {
	case Closed:
		e.mu.Unlock()
		return "", ErrNotOpen
	case Pending:
		e.mu.Unlock()
		return "", ErrSubmitInFlight
	}
	p, err := e.draft.payment()
	if err != nil {
		e.mu.Unlock()
		return "", err
	}
	e.state = Pending
	e.err = nil
	e.mu.Unlock()

	id, err := e.saver.SavePayment(ctx, p)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = Failed
		e.err = err
		e.logger.WarnContext(ctx, "Payment submit failed",
			log.NewFields().WithPayment(p.ID, p.ProjectID, p.VendorID, string(p.Status), p.Amount).WithError(err).ToSlice()...)
		return "", err
	}
	e.reset()
	return id, nil
}

// Cancel discards the form without touching the store. It is ignored while
// a submit is in flight.
func (e *PaymentEditor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Pending {
		return
	}
	e.reset()
}

// Delete removes the payment being edited. confirmed must be true; the
// deletion cannot be undone.
func (e *PaymentEditor) Delete(ctx context.Context, confirmed bool) error {
	e.mu.Lock()
	switch {
	case e.state == Closed:
		e.mu.Unlock()
		return ErrNotOpen
	case e.state == Pending:
		e.mu.Unlock()
		return ErrSubmitInFlight
	case !e.draft.IsEdit():
		e.mu.Unlock()
		return ErrNotEditing
	case !confirmed:
		e.mu.Unlock()
		return ErrNotConfirmed
	}
	id := e.draft.ID
	e.state = Pending
	e.err = nil
	e.mu.Unlock()

	err := e.saver.DeletePayment(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = Failed
		e.err = err
		return err
	}
	e.reset()
	return nil
}

// reset must be called with e.mu held.
func (e *PaymentEditor) reset() {
	e.state = Closed
	e.draft = Draft{}
	e.err = nil
}
