package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for expected payment dates.
const DateLayout = "2006-01-02"

type (
	Project struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}

	Vendor struct {
		ID        string
		Name      string
		Type      VendorType
		CreatedAt time.Time
	}

	// Payment is a payment request towards a vendor for a project.
	// ProjectName and VendorName are copies taken when the reference was
	// selected; they are not refreshed when the project or vendor is renamed.
	Payment struct {
		ID           string
		ProjectID    string
		ProjectName  string
		VendorID     string
		VendorName   string
		Item         string
		Amount       float64
		ExpectedDate string // YYYY-MM-DD, may be empty
		Status       Status
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}
)

var (
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = errors.New("name too long (max 200 characters)")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid expected date")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidVendorTy = errors.New("invalid vendor type")
)

const maxNameLen = 200

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLen {
		return ErrNameTooLong
	}
	return nil
}

func (p Project) Validate() error {
	return validateName(p.Name)
}

func (v Vendor) Validate() error {
	if err := validateName(v.Name); err != nil {
		return err
	}
	if !v.Type.IsValid() {
		return ErrInvalidVendorTy
	}
	return nil
}

// Validate checks the fields a user can get wrong. Project and vendor
// references are optional, matching the editor defaults.
func (p Payment) Validate() error {
	if p.Amount < 0 {
		return ErrInvalidAmount
	}
	if p.ExpectedDate != "" {
		if _, err := time.Parse(DateLayout, p.ExpectedDate); err != nil {
			return ErrInvalidDate
		}
	}
	if !p.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// IsOutstanding reports whether the payment still counts towards the
// outstanding total.
func (p Payment) IsOutstanding() bool {
	return !p.Status.IsResolved()
}
