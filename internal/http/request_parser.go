package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxBodyBytes bounds form and JSON bodies.
const maxBodyBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and stores it for parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData != nil && p.formData.Has(key)
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Payment form keys.
const (
	fieldProjectID    = "projectId"
	fieldVendorID     = "vendorId"
	fieldItem         = "item"
	fieldAmount       = "amount"
	fieldExpectedDate = "expectedDate"
	fieldStatus       = "status"
)

// PaymentForm is the payment editor as submitted.
type PaymentForm struct {
	ID           string
	Token        string
	ProjectID    string
	VendorID     string
	Item         string
	Amount       string
	ExpectedDate string
	Status       string

	sent map[string]bool
}

func ParsePaymentForm(p *RequestBodyParser) PaymentForm {
	f := PaymentForm{
		ID:           p.Get("id"),
		Token:        p.Get("token"),
		ProjectID:    p.Get(fieldProjectID),
		VendorID:     p.Get(fieldVendorID),
		Item:         p.Get(fieldItem),
		Amount:       p.Get(fieldAmount),
		ExpectedDate: p.Get(fieldExpectedDate),
		Status:       p.Get(fieldStatus),
		sent:         make(map[string]bool),
	}
	for _, key := range []string{fieldProjectID, fieldVendorID, fieldItem, fieldAmount, fieldExpectedDate, fieldStatus} {
		f.sent[key] = p.Has(key)
	}
	return f
}

// Sent reports whether the submission carried key. Absent keys leave the
// stored value alone.
func (f PaymentForm) Sent(key string) bool {
	return f.sent[key]
}

// Confirmed reports whether a destructive action carries confirm=yes.
func Confirmed(p *RequestBodyParser) bool {
	switch strings.ToLower(p.Get("confirm")) {
	case "yes", "true", "on":
		return true
	}
	return false
}
