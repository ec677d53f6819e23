package core

const (
	StatusDraft     Status = "draft"
	StatusIssue     Status = "issue"
	StatusPlanned   Status = "planned"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
)

// Status is the lifecycle state of a payment. Transitions are free-form:
// any status can be edited into any other.
type Status string

// StatusInfo is the display metadata for a status code.
type StatusInfo struct {
	Label string
	Class string
}

// UnknownStatus is returned by LookupStatus for codes outside the registry.
var UnknownStatus = StatusInfo{Label: "Unknown", Class: "status-unknown"}

var statusOrder = []Status{StatusDraft, StatusIssue, StatusPlanned, StatusConfirmed, StatusPaid}

var statusRegistry = map[Status]StatusInfo{
	StatusDraft:     {Label: "Draft", Class: "status-draft"},
	StatusIssue:     {Label: "Invoice issued", Class: "status-issue"},
	StatusPlanned:   {Label: "Payment planned", Class: "status-planned"},
	StatusConfirmed: {Label: "Confirmed", Class: "status-confirmed"},
	StatusPaid:      {Label: "Paid", Class: "status-paid"},
}

// Statuses returns the status codes in lifecycle order.
func Statuses() []Status {
	return append([]Status(nil), statusOrder...)
}

// LookupStatus returns label and presentation class for a status code.
func LookupStatus(s Status) StatusInfo {
	if info, ok := statusRegistry[s]; ok {
		return info
	}
	return UnknownStatus
}

func (s Status) IsValid() bool {
	_, ok := statusRegistry[s]
	return ok
}

// IsResolved is true only for paid.
func (s Status) IsResolved() bool {
	return s == StatusPaid
}

func (s Status) Label() string {
	return LookupStatus(s).Label
}

func (s Status) Class() string {
	return LookupStatus(s).Class
}

func (s Status) String() string {
	return string(s)
}
