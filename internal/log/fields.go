package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldCollection = "collection"
	FieldDocumentID = "document_id"
	FieldSessionID  = "session_id"
	FieldProjectID  = "project_id"
	FieldVendorID   = "vendor_id"
	FieldPaymentID  = "payment_id"
	FieldStatus     = "status"
	FieldAmount     = "amount"
	FieldCount      = "count"
	FieldSheetsRef  = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentState    = "state"
	ComponentStore    = "store"
	ComponentAMQP     = "amqp"
	ComponentIdentity = "identity"
	ComponentEditor   = "editor"
	ComponentSheets   = "sheets"
	ComponentWorker   = "worker"
	ComponentBackend  = "backend"
	ComponentTemplate = "template"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpSubscribe = "subscribe"
	OpSnapshot  = "snapshot"
	OpPublish   = "publish"
	OpExport    = "export"
	OpRender    = "render"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field; nil errors are skipped
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithDocument adds the collection and, when known, the document id
func (f LogFields) WithDocument(collection, id string) LogFields {
	f[FieldCollection] = collection
	if id != "" {
		f[FieldDocumentID] = id
	}
	return f
}

// WithPayment adds payment-related fields
func (f LogFields) WithPayment(id, projectID, vendorID, status string, amount float64) LogFields {
	if id != "" {
		f[FieldPaymentID] = id
	}
	f[FieldProjectID] = projectID
	f[FieldVendorID] = vendorID
	f[FieldStatus] = status
	f[FieldAmount] = amount
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
