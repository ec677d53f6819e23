// Package http serves the server-rendered UI, the dashboard API and the
// operational endpoints.
//
// Responses to htmx requests are built with HTMXResponse so HX-Trigger
// payloads stay consistent across handlers.
package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Notification kinds understood by the page script.
const (
	NotifySuccess = "success"
	NotifyError   = "error"
)

// HTMXResponse collects htmx headers and an optional body.
type HTMXResponse struct {
	status   int
	triggers map[string]any
	headers  map[string]string
	body     []byte
}

func NewHTMXResponse() *HTMXResponse {
	return &HTMXResponse{
		status:   http.StatusOK,
		triggers: make(map[string]any),
		headers:  make(map[string]string),
	}
}

func (b *HTMXResponse) Status(code int) *HTMXResponse {
	b.status = code
	return b
}

// Trigger adds an HX-Trigger event. Later calls with the same name win.
func (b *HTMXResponse) Trigger(name string, data any) *HTMXResponse {
	b.triggers[name] = data
	return b
}

// TriggerChanged emits "{collection}:changed" with the document id so lists
// can refresh themselves.
func (b *HTMXResponse) TriggerChanged(collection, id string) *HTMXResponse {
	return b.Trigger(collection+":changed", map[string]string{"id": id})
}

// Notify shows a toast; errors stay on screen longer.
func (b *HTMXResponse) Notify(kind, message string) *HTMXResponse {
	if message == "" {
		return b
	}
	duration := 3000
	if kind == NotifyError {
		duration = 6000
	}
	return b.Trigger("notify", map[string]any{"kind": kind, "message": message, "duration": duration})
}

// Redirect asks htmx to navigate to url after the response.
func (b *HTMXResponse) Redirect(url string) *HTMXResponse {
	b.headers["HX-Redirect"] = url
	return b
}

// HTML sets an HTML body; message is escaped.
func (b *HTMXResponse) HTML(class, message string) *HTMXResponse {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(`<div class="` + class + `" role="alert">` + template.HTMLEscapeString(message) + `</div>`)
	return b
}

// Apply sets the headers without writing the status, for handlers that render
// the body themselves.
func (b *HTMXResponse) Apply(w http.ResponseWriter) {
	h := w.Header()
	for name, value := range b.headers {
		h.Set(name, value)
	}
	if len(b.triggers) > 0 {
		if raw, err := json.Marshal(b.triggers); err == nil {
			h.Set("HX-Trigger", string(raw))
		}
	}
}

func (b *HTMXResponse) Write(w http.ResponseWriter) {
	b.Apply(w)
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// BadRequest answers a body that could not be parsed at all.
func BadRequest(w http.ResponseWriter, message string) {
	NewHTMXResponse().
		Status(http.StatusBadRequest).
		Notify(NotifyError, message).
		HTML("error", message).
		Write(w)
}
