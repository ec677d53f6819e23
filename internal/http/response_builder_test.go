package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeTriggers(t *testing.T, rr *httptest.ResponseRecorder) map[string]map[string]any {
	t.Helper()
	raw := rr.Header().Get("HX-Trigger")
	if raw == "" {
		t.Fatal("missing HX-Trigger")
	}
	var out map[string]map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	return out
}

func TestHTMXResponseDefaults(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().Write(rr)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("HX-Trigger") != "" {
		t.Fatal("no triggers expected")
	}
	if rr.Body.Len() != 0 {
		t.Fatal("no body expected")
	}
}

func TestHTMXResponseChangedAndNotify(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerChanged("payments", "pay-1").
		Notify(NotifySuccess, "Payment saved").
		Redirect("/payments").
		Write(rr)

	triggers := decodeTriggers(t, rr)
	if triggers["payments:changed"]["id"] != "pay-1" {
		t.Fatalf("changed trigger = %v", triggers["payments:changed"])
	}
	n := triggers["notify"]
	if n["kind"] != NotifySuccess || n["message"] != "Payment saved" || n["duration"] != float64(3000) {
		t.Fatalf("notify trigger = %v", n)
	}
	if rr.Header().Get("HX-Redirect") != "/payments" {
		t.Fatalf("HX-Redirect=%q", rr.Header().Get("HX-Redirect"))
	}
}

func TestNotifyErrorLastsLonger(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().Notify(NotifyError, "boom").Write(rr)
	if got := decodeTriggers(t, rr)["notify"]["duration"]; got != float64(6000) {
		t.Fatalf("duration=%v", got)
	}
}

func TestNotifyEmptyMessageIsDropped(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().Notify(NotifySuccess, "").Write(rr)
	if rr.Header().Get("HX-Trigger") != "" {
		t.Fatal("empty notification must not be sent")
	}
}

func TestApplyLeavesStatusToCaller(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().Status(http.StatusTeapot).Notify(NotifyError, "x").Apply(rr)
	rr.WriteHeader(http.StatusUnprocessableEntity)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("HX-Trigger") == "" {
		t.Fatal("headers not applied")
	}
}

func TestBadRequestEscapesMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	BadRequest(rr, `<script>alert("x")</script>`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, "<script>") {
		t.Fatalf("message not escaped: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Fatalf("escaped message missing: %s", body)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type=%q", ct)
	}
}
