package core

import "testing"

func TestLookupStatusIsTotal(t *testing.T) {
	for _, s := range Statuses() {
		info := LookupStatus(s)
		if info.Label == "" || info.Class == "" {
			t.Fatalf("status %q has empty label or class: %+v", s, info)
		}
		if info == UnknownStatus {
			t.Fatalf("status %q resolved to the fallback", s)
		}
	}
	if len(Statuses()) != 5 {
		t.Fatalf("expected 5 statuses, got %d", len(Statuses()))
	}
}

func TestLookupStatusUnknown(t *testing.T) {
	for _, s := range []Status{"", "archived", "PAID"} {
		if got := LookupStatus(s); got != UnknownStatus {
			t.Fatalf("%q expected fallback, got %+v", s, got)
		}
	}
}

func TestStatusIsResolved(t *testing.T) {
	for _, s := range Statuses() {
		if s.IsResolved() != (s == StatusPaid) {
			t.Fatalf("%q resolved=%v", s, s.IsResolved())
		}
	}
}

func TestStatusesReturnsCopy(t *testing.T) {
	a := Statuses()
	a[0] = "mutated"
	if Statuses()[0] != StatusDraft {
		t.Fatalf("registry order was mutated through the returned slice")
	}
}
