package version

import (
	"strings"
	"testing"
)

func TestNegotiate_PrefersServersMostPreferred(t *testing.T) {
	got, err := Negotiate(DefaultServerVersions, []string{"^0.1.0", "^0.4.0"})
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if got != "^0.4.0" {
		t.Fatalf("Negotiate() = %q, want %q", got, "^0.4.0")
	}
}

func TestNegotiate_EmptyClientDefaultsToOldest(t *testing.T) {
	got, err := Negotiate(DefaultServerVersions, nil)
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if got != "^0.1.0" {
		t.Fatalf("Negotiate() = %q, want %q", got, "^0.1.0")
	}
}

func TestNegotiate_SingleOverlap(t *testing.T) {
	got, err := Negotiate(DefaultServerVersions, []string{"^0.2.0"})
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if got != "^0.2.0" {
		t.Fatalf("Negotiate() = %q, want %q", got, "^0.2.0")
	}
}

func TestNegotiate_Mismatch(t *testing.T) {
	_, err := Negotiate(DefaultServerVersions, []string{"^9.0.0"})
	if err == nil {
		t.Fatal("Negotiate() error = nil, want UnsupportedError")
	}

	var unsupported *UnsupportedError
	if !asUnsupported(err, &unsupported) {
		t.Fatalf("Negotiate() error type = %T, want *UnsupportedError", err)
	}
	if !strings.Contains(err.Error(), "Unsupported client protocol") {
		t.Fatalf("Negotiate() error message = %q, missing expected prefix", err.Error())
	}
}

func TestNegotiate_MalformedClientRangeIsNotFatal(t *testing.T) {
	_, err := Negotiate(DefaultServerVersions, []string{"not-a-range"})
	if err == nil {
		t.Fatal("Negotiate() error = nil, want UnsupportedError for an unparseable client range")
	}
}

func asUnsupported(err error, target **UnsupportedError) bool {
	u, ok := err.(*UnsupportedError)
	if ok {
		*target = u
	}
	return ok
}
