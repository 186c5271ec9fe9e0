package preamble_test

import (
	"testing"

	"github.com/m-lab/audit-info/preamble"
)

func TestParseTypical(t *testing.T) {
	msg := "audit(1610000000.123:99999): arch=c000003e"
	p, err := preamble.Parse([]byte(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TimeSeconds != 1610000000 {
		t.Errorf("TimeSeconds = %d, want 1610000000", p.TimeSeconds)
	}
	if p.TimeMillis != 123 {
		t.Errorf("TimeMillis = %d, want 123", p.TimeMillis)
	}
	if p.Serial != 99999 {
		t.Errorf("Serial = %d, want 99999", p.Serial)
	}
	if got := string(msg[p.BodyOffset:]); got != "arch=c000003e" {
		t.Errorf("body = %q, want %q", got, "arch=c000003e")
	}
}

func TestParseExactly24BytesEmptySerial(t *testing.T) {
	msg := "audit(1234567890.000:): "
	if len(msg) != 24 {
		t.Fatalf("test fixture is %d bytes, want 24", len(msg))
	}
	p, err := preamble.Parse([]byte(msg))
	if err != nil {
		t.Fatalf("a 24-byte preamble with an empty serial should be accepted: %v", err)
	}
	if p.Serial != 0 {
		t.Errorf("Serial = %d, want 0", p.Serial)
	}
	if p.BodyOffset != 24 {
		t.Errorf("BodyOffset = %d, want 24", p.BodyOffset)
	}
}

func TestParseTooShort(t *testing.T) {
	msg := "audit(1.0:1)"
	if _, err := preamble.Parse([]byte(msg)); err != preamble.ErrTooShort {
		t.Errorf("Parse(%q) err = %v, want ErrTooShort", msg, err)
	}
}

func TestParseMissingPrefix(t *testing.T) {
	msg := "not-an-audit-record-at-all-long-enough"
	if _, err := preamble.Parse([]byte(msg)); err != preamble.ErrMalformed {
		t.Errorf("Parse(%q) err = %v, want ErrMalformed", msg, err)
	}
}

func TestParseUnterminatedSerial(t *testing.T) {
	msg := "audit(1610000000.123:99999 arch=c000003e"
	if _, err := preamble.Parse([]byte(msg)); err != preamble.ErrMalformed {
		t.Errorf("Parse(%q) err = %v, want ErrMalformed", msg, err)
	}
}

func TestParseWithoutTrailingSpace(t *testing.T) {
	msg := "audit(1610000000.123:99999):arch=c000003e"
	p, err := preamble.Parse([]byte(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string([]byte(msg)[p.BodyOffset:]); got != "arch=c000003e" {
		t.Errorf("body = %q, want %q", got, "arch=c000003e")
	}
}
