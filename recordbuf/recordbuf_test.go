package recordbuf_test

import (
	"testing"

	"github.com/m-lab/audit-info/recordbuf"
)

func TestNewSmallAndLargeCapacities(t *testing.T) {
	small := recordbuf.NewSmall()
	if small.Kind() != recordbuf.Small {
		t.Errorf("Kind() = %v, want Small", small.Kind())
	}
	if small.Cap() != recordbuf.SmallSize {
		t.Errorf("Cap() = %d, want %d", small.Cap(), recordbuf.SmallSize)
	}

	large := recordbuf.NewLarge()
	if large.Kind() != recordbuf.Large {
		t.Errorf("Kind() = %v, want Large", large.Kind())
	}
	if large.Cap() != recordbuf.LargeSize {
		t.Errorf("Cap() = %d, want %d", large.Cap(), recordbuf.LargeSize)
	}
}

func TestKindString(t *testing.T) {
	if recordbuf.Small.String() != "small" {
		t.Errorf("Small.String() = %q, want %q", recordbuf.Small.String(), "small")
	}
	if recordbuf.Large.String() != "large" {
		t.Errorf("Large.String() = %q, want %q", recordbuf.Large.String(), "large")
	}
}

func TestFits(t *testing.T) {
	b := recordbuf.NewSmall()
	if !b.Fits(recordbuf.SmallSize) {
		t.Errorf("Fits(SmallSize) = false, want true")
	}
	if b.Fits(recordbuf.SmallSize + 1) {
		t.Errorf("Fits(SmallSize+1) = true, want false")
	}
}

func TestSetBytesAndBytesRoundTrip(t *testing.T) {
	b := recordbuf.NewSmall()
	msg := []byte("audit(1610000000.123:99999): arch=c000003e")
	if !b.SetBytes(msg) {
		t.Fatalf("SetBytes reported failure for a message within capacity")
	}
	if got := string(b.Bytes()); got != string(msg) {
		t.Errorf("Bytes() = %q, want %q", got, msg)
	}
}

func TestSetBytesRejectsOversizedMessage(t *testing.T) {
	b := recordbuf.NewSmall()
	oversized := make([]byte, recordbuf.SmallSize+1)
	if b.SetBytes(oversized) {
		t.Fatalf("SetBytes should report failure for a message exceeding capacity")
	}
}

func TestSetBytesReplacesPreviousContents(t *testing.T) {
	b := recordbuf.NewSmall()
	b.SetBytes([]byte("first message is longer than the second"))
	b.SetBytes([]byte("second"))
	if got := string(b.Bytes()); got != "second" {
		t.Errorf("Bytes() = %q, want %q", got, "second")
	}
}

func TestReset(t *testing.T) {
	b := recordbuf.NewSmall()
	b.RecordType = 1300
	b.Serial = 42
	b.SetBytes([]byte("arch=c000003e"))

	b.Reset()

	if b.RecordType != 0 {
		t.Errorf("RecordType after Reset = %d, want 0", b.RecordType)
	}
	if b.Serial != 0 {
		t.Errorf("Serial after Reset = %d, want 0", b.Serial)
	}
	if len(b.Bytes()) != 0 {
		t.Errorf("Bytes() after Reset = %q, want empty", b.Bytes())
	}
	// The backing array and tier survive a Reset so the buffer can be
	// reused for a different message.
	if b.Kind() != recordbuf.Small {
		t.Errorf("Kind() after Reset = %v, want Small", b.Kind())
	}
	if b.Cap() != recordbuf.SmallSize {
		t.Errorf("Cap() after Reset = %d, want %d", b.Cap(), recordbuf.SmallSize)
	}
}
