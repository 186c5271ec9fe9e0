// Package recordbuf holds the raw bytes of one audit netlink message
// alongside its record type and event serial.
//
// The original C++ (auditrec_buffers_impl.hpp) used two buffer classes
// behind a common virtual interface: AuditRecBufferLarge and
// AuditRecBufferSmall. Go has no use for virtual dispatch here, so both
// tiers are represented by one Buffer struct carrying a Kind tag; callers
// that care about the tier (bufferpool) switch on it directly.
package recordbuf

// Kind identifies which size tier a Buffer was allocated from.
type Kind int

const (
	// Small buffers fit the overwhelming majority of audit messages.
	Small Kind = iota
	// Large buffers cover oversized records (e.g. long argv/EXECVE
	// groups) that would not fit in a Small buffer.
	Large
)

func (k Kind) String() string {
	if k == Large {
		return "large"
	}
	return "small"
}

const (
	// SmallSize is the capacity of a Small-tier buffer, in bytes.
	SmallSize = 512
	// LargeSize is the capacity of a Large-tier buffer, in bytes.
	LargeSize = 8970
)

// Buffer holds one raw audit message plus its record type and serial.
//
// recordbuf itself does not know how to parse: the fields scanned out of a
// message's body are kept by the group that holds the buffer.
type Buffer struct {
	kind Kind
	data []byte // full-capacity backing array
	n    int    // number of valid bytes currently stored in data

	// RecordType is the audit message type (e.g. 1300 SYSCALL, 1307 CWD).
	RecordType uint32
	// Serial is the event serial number shared by every record in a group.
	Serial uint64
}

// NewSmall allocates a new Small-tier Buffer.
func NewSmall() *Buffer {
	return &Buffer{kind: Small, data: make([]byte, SmallSize)}
}

// NewLarge allocates a new Large-tier Buffer.
func NewLarge() *Buffer {
	return &Buffer{kind: Large, data: make([]byte, LargeSize)}
}

// Kind reports which tier b was allocated from.
func (b *Buffer) Kind() Kind {
	return b.kind
}

// Cap reports the fixed capacity of b's backing array.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Fits reports whether n bytes fit within b's capacity.
func (b *Buffer) Fits(n int) bool {
	return n <= len(b.data)
}

// SetBytes copies src into b's backing array, replacing any previous
// contents. It reports false if src does not fit within b's capacity.
func (b *Buffer) SetBytes(src []byte) bool {
	if !b.Fits(len(src)) {
		return false
	}
	copy(b.data, src)
	b.n = len(src)
	return true
}

// Bytes returns the valid portion of b's backing array.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

// Reset clears b's valid length and identifying fields so it can be reused
// for a different message. The backing array and tier are left untouched.
func (b *Buffer) Reset() {
	b.n = 0
	b.RecordType = 0
	b.Serial = 0
}
