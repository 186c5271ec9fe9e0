// Package group assembles the individual records that share one audit
// event serial number into a RecordGroup, and offers field accessors that
// scan each record's body lazily -- only when a consumer actually asks
// for a field -- and apply the post-hoc transforms (hex decoding, argv
// reconstruction, nested PATH-record lookups) spec.md calls for on top of
// the raw scanned fields.
//
// Grounded on AuditRecGroupImpl (auditrec_collector_impl.hpp) and the
// fixtures in tests/test_records.cpp, which drive the ConcatValues/
// GetPathField/GetMessageType behavior below.
package group

import (
	"strings"

	"github.com/m-lab/audit-info/fieldscan"
	"github.com/m-lab/audit-info/hexcodec"
	"github.com/m-lab/audit-info/metrics"
	"github.com/m-lab/audit-info/recordbuf"
	"github.com/prometheus/client_golang/prometheus"
)

// releaser returns a buffer to whatever pool allocated it. bufferpool.Pool
// satisfies this without group needing to import it directly, avoiding a
// dependency cycle.
type releaser interface {
	Release(*recordbuf.Buffer)
}

// message pairs a raw buffer with the fields scanned out of its body. The
// scan itself is deferred until something asks for a field of this
// message: scanned tracks whether that has happened yet.
type message struct {
	buf     *recordbuf.Buffer
	body    []byte
	scanned bool
	fields  fieldscan.FieldMap
}

// RecordGroup is every record sharing one audit event serial number,
// ordered by arrival.
type RecordGroup struct {
	Serial      uint64
	TimeSeconds int64
	TimeMillis  int

	messages []message
	pool     releaser
	registry *fieldscan.Registry
}

// New returns an empty RecordGroup for the given serial/timestamp. pool is
// used by Release to recycle each message's buffer; registry selects the
// field dialect used to scan each message's body the first time one of
// its fields is requested.
func New(serial uint64, timeSeconds int64, timeMillis int, pool releaser, registry *fieldscan.Registry) *RecordGroup {
	return &RecordGroup{Serial: serial, TimeSeconds: timeSeconds, TimeMillis: timeMillis, pool: pool, registry: registry}
}

// Add appends one raw record to the group. Its body is not scanned into
// fields until a later GetField/ExpandField/ConcatValues/GetPathField
// call visits it.
func (g *RecordGroup) Add(buf *recordbuf.Buffer, body []byte) {
	g.messages = append(g.messages, message{buf: buf, body: body})
}

// NumMessages reports how many records are in the group.
func (g *RecordGroup) NumMessages() int {
	return len(g.messages)
}

// Type returns the record type of the group's first message, or 0 if the
// group is empty.
func (g *RecordGroup) Type() uint32 {
	if len(g.messages) == 0 {
		return 0
	}
	return g.messages[0].buf.RecordType
}

// Message returns the i'th record's buffer, and whether i is in range.
func (g *RecordGroup) Message(i int) (*recordbuf.Buffer, bool) {
	if i < 0 || i >= len(g.messages) {
		return nil, false
	}
	return g.messages[i].buf, true
}

// Body returns the raw key=value body bytes of message i (the preamble is
// already stripped off).
func (g *RecordGroup) Body(i int) []byte {
	return g.messages[i].body
}

// GetMessageType returns the index of the first message of record type t,
// or -1 if the group has none.
func (g *RecordGroup) GetMessageType(t uint32) int {
	for i, m := range g.messages {
		if m.buf.RecordType == t {
			return i
		}
	}
	return -1
}

// ensureScanned scans message i's body into its FieldMap on first access,
// using the dialect the group's registry selects for that message's
// record type, and caches the result for subsequent calls.
func (g *RecordGroup) ensureScanned(i int) *message {
	m := &g.messages[i]
	if m.scanned {
		return m
	}
	fields := fieldscan.NewFieldMap()
	scanner := fieldscan.ScanDefault
	if g.registry != nil {
		scanner = g.registry.Select(m.buf.RecordType)
	}
	if errored := scanner(m.body, &fields); errored {
		metrics.ScanErrorCount.With(prometheus.Labels{"dialect": dialectLabel(m.buf.RecordType)}).Inc()
	}
	m.fields = fields
	m.scanned = true
	return m
}

func dialectLabel(recordType uint32) string {
	if fieldscan.HandlesSELinuxType(recordType) {
		return "selinux"
	}
	return "default"
}

// findField searches the group's messages in arrival order for the nth
// (0-indexed) occurrence of name, restricting to records of recordType
// when recordType != 0. It returns the matching span together with the
// body it is relative to.
func (g *RecordGroup) findField(name string, recordType uint32, nth int) (fieldscan.Span, []byte, bool) {
	count := 0
	for i := range g.messages {
		if recordType != 0 && g.messages[i].buf.RecordType != recordType {
			continue
		}
		m := g.ensureScanned(i)
		span, ok := m.fields.Get(name)
		if !ok {
			continue
		}
		if count == nth {
			return span, m.body, true
		}
		count++
	}
	return fieldscan.Span{}, nil, false
}

// GetField searches the group's records, in arrival order, for the nth
// occurrence of a field named name. If recordType is non-zero, only
// records of that type are considered. It returns def and false if no
// such occurrence exists.
func (g *RecordGroup) GetField(name, def string, recordType uint32, nth int) (string, bool) {
	span, body, ok := g.findField(name, recordType, nth)
	if !ok {
		return def, false
	}
	return span.Value(body), true
}

// ExpandField fetches the value of name (hex-decoding it first if it was
// written as a bare run, exactly as GetPathField would), re-scans the
// result as a nested "subkey=v subkey=v" body with the default dialect,
// and copies every sub-field it finds into out. It reports whether the
// outer field was found at all; a found field that decodes to no nested
// key=value pairs still reports true with out left unchanged.
func (g *RecordGroup) ExpandField(name string, recordType uint32, out map[string]string) bool {
	span, body, ok := g.findField(name, recordType, 0)
	if !ok {
		return false
	}
	val := span.Value(body)
	if !span.Quoted && val != "" {
		if decoded, err := hexcodec.HexToASCII([]byte(val)); err == nil {
			val = string(decoded)
		}
	}
	nested := fieldscan.NewFieldMap()
	fieldscan.ScanDefault([]byte(val), &nested)
	for i := 0; i < nested.Len(); i++ {
		f := nested.At(i)
		out[f.Key] = f.Span.Value([]byte(val))
	}
	return true
}

// ConcatValues reconstructs a multi-part field, such as an EXECVE argv,
// by walking the fields of the first message of type recordType in the
// order they appear in the body, skipping the first skip fields (argc,
// typically). Quoted values are appended verbatim, re-wrapped in quotes;
// bare values are hex-decoded and the decoded text is wrapped in quotes
// (an empty quoted string on decode failure), since an unquoted bare
// value in the body means the kernel hex-encoded it to hide an embedded
// space or control character. Parts are joined with sep.
func (g *RecordGroup) ConcatValues(recordType uint32, skip int, sep byte) string {
	idx := g.GetMessageType(recordType)
	if idx < 0 {
		return ""
	}
	m := g.ensureScanned(idx)
	var parts []string
	for i := skip; i < m.fields.Len(); i++ {
		f := m.fields.At(i)
		v := f.Span.Value(m.body)
		if f.Span.Quoted {
			parts = append(parts, `"`+v+`"`)
			continue
		}
		if v == "" {
			parts = append(parts, `""`)
			continue
		}
		decoded, err := hexcodec.HexToASCII([]byte(v))
		if err != nil {
			metrics.HexDecodeErrorCount.Inc()
			parts = append(parts, `""`)
			continue
		}
		parts = append(parts, `"`+string(decoded)+`"`)
	}
	return strings.Join(parts, string(sep))
}

// GetPathField behaves like GetField, but if the retrieved value is an
// unquoted (bare) hex run, it is decoded with hexcodec.HexToASCII before
// being returned; a quoted value, or a bare value that fails to decode,
// is returned as-is. It is named for its most common use -- PATH records'
// "name" field, which the kernel hex-encodes when the path contains
// unsafe characters -- but works for any field.
func (g *RecordGroup) GetPathField(name, def string, recordType uint32) string {
	span, body, ok := g.findField(name, recordType, 0)
	if !ok {
		return def
	}
	v := span.Value(body)
	if span.Quoted || v == "" {
		return v
	}
	decoded, err := hexcodec.HexToASCII([]byte(v))
	if err != nil {
		return v
	}
	return string(decoded)
}

// Release returns every message's buffer to the pool that allocated it.
// The group must not be used afterward.
func (g *RecordGroup) Release() {
	if g.pool == nil {
		return
	}
	for _, m := range g.messages {
		g.pool.Release(m.buf)
	}
	g.messages = nil
}
