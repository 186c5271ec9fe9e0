// Package fieldscan scans the key=value body of an audit record without
// allocating per-field value strings: it copies each key into a string but
// records only the byte offsets of each value relative to the body, so that
// only values a consumer actually asks for are materialized into strings.
//
// Grounded on packetzero/auditutils' DefaultAuditRecFieldParser and
// SELinuxFieldsParser (auditrec_parser_impl.hpp): the scan loop, its
// trailing-key-with-no-value and unterminated-quote edge cases, and the
// SELinux leading-token special cases (avc:/policy/netlabel:/bare prefix)
// are all carried over from there; spec.md is authoritative where it
// differs (the SELinux predicate range, and treating an unterminated
// quoted value as a structural error).
package fieldscan

// Span is a byte range within a record body, relative to body[0]. Quoted
// records whether the value was written as a double-quoted string in the
// body (as opposed to a bare, possibly hex-encoded, run) -- ConcatValues
// and GetPathField use it to decide whether a value is eligible for
// hex-decoding.
type Span struct {
	Start  uint32
	Len    uint32
	Quoted bool
}

// Value materializes the string value for span s from body.
func (s Span) Value(body []byte) string {
	return string(body[s.Start : s.Start+s.Len])
}

// Field pairs a key with the span of its value, preserving the order the
// key first appeared in the body. ConcatValues relies on this order (it
// skips a fixed number of leading fields, such as argc, and walks the
// rest in the order they appear in the record).
type Field struct {
	Key  string
	Span Span
}

// FieldMap holds the fields scanned out of one record body. It supports
// map-like lookup by key (the last occurrence of a duplicate key wins,
// matching spec.md's map semantics) while also preserving body order for
// iteration.
type FieldMap struct {
	order []Field
	index map[string]int
}

// NewFieldMap returns an empty FieldMap ready to scan into.
func NewFieldMap() FieldMap {
	return FieldMap{index: make(map[string]int)}
}

// set records key=span, overwriting any earlier span for the same key but
// keeping the key's original position in body order.
func (m *FieldMap) set(key string, span Span) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[key]; ok {
		m.order[i].Span = span
		return
	}
	m.index[key] = len(m.order)
	m.order = append(m.order, Field{Key: key, Span: span})
}

// Get returns the span recorded for key, and whether it was present.
func (m FieldMap) Get(key string) (Span, bool) {
	i, ok := m.index[key]
	if !ok {
		return Span{}, false
	}
	return m.order[i].Span, true
}

// Len reports how many distinct keys were scanned.
func (m FieldMap) Len() int {
	return len(m.order)
}

// At returns the i'th field in body-scan order.
func (m FieldMap) At(i int) Field {
	return m.order[i]
}

// Scanner scans body into dest, returning true if a structural parse error
// was hit. Fields found before the error remain in dest.
type Scanner func(body []byte, dest *FieldMap) bool

// ScanDefault implements the default key=value / key="quoted value" grammar.
func ScanDefault(body []byte, dest *FieldMap) bool {
	return scan(body, dest, nil)
}

// scan runs the shared key/value walk. firstField, when non-nil, is given
// the chance to special-case the first field found (used by the SELinux
// dialect); it reports whether it fully handled the field itself.
func scan(body []byte, dest *FieldMap, firstField func(keyStart, keyEnd, valStart, valEnd int, quoted bool) bool) bool {
	n := len(body)
	start := 0
	first := true
	for start < n {
		p := start
		for p < n && body[p] != '=' {
			p++
		}
		if p == n {
			// No further '=' in the remaining body: stop silently.
			break
		}
		keyEnd := p
		p++ // skip '='
		if p == n {
			// Trailing "key=" with nothing after it at all.
			return true
		}
		quoted := false
		end := byte(' ')
		if body[p] == '"' {
			quoted = true
			end = '"'
			p++
		}
		valStart := p
		for p < n && body[p] != end {
			p++
		}
		if quoted && p == n {
			// Unterminated quoted value: structural error, nothing from
			// this field is kept.
			return true
		}

		handled := false
		if first {
			first = false
			if firstField != nil {
				handled = firstField(start, keyEnd, valStart, p, quoted)
			}
		}
		if !handled {
			key := string(body[start:keyEnd])
			dest.set(key, Span{Start: uint32(valStart), Len: uint32(p - valStart), Quoted: quoted})
		}

		if quoted {
			start = p + 2 // closing quote + following space
		} else {
			start = p + 1 // following space
		}
	}
	return false
}
