package fieldscan

import "sync"

// Predicate reports whether a dialect's scanner should handle record type t.
type Predicate func(t uint32) bool

type entry struct {
	predicate Predicate
	scanner   Scanner
}

// Registry dispatches a record type to the Scanner that should parse its
// body. Entries are consulted in registration order; the first match wins.
// A Registry with no matching entry falls back to ScanDefault.
//
// Grounded on AuditRecParserImpl's list of registered field parsers
// (auditrec_parser_impl.hpp), generalized from a fixed two-entry list to an
// ordered slice so callers can register additional dialects.
type Registry struct {
	mu      sync.Mutex
	entries []entry
}

// NewRegistry returns an empty Registry; Select on it always returns
// ScanDefault.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry returns a Registry pre-populated with the SELinux
// dialect for the record types HandlesSELinuxType matches.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(HandlesSELinuxType, ScanSELinux)
	return r
}

// Register appends a dialect. Scanners registered earlier take priority
// over ones registered later for types they both match.
func (r *Registry) Register(p Predicate, s Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{predicate: p, scanner: s})
}

// Select returns the Scanner to use for recordType, falling back to
// ScanDefault if no registered dialect claims it. The registry's mutex is
// only taken when entries exist, so an empty Registry never pays for
// synchronization.
func (r *Registry) Select(recordType uint32) Scanner {
	if len(r.entries) == 0 {
		return ScanDefault
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.predicate(recordType) {
			return e.scanner
		}
	}
	return ScanDefault
}
