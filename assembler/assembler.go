// Package assembler implements the call-driven state machine that groups
// a stream of audit records by event serial number and hands each
// complete group to a listener.
//
// Grounded on AuditCollectorImpl::onAuditRecord/flush
// (auditrec_collector_impl.hpp): records arrive one at a time; a new
// serial number flushes whatever group was in progress, and record type
// 1320 (AUDIT_EOE, "end of event") flushes the current group immediately
// regardless of whether another record for the same serial follows.
// Unlike the original, the listener is invoked synchronously from
// OnRecord/Flush rather than posted to an async queue, matching spec.md's
// call-driven design.
package assembler

import (
	"strconv"
	"sync"

	"github.com/m-lab/audit-info/bufferpool"
	"github.com/m-lab/audit-info/fieldscan"
	"github.com/m-lab/audit-info/group"
	"github.com/m-lab/audit-info/metrics"
	"github.com/m-lab/audit-info/preamble"
	"github.com/m-lab/audit-info/recordbuf"
	"github.com/prometheus/client_golang/prometheus"
)

// terminatorType is the audit record type that marks the end of a group
// ("end of event") even if no later record arrives with a different
// serial.
const terminatorType = 1320

// Listener is invoked once per completed group. The receiver owns g and
// must call g.Release() when done with it.
type Listener func(g *group.RecordGroup)

// GroupAssembler consumes raw audit messages and assembles them into
// RecordGroups by serial number.
type GroupAssembler struct {
	pool     *bufferpool.Pool
	registry *fieldscan.Registry
	listener Listener

	mu      sync.Mutex
	current *group.RecordGroup
}

// New returns a GroupAssembler that allocates buffers from pool, selects a
// field dialect from registry, and invokes listener on every completed
// group.
func New(pool *bufferpool.Pool, registry *fieldscan.Registry, listener Listener) *GroupAssembler {
	return &GroupAssembler{pool: pool, registry: registry, listener: listener}
}

// OnRecord feeds one raw audit message (the full "audit(...): k=v ..."
// text, as delivered over the netlink socket) of the given record type
// into the assembler.
//
// It returns the error from preamble.Parse, if any; a parse failure
// leaves the current group untouched and the message is dropped. It
// returns bufferpool.ErrPoolExhausted when no buffer is available; that
// message is dropped too, after any flush its new serial caused.
func (a *GroupAssembler) OnRecord(recordType uint32, raw []byte) error {
	pre, err := preamble.Parse(raw)
	if err != nil {
		metrics.RecordsDroppedCount.With(prometheus.Labels{"reason": "bad_preamble"}).Inc()
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil && a.current.Serial != pre.Serial {
		a.flushLockedReason("serial_change")
	}
	if a.current == nil {
		a.current = group.New(pre.Serial, pre.TimeSeconds, pre.TimeMillis, a.pool, a.registry)
	}

	buf, err := a.allocate(len(raw), recordType, pre.Serial)
	if err != nil {
		metrics.RecordsDroppedCount.With(prometheus.Labels{"reason": "pool_exhausted"}).Inc()
		return err
	}
	buf.SetBytes(raw)
	body := buf.Bytes()[pre.BodyOffset:]

	// The body is not scanned into fields here: the group scans it lazily,
	// the first time a consumer asks one of its records for a field.
	a.current.Add(buf, body)
	metrics.RecordsIngestedCount.With(prometheus.Labels{"record_type": strconv.FormatUint(uint64(recordType), 10)}).Inc()

	if recordType == terminatorType {
		a.flushLockedReason("terminator")
	}
	return nil
}

// allocate gets a buffer sized to fit n bytes, preferring the Small tier
// and falling back to Large.
func (a *GroupAssembler) allocate(n int, recordType uint32, serial uint64) (*recordbuf.Buffer, error) {
	if n <= recordbuf.SmallSize {
		if b, err := a.pool.GetSmall(); err == nil {
			b.RecordType, b.Serial = recordType, serial
			return b, nil
		}
	}
	b, err := a.pool.GetLarge()
	if err != nil {
		return nil, err
	}
	b.RecordType, b.Serial = recordType, serial
	return b, nil
}

// Flush emits whatever group is currently in progress, even though it
// never saw a type-1320 terminator record. Callers should call this when
// the input stream ends, to avoid losing the last, incomplete group.
func (a *GroupAssembler) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLockedReason("flush")
}

func (a *GroupAssembler) flushLockedReason(reason string) {
	if a.current == nil {
		return
	}
	g := a.current
	a.current = nil
	metrics.GroupsEmittedCount.With(prometheus.Labels{"reason": reason}).Inc()
	metrics.GroupSizeHistogram.Observe(float64(g.NumMessages()))
	a.listener(g)
}
