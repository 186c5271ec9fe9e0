// Package bufferpool manages the Small and Large recordbuf.Buffer free
// lists used while parsing a stream of audit messages.
//
// Grounded on AuditRecAllocator (auditrec_buffers_impl.hpp): a capped
// allocation count per tier plus a free list that recycled buffers are
// pushed back onto. spec.md's redesign diverges from the C++ original in
// one place: Large buffers are never pooled on release, only ever
// allocated fresh and then dropped, to avoid a single oversized message
// pinning 8970 bytes in the free list indefinitely. Only Small buffers are
// recycled.
package bufferpool

import (
	"errors"
	"sync"

	"github.com/m-lab/audit-info/metrics"
	"github.com/m-lab/audit-info/recordbuf"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrPoolExhausted is returned by GetSmall or GetLarge when that tier has
// reached maxPoolSize buffers and none are free to reuse.
var ErrPoolExhausted = errors.New("bufferpool: pool exhausted")

// Pool hands out recordbuf.Buffers from two independently capped tiers.
type Pool struct {
	maxPoolSize int

	mu          sync.Mutex
	smallFree   []*recordbuf.Buffer
	smallAllocs int
	largeAllocs int
}

// New returns a Pool where the Small tier allocates at most maxPoolSize
// buffers over its lifetime (released ones are reused), and the Large tier
// has at most maxPoolSize buffers outstanding at once.
func New(maxPoolSize int) *Pool {
	return &Pool{maxPoolSize: maxPoolSize}
}

// GetSmall returns a Small buffer, reusing one from the free list when
// available. It returns ErrPoolExhausted if maxPoolSize Small buffers are
// already allocated and none are free.
func (p *Pool) GetSmall() (*recordbuf.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.smallFree); n > 0 {
		b := p.smallFree[n-1]
		p.smallFree = p.smallFree[:n-1]
		return b, nil
	}
	if p.smallAllocs >= p.maxPoolSize {
		metrics.PoolExhaustedCount.With(prometheus.Labels{"tier": "small"}).Inc()
		return nil, ErrPoolExhausted
	}
	p.smallAllocs++
	return recordbuf.NewSmall(), nil
}

// GetLarge allocates a fresh Large buffer. It returns ErrPoolExhausted if
// maxPoolSize Large buffers are already outstanding, since Large buffers
// are never recycled and so never come back to reduce that count except
// through Release.
func (p *Pool) GetLarge() (*recordbuf.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.largeAllocs >= p.maxPoolSize {
		metrics.PoolExhaustedCount.With(prometheus.Labels{"tier": "large"}).Inc()
		return nil, ErrPoolExhausted
	}
	p.largeAllocs++
	return recordbuf.NewLarge(), nil
}

// Release returns b to the pool. Small buffers go back on the free list
// for reuse; Large buffers are dropped, freeing their slot in the Large
// allocation count.
func (p *Pool) Release(b *recordbuf.Buffer) {
	b.Reset()
	p.mu.Lock()
	defer p.mu.Unlock()
	switch b.Kind() {
	case recordbuf.Small:
		p.smallFree = append(p.smallFree, b)
	case recordbuf.Large:
		p.largeAllocs--
	}
}

// Stats reports the pool's current allocation counts, for metrics.
type Stats struct {
	SmallAllocated int
	SmallFree      int
	LargeAllocated int
}

// Stats returns a snapshot of p's current allocation state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		SmallAllocated: p.smallAllocs,
		SmallFree:      len(p.smallFree),
		LargeAllocated: p.largeAllocs,
	}
}
