// Package sink writes completed audit record groups to rotating,
// zstd-compressed archive files.
//
// Grounded on saver.NewMarshaller/runMarshaller (saver/saver.go): a small
// pool of marshaller goroutines reads Tasks off a channel and writes each
// one, length-prefixed, to a zstd.NewWriter-backed file; unlike the
// teacher, there is one file-rotation boundary (time-based) rather than
// one Connection per TCP flow, since audit groups don't have a long-lived
// connection to attach rotation state to.
package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/m-lab/audit-info/group"
	"github.com/m-lab/audit-info/groupid"
	"github.com/m-lab/audit-info/metrics"
	"github.com/m-lab/audit-info/zstd"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrNoMarshallers describes the absence of any running marshaller
// goroutine. No function in this package returns it.
var ErrNoMarshallers = errors.New("sink: zero marshallers")

// Task represents a single marshalling task. A nil Group means close the
// writer instead of writing anything.
type Task struct {
	Group  *group.RecordGroup
	Writer io.WriteCloser
}

// MarshalChan is a channel of marshalling tasks.
type MarshalChan chan<- Task

func runMarshaller(taskChan <-chan Task, wg *sync.WaitGroup) {
	for task := range taskChan {
		if task.Group == nil {
			task.Writer.Close()
			continue
		}
		start := time.Now()
		if err := writeGroup(task.Writer, task.Group); err != nil {
			log.Println("sink: write error:", err)
			metrics.ErrorCount.With(prometheus.Labels{"type": "sink_write"}).Inc()
		}
		metrics.SinkWriteLatencyHistogram.Observe(time.Since(start).Seconds())
		task.Group.Release()
	}
	wg.Done()
}

// writeGroup writes every message in g to w, each prefixed by its varint
// length, mirroring the length-prefixed record framing saver.go uses for
// marshaled protobufs: size-header, then payload, per message.
func writeGroup(w io.WriteCloser, g *group.RecordGroup) error {
	sizeBuf := make([]byte, binary.MaxVarintLen64)
	for i := 0; i < g.NumMessages(); i++ {
		body := g.Body(i)
		n := binary.PutUvarint(sizeBuf, uint64(len(body)))
		if _, err := w.Write(sizeBuf[:n]); err != nil {
			return err
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// NewMarshaller starts a marshaller goroutine reading from the returned
// channel, and registers it with wg so callers can wait for it to drain.
func NewMarshaller(wg *sync.WaitGroup) MarshalChan {
	taskChan := make(chan Task, 100)
	wg.Add(1)
	go runMarshaller(taskChan, wg)
	return taskChan
}

// Archive manages one rotating output file.
type Archive struct {
	dir          string
	fileAgeLimit time.Duration

	writer     io.WriteCloser
	expiration time.Time
	sequence   int
}

// NewArchive returns an Archive writing zstd-compressed files under dir,
// rotating to a new file every fileAgeLimit.
func NewArchive(dir string, fileAgeLimit time.Duration) *Archive {
	return &Archive{dir: dir, fileAgeLimit: fileAgeLimit}
}

// WriteGroup writes g to the archive's current file, rotating first if
// the file has aged out. The group is released back to its pool once
// written.
func (a *Archive) WriteGroup(g *group.RecordGroup) error {
	if a.writer == nil || time.Now().After(a.expiration) {
		if err := a.rotate(g); err != nil {
			return err
		}
	}
	err := writeGroup(a.writer, g)
	g.Release()
	return err
}

func (a *Archive) rotate(g *group.RecordGroup) error {
	if a.writer != nil {
		a.writer.Close()
	}
	id, err := groupid.FromSerial(g.Serial)
	if err != nil {
		id = fmt.Sprintf("serial%d", g.Serial)
	}
	name := fmt.Sprintf("%s/%s_%05d.zst", a.dir, id, a.sequence)
	a.sequence++
	w, err := zstd.NewWriter(name)
	if err != nil {
		return err
	}
	a.writer = w
	a.expiration = time.Now().Add(a.fileAgeLimit)
	metrics.NewFileCount.Inc()
	return nil
}

// Close closes the archive's current file, if any.
func (a *Archive) Close() error {
	if a.writer == nil {
		return nil
	}
	return a.writer.Close()
}
