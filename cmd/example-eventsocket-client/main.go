// example-eventsocket-client is a minimal reference implementation of an
// auditstream eventsocket client.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/audit-info/eventsocket"
)

var (
	mainCtx, mainCancel = context.WithCancel(context.Background())
)

// event contains the fields of one GroupCompleted notification.
type event struct {
	timestamp   time.Time
	serial      uint64
	groupID     string
	numMessages int
}

// handler implements the eventsocket.Handler interface.
type handler struct {
	events chan event
}

// GroupCompleted is called synchronously and blocking for every completed
// group notification.
func (h *handler) GroupCompleted(ctx context.Context, timestamp time.Time, serial uint64, groupID string, numMessages int) {
	log.Println("completed", serial, groupID, numMessages, timestamp)
	h.events <- event{timestamp: timestamp, serial: serial, groupID: groupID, numMessages: numMessages}
}

// ProcessEvents reads and processes events received by the handler.
func (h *handler) ProcessEvents(ctx context.Context) {
	for {
		select {
		case e := <-h.events:
			log.Println("processing", e)
		case <-ctx.Done():
			log.Println("shutdown")
			return
		}
	}
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")
	defer mainCancel()

	if *eventsocket.Filename == "" {
		panic("-auditinfo.eventsocket path is required")
	}

	h := &handler{events: make(chan event)}

	// Process events received by the eventsocket handler. The goroutine will
	// block until a group completion event occurs.
	go h.ProcessEvents(mainCtx)

	// Begin listening on the eventsocket for new events, and dispatch them to
	// the given handler.
	go eventsocket.MustRun(mainCtx, *eventsocket.Filename, h)

	<-mainCtx.Done()
}
