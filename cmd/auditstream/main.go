// auditstream reads a stream of raw audit netlink messages, assembles
// them into record groups by serial number, and archives each completed
// group to a rotating zstd-compressed file tree, optionally notifying
// eventsocket clients as groups complete.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/audit-info/assembler"
	"github.com/m-lab/audit-info/bufferpool"
	"github.com/m-lab/audit-info/eventsocket"
	"github.com/m-lab/audit-info/fieldscan"
	"github.com/m-lab/audit-info/group"
	"github.com/m-lab/audit-info/groupid"
	"github.com/m-lab/audit-info/replay"
	"github.com/m-lab/audit-info/sink"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	promPort    = flag.String("prom", ":9090", "Prometheus metrics export address and port.")
	outputDir   = flag.String("output", ".", "Directory in which to write archived record groups.")
	maxPoolSize = flag.Int("pool.max", 4096, "Maximum number of buffers to allocate per tier (small/large).")
	fileAge     = flag.Duration("archive.rotate", 10*time.Minute, "How often to start a new archive file.")
	inputFile   = flag.String("input", "", "Raw netlink message file to read instead of stdin.")

	ctx, cancel = context.WithCancel(context.Background())
)

func openInput() io.ReadCloser {
	if *inputFile == "" {
		return os.Stdin
	}
	f, err := os.Open(*inputFile)
	rtx.Must(err, "Could not open %q", *inputFile)
	return f
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(ctx)
	defer cancel()

	var events eventsocket.Server = eventsocket.NullServer()
	if *eventsocket.Filename != "" {
		events = eventsocket.New(*eventsocket.Filename)
		rtx.Must(events.Listen(), "Could not listen on eventsocket")
		go events.Serve(ctx)
	}

	archive := sink.NewArchive(*outputDir, *fileAge)
	defer archive.Close()

	pool := bufferpool.New(*maxPoolSize)
	registry := fieldscan.NewDefaultRegistry()
	a := assembler.New(pool, registry, func(g *group.RecordGroup) {
		id, err := groupid.FromSerial(g.Serial)
		if err != nil {
			log.Println("could not compute group id:", err)
			id = ""
		}
		numMessages := g.NumMessages()
		if err := archive.WriteGroup(g); err != nil {
			log.Println("could not archive group:", err)
		}
		events.GroupCompleted(time.Now(), g.Serial, id, numMessages)
	})

	source := openInput()
	defer source.Close()

	r := replay.NewReader(source)
	for {
		msg, err := r.Next()
		if err == io.EOF {
			break
		}
		rtx.Must(err, "Could not read next netlink message")
		if err := a.OnRecord(msg.Type, msg.Body); err != nil {
			log.Println("dropping malformed record:", err)
		}
	}
	a.Flush()
}
