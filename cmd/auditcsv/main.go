// Main package auditcsv implements a command line tool for converting a
// stream of raw audit netlink messages into one CSV row per completed
// record group.
package main

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/audit-info/assembler"
	"github.com/m-lab/audit-info/bufferpool"
	"github.com/m-lab/audit-info/fieldscan"
	"github.com/m-lab/audit-info/group"
	"github.com/m-lab/audit-info/replay"
	"github.com/m-lab/audit-info/zstd"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

const maxPoolSize = 4096

// Row is one CSV row summarizing a completed record group.
type Row struct {
	Serial      uint64 `csv:"serial"`
	TimeSeconds int64  `csv:"time_seconds"`
	TimeMillis  int    `csv:"time_millis"`
	NumMessages int    `csv:"num_messages"`
	Syscall     string `csv:"syscall"`
	Success     string `csv:"success"`
	Exe         string `csv:"exe"`
	Command     string `csv:"command"`
}

// toRow flattens a completed group into the summary fields Row exposes.
// It never errors: missing fields are left at their zero value, matching
// the generally-optional nature of audit fields across record types.
func toRow(g *group.RecordGroup) Row {
	row := Row{Serial: g.Serial, TimeSeconds: g.TimeSeconds, TimeMillis: g.TimeMillis, NumMessages: g.NumMessages()}
	row.Syscall, _ = g.GetField("syscall", "", 1300, 0)
	row.Success, _ = g.GetField("success", "", 1300, 0)
	row.Exe = g.GetPathField("exe", "", 1300)
	row.Command = g.ConcatValues(1309, 1, ' ') // EXECVE, skip argc
	return row
}

// readGroups assembles raw netlink messages from rdr into completed
// RecordGroups.
func readGroups(rdr io.Reader) ([]*group.RecordGroup, error) {
	pool := bufferpool.New(maxPoolSize)
	registry := fieldscan.NewDefaultRegistry()

	var groups []*group.RecordGroup
	a := assembler.New(pool, registry, func(g *group.RecordGroup) {
		groups = append(groups, g)
	})

	r := replay.NewReader(rdr)
	for {
		msg, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return groups, err
		}
		if err := a.OnRecord(msg.Type, msg.Body); err != nil {
			log.Println("dropping malformed record:", err)
		}
	}
	a.Flush()
	return groups, nil
}

func toCSV(groups []*group.RecordGroup, wtr io.Writer) error {
	rows := make([]Row, len(groups))
	for i, g := range groups {
		rows[i] = toRow(g)
	}
	return gocsv.Marshal(rows, wtr)
}

// openFile either opens a file, or opens and unzips a file that ends with .zst
func openFile(fn string) (io.ReadCloser, error) {
	if strings.HasSuffix(fn, ".zst") {
		return zstd.NewReader(fn), nil
	}
	return os.Open(fn)
}

// TODO handle gs: filenames.
func main() {
	args := os.Args[1:]

	var source io.ReadCloser
	var err error
	source = os.Stdin
	if len(args) == 1 {
		source, err = openFile(args[0])
		rtx.Must(err, "Could not open file %q", args[0])
	} else if len(args) > 1 {
		log.Fatal("Too many command-line arguments.")
	}
	defer source.Close()

	groups, err := readGroups(source)
	rtx.Must(err, "Could not read record groups")
	rtx.Must(toCSV(groups, os.Stdout), "Could not convert input to CSV")
}
