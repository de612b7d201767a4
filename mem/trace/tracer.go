package trace

import (
	"log"

	"github.com/sarchlab/cachewarm/datarecording"
)

// A Tracer observes the events that are replayed.
type Tracer interface {
	Trace(e Event)
}

// accessEntry represents a replayed access in the database. The unsigned
// fields are stored as int64, the integer type of SQLite.
type accessEntry struct {
	Timestamp int64
	Core      int
	BlockID   int64
	What      string
}

// AccessTable is the table the database tracer writes into.
const AccessTable = "memory_accesses"

func what(e Event) string {
	switch {
	case e.IsInstruction:
		return "fetch"
	case e.IsWrite:
		return "write"
	default:
		return "read"
	}
}

// A logTracer prints every access as a line of text.
type logTracer struct {
	logger *log.Logger
}

// NewLogTracer creates a tracer that prints into a logger.
func NewLogTracer(logger *log.Logger) Tracer {
	t := new(logTracer)
	t.logger = logger

	return t
}

func (t *logTracer) Trace(e Event) {
	t.logger.Printf("access, %d, %d, 0x%x, %s\n",
		e.Timestamp, e.CoreID, e.BlockID, what(e))
}

// A dbTracer records every access into a database using the data recorder.
type dbTracer struct {
	dataRecorder datarecording.DataRecorder
}

// NewDBTracer creates a tracer that records into a data recorder.
func NewDBTracer(dataRecorder datarecording.DataRecorder) Tracer {
	t := &dbTracer{
		dataRecorder: dataRecorder,
	}

	t.dataRecorder.CreateTable(AccessTable, accessEntry{})

	return t
}

func (t *dbTracer) Trace(e Event) {
	t.dataRecorder.InsertData(AccessTable, accessEntry{
		Timestamp: int64(e.Timestamp),
		Core:      e.CoreID,
		BlockID:   int64(e.BlockID),
		What:      what(e),
	})
}
