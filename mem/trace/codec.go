// Package trace reads, writes and replays memory access traces.
//
// A trace file is a sequence of fixed size little-endian records. Each record
// holds the block id (8 bytes), the timestamp (8 bytes), a flag byte, and the
// core id (1 byte). Bit 0 of the flags marks writes and bit 1 marks
// instruction fetches.
package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/cachewarm/mem/hierarchy"
)

// Event is a memory access of a core.
type Event = hierarchy.Event

// RecordSize is the number of bytes of an encoded event.
const RecordSize = 18

// MaxCores is the number of cores a trace can describe.
const MaxCores = 256

const (
	flagWrite       = 1 << 0
	flagInstruction = 1 << 1
)

func encode(buf []byte, e Event) error {
	if e.CoreID < 0 || e.CoreID >= MaxCores {
		return fmt.Errorf("core %d cannot be encoded", e.CoreID)
	}

	if e.IsInstruction && e.IsWrite {
		return fmt.Errorf("block 0x%x is written by an instruction fetch",
			e.BlockID)
	}

	var flags byte
	if e.IsWrite {
		flags |= flagWrite
	}

	if e.IsInstruction {
		flags |= flagInstruction
	}

	binary.LittleEndian.PutUint64(buf[0:8], e.BlockID)
	binary.LittleEndian.PutUint64(buf[8:16], e.Timestamp)
	buf[16] = flags
	buf[17] = byte(e.CoreID)

	return nil
}

func decode(buf []byte) (Event, error) {
	flags := buf[16]
	if flags&^(flagWrite|flagInstruction) != 0 {
		return Event{}, fmt.Errorf("unknown flags 0x%x", flags)
	}

	e := Event{
		BlockID:       binary.LittleEndian.Uint64(buf[0:8]),
		Timestamp:     binary.LittleEndian.Uint64(buf[8:16]),
		IsWrite:       flags&flagWrite != 0,
		IsInstruction: flags&flagInstruction != 0,
		CoreID:        int(buf[17]),
	}

	if e.IsWrite && e.IsInstruction {
		return Event{}, fmt.Errorf("block 0x%x is written by an instruction fetch",
			e.BlockID)
	}

	return e, nil
}

// A Writer encodes events.
type Writer struct {
	w   *bufio.Writer
	buf [RecordSize]byte
}

// NewWriter creates a writer. Events are buffered until Flush is called.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes an event.
func (w *Writer) Write(e Event) error {
	err := encode(w.buf[:], e)
	if err != nil {
		return err
	}

	_, err = w.w.Write(w.buf[:])

	return err
}

// Flush writes the buffered events.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// A Reader decodes events.
type Reader struct {
	r     *bufio.Reader
	buf   [RecordSize]byte
	count uint64
}

// NewReader creates a reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read decodes the next event. It returns io.EOF when the trace ends at a
// record boundary.
func (r *Reader) Read() (Event, error) {
	_, err := io.ReadFull(r.r, r.buf[:])
	if errors.Is(err, io.EOF) {
		return Event{}, io.EOF
	}

	if err != nil {
		return Event{}, fmt.Errorf("record %d: %w", r.count, err)
	}

	e, err := decode(r.buf[:])
	if err != nil {
		return Event{}, fmt.Errorf("record %d: %w", r.count, err)
	}

	r.count++

	return e, nil
}

// Count returns the number of events read so far.
func (r *Reader) Count() uint64 {
	return r.count
}
