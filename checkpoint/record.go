package checkpoint

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/sarchlab/cachewarm/datarecording"
)

// LineEntry is a row of the line table. SQLite integers are signed, so block
// ids are stored as int64 and read back with uint64(BlockID).
type LineEntry struct {
	CheckpointID       string
	Level              string
	Core               int
	SetID              int
	Position           int
	BlockID            int64
	State              string
	InInstructionCache bool
	InDataCache        bool
}

// DirectoryRow is a row of the directory table.
type DirectoryRow struct {
	CheckpointID string
	SetID        int
	Position     int
	BlockID      int64
	Replicas     string
	LastWriter   int
}

// Table names used by Record.
const (
	LineTable      = "checkpoint_lines"
	DirectoryTable = "checkpoint_directory"
)

// Shared cache lines are recorded with this core id.
const sharedCore = -1

// Record writes the checkpoint into two tables of the recorder. Replicas are
// stored as a comma-separated list and a missing last writer as -1.
func (c *Checkpoint) Record(recorder datarecording.DataRecorder) {
	recorder.CreateTable(LineTable, LineEntry{})
	recorder.CreateTable(DirectoryTable, DirectoryRow{})

	for _, core := range sortedCores(c.L2) {
		c.recordCache(recorder, "L1I", core, c.L1I[core])
		c.recordCache(recorder, "L1D", core, c.L1D[core])
		c.recordCache(recorder, "L2", core, c.L2[core])
	}

	c.recordCache(recorder, "Shared", sharedCore, c.SharedCache)

	for setID, set := range c.Directory {
		for pos, e := range set {
			row := DirectoryRow{
				CheckpointID: c.ID,
				SetID:        setID,
				Position:     pos,
				BlockID:      int64(e.BlockID),
				Replicas:     joinCores(e.Replicas),
				LastWriter:   -1,
			}

			if e.LastWriter != nil {
				row.LastWriter = *e.LastWriter
			}

			recorder.InsertData(DirectoryTable, row)
		}
	}

	recorder.Flush()
}

func (c *Checkpoint) recordCache(
	recorder datarecording.DataRecorder,
	level string,
	core int,
	cache Cache,
) {
	for setID, set := range cache {
		for pos, l := range set {
			recorder.InsertData(LineTable, LineEntry{
				CheckpointID:       c.ID,
				Level:              level,
				Core:               core,
				SetID:              setID,
				Position:           pos,
				BlockID:            int64(l.BlockID),
				State:              l.State.String(),
				InInstructionCache: l.InInstructionCache,
				InDataCache:        l.InDataCache,
			})
		}
	}
}

func joinCores(cores []int) string {
	s := make([]string, len(cores))
	for i, c := range cores {
		s[i] = strconv.Itoa(c)
	}

	return strings.Join(s, ",")
}

func sortedCores(m map[int]Cache) []int {
	return slices.Sorted(maps.Keys(m))
}
