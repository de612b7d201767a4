package tscache

// A Line is a block held by a timestamp cache.
type Line struct {
	BlockID   uint64
	Timestamp uint64
	Status    Status
}

// A Set is a fixed number of ways. Timestamps carry the recency order, so no
// LRU queue is kept.
//
// Ways are filled in order until the set is full. The fill pointer only grows,
// so it also tells how warm the set is.
type Set struct {
	lines        []Line
	fill         int
	victimFinder VictimFinder
}

// NewSet creates a set with numWays empty ways.
func NewSet(numWays int, victimFinder VictimFinder) *Set {
	if numWays <= 0 {
		panic("tscache: associativity must be larger than 0")
	}

	s := new(Set)
	s.lines = make([]Line, numWays)
	s.victimFinder = victimFinder

	return s
}

// NumWays returns the associativity of the set.
func (s *Set) NumWays() int {
	return len(s.lines)
}

// Lines exposes the ways of the set. Callers must not modify the slice.
func (s *Set) Lines() []Line {
	return s.lines
}

func (s *Set) lookup(blockID uint64) int {
	for i := 0; i < s.fill; i++ {
		if s.lines[i].BlockID == blockID && s.lines[i].Status != Invalid {
			return i
		}
	}

	return -1
}

// invalidatedWay finds an invalidated way that last held blockID, so that a
// block never occupies two ways of a set.
func (s *Set) invalidatedWay(blockID uint64) int {
	for i := 0; i < s.fill; i++ {
		if s.lines[i].BlockID == blockID && s.lines[i].Status == Invalid {
			return i
		}
	}

	return -1
}

// Peek refreshes the timestamp of blockID if it is in the set and promotes its
// status. It never inserts. It returns false if the block is not present.
func (s *Set) Peek(blockID, ts uint64, isInstruction, isWrite bool) bool {
	way := s.lookup(blockID)
	if way < 0 {
		return false
	}

	line := &s.lines[way]
	line.Status = promote(line, isInstruction, isWrite)
	line.Timestamp = ts

	return true
}

func promote(line *Line, isInstruction, isWrite bool) Status {
	if isInstruction && isWrite {
		panic(nxViolation(line, isInstruction, isWrite))
	}

	switch line.Status {
	case Instruction:
		if isWrite {
			panic(nxViolation(line, isInstruction, isWrite))
		}

		if !isInstruction {
			return CleanInstructionAndData
		}
	case CleanData:
		if isInstruction {
			return CleanInstructionAndData
		}

		if isWrite {
			return DirtyData
		}
	case CleanInstructionAndData:
		if isWrite {
			panic(nxViolation(line, isInstruction, isWrite))
		}
	case DirtyData:
		if isInstruction {
			panic(nxViolation(line, isInstruction, isWrite))
		}
	}

	return line.Status
}

func nxViolation(line *Line, isInstruction, isWrite bool) *NXViolationError {
	return &NXViolationError{
		BlockID:       line.BlockID,
		Status:        line.Status,
		IsInstruction: isInstruction,
		IsWrite:       isWrite,
	}
}

// Access records an access into the set. A hit refreshes the line. A miss
// fills a free way, or replaces the way chosen by the victim finder.
func (s *Set) Access(
	blockID, ts uint64,
	isInstruction, isWrite bool,
) AccessResult {
	if s.Peek(blockID, ts, isInstruction, isWrite) {
		return AccessResult{Kind: Hit}
	}

	newLine := Line{
		BlockID:   blockID,
		Timestamp: ts,
		Status:    statusOfAccess(blockID, isInstruction, isWrite),
	}

	if way := s.invalidatedWay(blockID); way >= 0 {
		s.lines[way] = newLine
		return AccessResult{Kind: Miss}
	}

	if s.fill < len(s.lines) {
		s.lines[s.fill] = newLine
		s.fill++

		return AccessResult{Kind: Miss}
	}

	way := s.victimFinder.FindVictim(s)
	victim := s.lines[way]
	s.lines[way] = newLine

	switch {
	case victim.Status == Invalid:
		return AccessResult{Kind: Miss}
	case victim.Status.IsDirty():
		return AccessResult{
			Kind:           MissWithWriteBack,
			EvictedBlockID: victim.BlockID,
		}
	default:
		return AccessResult{
			Kind:                 MissWithEviction,
			EvictedBlockID:       victim.BlockID,
			EvictedIsInstruction: victim.Status.IsInstruction(),
		}
	}
}

// Invalidate removes blockID from the set, marks the way Invalid, and returns
// the content the way held before.
func (s *Set) Invalidate(blockID uint64) (Line, bool) {
	way := s.lookup(blockID)
	if way < 0 {
		return Line{}, false
	}

	prior := s.lines[way]
	s.lines[way].Status = Invalid

	return prior, true
}

// WarmedCount returns how many ways have ever been filled.
func (s *Set) WarmedCount() int {
	return s.fill
}

// Len returns the number of valid lines.
func (s *Set) Len() int {
	n := 0
	for i := 0; i < s.fill; i++ {
		if s.lines[i].Status != Invalid {
			n++
		}
	}

	return n
}

// ForEach calls fn with every valid line, in way order.
func (s *Set) ForEach(fn func(Line)) {
	for i := 0; i < s.fill; i++ {
		if s.lines[i].Status != Invalid {
			fn(s.lines[i])
		}
	}
}

// ForEachEntry calls fn with every way that has been filled, including the
// ways that were invalidated. Invalidated ways keep the block id and the
// timestamp of the last access.
func (s *Set) ForEachEntry(fn func(Line)) {
	for i := 0; i < s.fill; i++ {
		fn(s.lines[i])
	}
}
