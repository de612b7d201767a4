// Package tscache provides set-associative caches that order their lines by
// logical timestamps instead of LRU queues.
package tscache

import "fmt"

// Status is the residency status of a line in a timestamp cache.
type Status uint8

// All the statuses that a line can be in.
const (
	Invalid Status = iota
	Instruction
	CleanData
	CleanInstructionAndData
	DirtyData
)

var statusNames = [...]string{
	Invalid:                 "Invalid",
	Instruction:             "Instruction",
	CleanData:               "CleanData",
	CleanInstructionAndData: "CleanInstructionAndData",
	DirtyData:               "DirtyData",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}

	return fmt.Sprintf("Status(%d)", s)
}

// IsValid returns true if the line holds a block.
func (s Status) IsValid() bool {
	return s != Invalid
}

// IsDirty returns true if the line holds a write that is not written back.
func (s Status) IsDirty() bool {
	return s == DirtyData
}

// IsData returns true if the line has been accessed as data.
func (s Status) IsData() bool {
	return s == CleanData || s == CleanInstructionAndData || s == DirtyData
}

// IsInstruction returns true if the line has been fetched as instructions.
func (s Status) IsInstruction() bool {
	return s == Instruction || s == CleanInstructionAndData
}

// An NXViolationError is raised when a block is observed as both executable
// and dirty.
type NXViolationError struct {
	BlockID       uint64
	Status        Status
	IsInstruction bool
	IsWrite       bool
}

func (e *NXViolationError) Error() string {
	return fmt.Sprintf(
		"NX violation on block 0x%x: status %s, instruction %t, write %t",
		e.BlockID, e.Status, e.IsInstruction, e.IsWrite)
}

func statusOfAccess(blockID uint64, isInstruction, isWrite bool) Status {
	switch {
	case isInstruction && isWrite:
		panic(&NXViolationError{
			BlockID:       blockID,
			Status:        Invalid,
			IsInstruction: true,
			IsWrite:       true,
		})
	case isInstruction:
		return Instruction
	case isWrite:
		return DirtyData
	default:
		return CleanData
	}
}

// AccessResultKind tells how an access was served by a set.
type AccessResultKind int

// The possible outcomes of an access.
const (
	Hit AccessResultKind = iota
	Miss
	MissWithEviction
	MissWithWriteBack
)

func (k AccessResultKind) String() string {
	switch k {
	case Hit:
		return "Hit"
	case Miss:
		return "Miss"
	case MissWithEviction:
		return "MissWithEviction"
	case MissWithWriteBack:
		return "MissWithWriteBack"
	}

	return fmt.Sprintf("AccessResultKind(%d)", int(k))
}

// AccessResult is the outcome of recording an access into a set. The evicted
// fields are only meaningful for MissWithEviction and MissWithWriteBack.
type AccessResult struct {
	Kind                 AccessResultKind
	EvictedBlockID       uint64
	EvictedIsInstruction bool
}
