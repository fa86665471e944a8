package patch

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tbxark/adagent/types"
)

// MergeOps builds replace operations for every non-empty proposed slot that
// differs from current. Objective and music option are upper-cased; the other
// slots are trimmed. A music option outside EXISTING, CUSTOM and NO_MUSIC is
// dropped.
func MergeOps(current, proposed types.Snapshot) []Operation {
	var ops []Operation
	for _, slot := range types.Slots {
		value := normalize(slot, proposed.Get(slot))
		if value == "" || value == current.Get(slot) {
			continue
		}
		if slot == types.SlotMusicOption && !knownMusicOption(value) {
			slog.Debug("Dropping unknown music option", "value", value)
			continue
		}
		ops = append(ops, Operation{Op: OperationReplace, Path: slot.JSONPointer(), Value: value})
	}
	return ops
}

// Merge applies the non-empty fields of proposed on top of current. Empty
// proposed values never clear a populated slot.
func Merge(current, proposed types.Snapshot) (types.Snapshot, error) {
	merged, err := Apply(current, MergeOps(current, proposed))
	if err != nil {
		return current, fmt.Errorf("merge collected data: %w", err)
	}
	return merged, nil
}

// ClearOps builds remove operations for the populated slots among slots.
func ClearOps(current types.Snapshot, slots ...types.Slot) []Operation {
	var ops []Operation
	for _, slot := range slots {
		if current.Get(slot) == "" {
			continue
		}
		ops = append(ops, Operation{Op: OperationRemove, Path: slot.JSONPointer()})
	}
	return ops
}

// Clear unsets slots so they are collected again.
func Clear(current types.Snapshot, slots ...types.Slot) (types.Snapshot, error) {
	cleared, err := Apply(current, ClearOps(current, slots...))
	if err != nil {
		return current, fmt.Errorf("clear slots: %w", err)
	}
	return cleared, nil
}

func knownMusicOption(value string) bool {
	switch value {
	case types.MusicExisting, types.MusicCustom, types.MusicNone:
		return true
	}
	return false
}

func normalize(slot types.Slot, value string) string {
	value = strings.TrimSpace(value)
	switch slot {
	case types.SlotObjective, types.SlotMusicOption:
		return strings.ToUpper(value)
	default:
		return value
	}
}
