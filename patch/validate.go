package patch

import (
	"errors"
	"fmt"

	"github.com/tbxark/adagent/types"
)

var (
	ErrPathNotAllowed = errors.New("path is not an allowed slot")
	ErrOpNotAllowed   = errors.New("operation is not allowed")
)

// SlotPaths returns the JSON pointers of every snapshot slot.
func SlotPaths() map[string]bool {
	paths := make(map[string]bool, len(types.Slots))
	for _, slot := range types.Slots {
		paths[slot.JSONPointer()] = true
	}
	return paths
}

// ValidateOperations accepts only replace and remove on paths in allowedPaths.
func ValidateOperations(ops []Operation, allowedPaths map[string]bool) error {
	for i, op := range ops {
		if op.Op != OperationReplace && op.Op != OperationRemove {
			return fmt.Errorf("operation %d: %w: %q", i, ErrOpNotAllowed, op.Op)
		}
		if !allowedPaths[op.Path] {
			return fmt.Errorf("operation %d: %w: %q", i, ErrPathNotAllowed, op.Path)
		}
	}
	return nil
}
