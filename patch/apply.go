package patch

import (
	"fmt"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/tbxark/adagent/types"
)

// Apply runs ops against the JSON document of s. Every slot key is always
// present in that document, so replace and remove never miss their path; a
// removed slot decodes back as unset.
func Apply(s types.Snapshot, ops []Operation) (types.Snapshot, error) {
	if len(ops) == 0 {
		return s, nil
	}
	if err := ValidateOperations(ops, SlotPaths()); err != nil {
		return s, err
	}
	doc, err := sonic.Marshal(s)
	if err != nil {
		return s, fmt.Errorf("marshal snapshot: %w", err)
	}
	raw, err := sonic.Marshal(ops)
	if err != nil {
		return s, fmt.Errorf("marshal patch operations: %w", err)
	}
	p, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return s, fmt.Errorf("decode patch: %w", err)
	}
	patched, err := p.Apply(doc)
	if err != nil {
		return s, fmt.Errorf("apply patch: %w", err)
	}
	var out types.Snapshot
	if err := sonic.Unmarshal(patched, &out); err != nil {
		return s, fmt.Errorf("patched document is not a snapshot: %w", err)
	}
	return out, nil
}
