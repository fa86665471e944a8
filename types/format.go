package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// FormatSnapshotTable renders every slot of s as a markdown table. Unset
// slots are shown as "(unset)".
func FormatSnapshotTable(s Snapshot) string {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Key", "Value")
	for _, slot := range Slots {
		value := s.Get(slot)
		if value == "" {
			value = "(unset)"
		}
		_ = table.Append(slot.DisplayName(), string(slot), value)
	}
	_ = table.Render()
	return buf.String()
}

// FormatFilledTable renders only the populated slots, used for the final review.
func FormatFilledTable(s Snapshot) string {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Value")
	for _, slot := range s.Filled() {
		_ = table.Append(slot.DisplayName(), s.Get(slot))
	}
	_ = table.Render()
	return buf.String()
}

func FormatProgress(p Progress) string {
	line := fmt.Sprintf("[Progress: %d/%d fields collected]", p.Filled, p.Total)
	if len(p.Missing) == 0 {
		return line
	}
	names := make([]string, 0, len(p.Missing))
	for _, slot := range p.Missing {
		names = append(names, slot.DisplayName())
	}
	return line + "\n  Still needed: " + strings.Join(names, ", ")
}

// FormatValidationErrors lists errors sorted by field so output is stable.
func FormatValidationErrors(errs map[string]*FieldError) string {
	if len(errs) == 0 {
		return ""
	}
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var sb strings.Builder
	for _, field := range fields {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", field, errs[field].Message))
	}
	return strings.TrimRight(sb.String(), "\n")
}
