package command

import (
	"context"
	"slices"
	"strings"
)

var _ Parser = (*KeywordParser)(nil)

// KeywordParser matches the whole trimmed input against keyword lists,
// ignoring case.
type KeywordParser struct {
	CancelKeywords  []string
	ConfirmKeywords []string
}

func NewKeywordParser() *KeywordParser {
	return &KeywordParser{
		CancelKeywords:  []string{"quit", "exit", "cancel"},
		ConfirmKeywords: []string{"yes", "y"},
	}
}

func (p *KeywordParser) ParseCommand(ctx context.Context, input string) (Command, error) {
	return p.Parse(input), nil
}

func (p *KeywordParser) Parse(input string) Command {
	normalized := strings.ToLower(strings.TrimSpace(input))
	switch {
	case slices.Contains(p.CancelKeywords, normalized):
		return Cancel
	case slices.Contains(p.ConfirmKeywords, normalized):
		return Confirm
	default:
		return None
	}
}

func (p *KeywordParser) IsCancel(input string) bool {
	return p.Parse(input) == Cancel
}

// IsConfirm is true only for an explicit confirmation; anything else,
// including empty input, counts as a refusal.
func (p *KeywordParser) IsConfirm(input string) bool {
	return p.Parse(input) == Confirm
}
