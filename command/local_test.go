package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordParser(t *testing.T) {
	p := NewKeywordParser()
	tests := []struct {
		input string
		want  Command
	}{
		{"quit", Cancel},
		{"  EXIT ", Cancel},
		{"Cancel", Cancel},
		{"yes", Confirm},
		{"YES", Confirm},
		{"y", Confirm},
		{"no", None},
		{"", None},
		{"cancel my campaign", None},
		{"yes please", None},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := p.ParseCommand(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordParserHelpers(t *testing.T) {
	p := NewKeywordParser()
	assert.True(t, p.IsCancel("Quit"))
	assert.False(t, p.IsCancel("yes"))
	assert.True(t, p.IsConfirm("Yes"))
	assert.False(t, p.IsConfirm("nope"))
}

func TestCustomKeywords(t *testing.T) {
	p := &KeywordParser{CancelKeywords: []string{"stop"}, ConfirmKeywords: []string{"ok"}}
	assert.Equal(t, Cancel, p.Parse("STOP"))
	assert.Equal(t, Confirm, p.Parse("ok"))
	assert.Equal(t, None, p.Parse("quit"))
}
