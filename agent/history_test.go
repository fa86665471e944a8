package agent

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestKeepSystemLastNTrimmer(t *testing.T) {
	history := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("u1"),
		schema.AssistantMessage("a1", nil),
		schema.UserMessage("u2"),
		schema.AssistantMessage("a2", nil),
	}

	got := KeepSystemLastNTrimmer{N: 2}.Trim(history)
	assert.Equal(t, []*schema.Message{history[0], history[3], history[4]}, got)

	got = KeepSystemLastNTrimmer{N: 0}.Trim(history)
	assert.Equal(t, []*schema.Message{history[0]}, got)

	got = KeepSystemLastNTrimmer{N: 10}.Trim(history)
	assert.Equal(t, history, got)
}

func TestHistoryAppend(t *testing.T) {
	h := NewHistory(KeepSystemLastNTrimmer{N: 3})
	h.Append(schema.UserMessage("hi"), nil, schema.UserMessage("hi"))
	assert.Len(t, h.Messages(), 1)

	h.Append(schema.AssistantMessage("a", nil), schema.UserMessage("b"), schema.AssistantMessage("c", nil))
	msgs := h.Messages()
	assert.Len(t, msgs, 3)
	assert.Equal(t, "a", msgs[0].Content)

	h.Clear()
	assert.Empty(t, h.Messages())
}
