package agent

import (
	"github.com/cloudwego/eino/schema"
)

type Trimmer interface {
	Trim(history []*schema.Message) []*schema.Message
}

// KeepSystemLastNTrimmer keeps every system message plus the newest N
// others. N <= 0 keeps system messages only.
type KeepSystemLastNTrimmer struct {
	N int
}

func (t KeepSystemLastNTrimmer) Trim(history []*schema.Message) []*schema.Message {
	others := 0
	for _, m := range history {
		if m != nil && m.Role != schema.System {
			others++
		}
	}
	skip := others - max(t.N, 0)
	if skip <= 0 {
		return history
	}
	out := make([]*schema.Message, 0, len(history)-skip)
	for _, m := range history {
		if m == nil {
			continue
		}
		if m.Role != schema.System && skip > 0 {
			skip--
			continue
		}
		out = append(out, m)
	}
	return out
}

// History is the in-memory dialogue of one session, trimmed on every append.
type History struct {
	messages []*schema.Message
	trimmer  Trimmer
}

func NewHistory(trimmer Trimmer) *History {
	return &History{trimmer: trimmer}
}

// Append adds msgs, skipping a message identical to the one before it, and
// returns the trimmed history.
func (h *History) Append(msgs ...*schema.Message) []*schema.Message {
	h.messages = normalizeHistory(appendHistory(h.messages, msgs...))
	if h.trimmer != nil {
		h.messages = h.trimmer.Trim(h.messages)
	}
	return h.Messages()
}

func (h *History) Messages() []*schema.Message {
	return append([]*schema.Message(nil), h.messages...)
}

func (h *History) Clear() {
	h.messages = nil
}

func appendHistory(history []*schema.Message, msgs ...*schema.Message) []*schema.Message {
	if len(msgs) == 0 {
		return history
	}
	out := history
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if len(out) > 0 {
			last := out[len(out)-1]
			if last != nil && last.Role == msg.Role && last.Content == msg.Content {
				continue
			}
		}
		out = append(out, msg)
	}
	return out
}

func normalizeHistory(history []*schema.Message) []*schema.Message {
	if len(history) == 0 {
		return history
	}
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

