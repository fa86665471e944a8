// Package console is the line-based user interaction surface of the agent.
package console

import (
	"context"
	"errors"
)

type Style string

const (
	StylePlain     Style = "plain"
	StyleAssistant Style = "assistant"
	StyleInfo      Style = "info"
	StyleSuccess   Style = "success"
	StyleWarning   Style = "warning"
	StyleError     Style = "error"
	StyleProgress  Style = "progress"
	StyleHeading   Style = "heading"
)

// ErrClosed is returned by Ask when no more input will arrive.
var ErrClosed = errors.New("console input closed")

type IO interface {
	Ask(ctx context.Context, prompt string) (string, error)
	Say(style Style, msg string)
	Table(header []string, rows [][]string)
}
