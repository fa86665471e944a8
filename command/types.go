package command

import "context"

type Command string

const (
	Cancel  Command = "cancel"
	Confirm Command = "confirm"
	None    Command = "none"
)

// Parser classifies raw user input into a Command.
type Parser interface {
	ParseCommand(ctx context.Context, input string) (Command, error)
}
