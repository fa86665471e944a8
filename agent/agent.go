package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
)

var _ adk.Agent = (*Agent)(nil)

// ErrNoUserInput is reported when a run carries no non-blank user message.
var ErrNoUserInput = errors.New("no user message in input")

// Agent serves a Driver through an adk.Runner. Every run is one conversation
// turn: the latest user message goes to Driver.Turn, the reply comes back as
// an assistant message and the TurnResult rides along as customized output.
// Once the session reaches a terminal phase the event carries an exit action.
type Agent struct {
	name        string
	description string
	driver      *Driver
}

func NewAgent(name, description string, driver *Driver) *Agent {
	return &Agent{
		name:        name,
		description: description,
		driver:      driver,
	}
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			if e := recover(); e != nil {
				gen.Send(&adk.AgentEvent{AgentName: a.name, Err: fmt.Errorf("recover from panic: %v", e)})
			}
			gen.Close()
		}()
		gen.Send(a.turn(ctx, input))
	}()
	return iter
}

func (a *Agent) turn(ctx context.Context, input *adk.AgentInput) *adk.AgentEvent {
	event := &adk.AgentEvent{AgentName: a.name}
	if a.driver.Phase().Terminal() {
		event.Action = adk.NewExitAction()
		return event
	}
	text, ok := lastUserText(input)
	if !ok {
		event.Err = ErrNoUserInput
		return event
	}
	res, err := a.driver.Turn(ctx, text)
	if err != nil {
		event.Err = fmt.Errorf("campaign turn: %w", err)
		return event
	}
	event.Output = &adk.AgentOutput{
		MessageOutput: &adk.MessageVariant{
			Message: schema.AssistantMessage(res.Message, nil),
			Role:    schema.Assistant,
		},
		CustomizedOutput: res,
	}
	if res.Phase.Terminal() {
		event.Action = adk.NewExitAction()
	}
	return event
}

func lastUserText(input *adk.AgentInput) (string, bool) {
	if input == nil {
		return "", false
	}
	for i := len(input.Messages) - 1; i >= 0; i-- {
		msg := input.Messages[i]
		if msg == nil || msg.Role != schema.User {
			continue
		}
		if text := strings.TrimSpace(msg.Content); text != "" {
			return text, true
		}
	}
	return "", false
}
