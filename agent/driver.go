package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/tbxark/adagent/command"
	"github.com/tbxark/adagent/config"
	"github.com/tbxark/adagent/console"
	"github.com/tbxark/adagent/dialogue"
	"github.com/tbxark/adagent/metrics"
	"github.com/tbxark/adagent/patch"
	"github.com/tbxark/adagent/submit"
	"github.com/tbxark/adagent/types"
	"github.com/tbxark/adagent/validate"
)

const userPrompt = "You:"

// Driver runs one ad creation session: it owns the snapshot and the phase
// and routes every user turn through the reconciler.
type Driver struct {
	conf       *config.Config
	validator  *validate.Validator
	reconciler *dialogue.Reconciler
	submitter  *submit.Controller
	io         console.IO
	commands   *command.KeywordParser
	metrics    *metrics.Metrics
	history    *History
	logger     *slog.Logger

	sessionID string
	phase     types.Phase
	snapshot  types.Snapshot
	outcome   *submit.Outcome
}

type Option func(*Driver)

func WithCommandParser(p *command.KeywordParser) Option {
	return func(d *Driver) {
		d.commands = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

func WithTrimmer(t Trimmer) Option {
	return func(d *Driver) {
		d.history = NewHistory(t)
	}
}

// WithSnapshot starts the session from pre-filled data.
func WithSnapshot(s types.Snapshot) Option {
	return func(d *Driver) {
		d.snapshot = s
	}
}

// NewDriver wires a session. The driver answers the retry prompts of
// submitter through io.
func NewDriver(
	conf *config.Config,
	validator *validate.Validator,
	reconciler *dialogue.Reconciler,
	submitter *submit.Controller,
	io console.IO,
	opts ...Option,
) *Driver {
	d := &Driver{
		conf:       conf,
		validator:  validator,
		reconciler: reconciler,
		submitter:  submitter,
		io:         io,
		commands:   command.NewKeywordParser(),
		history:    NewHistory(KeepSystemLastNTrimmer{N: conf.History.KeepLast}),
		sessionID:  uuid.NewString(),
		phase:      types.PhaseCollecting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.logger = slog.With("session", d.sessionID)
	submitter.SetConsenter(submit.ConsenterFunc(d.confirmRetry))
	return d
}

func (d *Driver) SessionID() string {
	return d.sessionID
}

func (d *Driver) Phase() types.Phase {
	return d.phase
}

func (d *Driver) Snapshot() types.Snapshot {
	return d.snapshot
}

func (d *Driver) History() []*schema.Message {
	return d.history.Messages()
}

func (d *Driver) Result() *Result {
	return &Result{
		SessionID: d.sessionID,
		Phase:     d.phase,
		Snapshot:  d.snapshot,
		Outcome:   d.outcome,
	}
}

// Greet asks for whatever the current snapshot still lacks.
func (d *Driver) Greet(ctx context.Context) string {
	opening := d.reconciler.Reconcile(ctx, &dialogue.Request{Snapshot: d.snapshot})
	d.assistant(opening.UserMessage)
	return opening.UserMessage
}

// Run greets the user and loops turns until the session ends or input runs
// out.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	d.Greet(ctx)

	for !d.phase.Terminal() {
		input, err := d.io.Ask(ctx, userPrompt)
		if errors.Is(err, console.ErrClosed) {
			d.logger.Info("Input closed, ending session", "phase", d.phase)
			break
		}
		if err != nil {
			return d.Result(), fmt.Errorf("read user input: %w", err)
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		if _, err := d.Turn(ctx, input); err != nil {
			return d.Result(), err
		}
	}
	return d.Result(), nil
}

// Turn processes one line of user input.
func (d *Driver) Turn(ctx context.Context, input string) (*TurnResult, error) {
	ctx = callbacks.EnsureRunInfo(ctx, "AdCampaignDriver", "Agent")
	ctx = callbacks.OnStart(ctx, map[string]any{
		"session":  d.sessionID,
		"input":    input,
		"phase":    string(d.phase),
		"snapshot": d.snapshot,
	})

	defer func() {
		if r := recover(); r != nil {
			callbacks.OnError(ctx, fmt.Errorf("panic in Driver.Turn: %v", r))
			panic(r)
		}
	}()

	res, err := d.turn(ctx, input)
	if err != nil {
		callbacks.OnError(ctx, err)
		return nil, err
	}

	callbacks.OnEnd(ctx, map[string]any{
		"phase":     string(res.Phase),
		"next_step": string(res.Response.NextStep),
		"snapshot":  res.Snapshot,
	})
	return res, nil
}

func (d *Driver) turn(ctx context.Context, input string) (*TurnResult, error) {
	if d.phase.Terminal() {
		return nil, ErrSessionClosed
	}
	res := &TurnResult{}
	if d.commands.IsCancel(input) {
		d.abort()
		return d.finish(res), nil
	}

	resp := d.reconciler.Reconcile(ctx, &dialogue.Request{
		Snapshot:  d.snapshot,
		UserInput: input,
		History:   d.history.Messages(),
	})
	res.Response = resp
	res.Message = resp.UserMessage
	d.history.Append(schema.UserMessage(input))

	merged, err := patch.Merge(d.snapshot, resp.CollectedData)
	if err != nil {
		d.logger.Warn("Failed to merge collected data", "error", err)
	} else {
		d.snapshot = merged
	}
	d.logger.Debug("Turn reconciled", "next_step", resp.NextStep, "snapshot", d.snapshot)
	d.assistant(resp.UserMessage)

	var flowErr error
	switch resp.NextStep {
	case types.StepValidation:
		flowErr = d.validateAndSubmit(ctx, res)
	case types.StepAskMusicID:
		flowErr = d.runMusic(ctx, flowMusicID)
	case types.StepAskCustomMusic:
		flowErr = d.runMusic(ctx, flowCustomMusic)
	}
	switch {
	case errors.Is(flowErr, errAborted):
		d.abort()
	case errors.Is(flowErr, ErrTooManyAttempts):
		res.MusicErr = flowErr
		d.io.Say(console.StyleError, "Too many music attempts. Let's continue with the rest of the campaign; you can pick music again later.")
		d.phase = types.PhaseCollecting
	case flowErr != nil:
		return nil, flowErr
	}

	if !d.phase.Terminal() {
		d.io.Say(console.StyleProgress, types.FormatProgress(types.ProgressOf(d.snapshot)))
	}
	return d.finish(res), nil
}

func (d *Driver) finish(res *TurnResult) *TurnResult {
	res.Phase = d.phase
	res.Snapshot = d.snapshot
	res.Progress = types.ProgressOf(d.snapshot)
	if res.Outcome == nil {
		res.Outcome = d.outcome
	}
	return res
}

func (d *Driver) abort() {
	d.phase = types.PhaseAborted
	d.logger.Info("Session aborted by user")
	d.io.Say(console.StyleWarning, "Ad creation cancelled.")
}

func (d *Driver) assistant(msg string) {
	d.history.Append(schema.AssistantMessage(msg, nil))
	d.io.Say(console.StyleAssistant, "Assistant: "+msg)
}

// ask reads a sub-flow answer. Abort keywords end the session.
func (d *Driver) ask(ctx context.Context, prompt string) (string, error) {
	answer, err := d.io.Ask(ctx, prompt)
	if errors.Is(err, console.ErrClosed) {
		return "", errAborted
	}
	if err != nil {
		return "", fmt.Errorf("read user input: %w", err)
	}
	if d.commands.IsCancel(answer) {
		return "", errAborted
	}
	return strings.TrimSpace(answer), nil
}
