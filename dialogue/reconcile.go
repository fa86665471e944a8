package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/adagent/llm"
	"github.com/tbxark/adagent/metrics"
	"github.com/tbxark/adagent/planner"
	"github.com/tbxark/adagent/types"
)

type Request struct {
	Snapshot  types.Snapshot
	UserInput string
	History   []*schema.Message
}

// Opening is the canned first turn; it never involves the model.
func Opening() types.TurnResponse {
	return types.TurnResponse{
		UserMessage:       "Hello! I'll help you create a TikTok ad campaign. Let's start with the campaign name. What would you like to name your campaign?",
		InternalReasoning: "Starting fresh conversation. Need to collect campaign name first.",
		CollectedData:     types.Snapshot{},
		NextStep:          types.StepCampaignName,
	}
}

// Reconciler merges model output and the fallback planner into one well-formed
// turn response. Reconcile never returns an error and never panics.
type Reconciler struct {
	completer llm.Completer
	planner   *planner.Planner
	prompts   *PromptBuilder
	timeout   time.Duration
	metrics   *metrics.Metrics
}

type ReconcilerOption func(*Reconciler)

func WithTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.timeout = d
	}
}

func WithMetrics(m *metrics.Metrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func NewReconciler(completer llm.Completer, p *planner.Planner, prompts *PromptBuilder, opts ...ReconcilerOption) *Reconciler {
	if completer == nil {
		completer = llm.Disabled{}
	}
	r := &Reconciler{
		completer: completer,
		planner:   p,
		prompts:   prompts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Reconciler) Reconcile(ctx context.Context, req *Request) types.TurnResponse {
	if req == nil {
		req = &Request{}
	}
	if req.Snapshot.IsEmpty() && req.UserInput == "" {
		r.metrics.ReconcileOutcome(metrics.OutcomeOpening)
		return Opening()
	}

	raw, err := r.complete(ctx, req)
	if err != nil {
		outcome := metrics.OutcomeModelError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = metrics.OutcomeTimeout
		case errors.Is(err, errCompleterPanic):
			outcome = metrics.OutcomePanic
		}
		slog.Warn("Model call failed, using fallback planner", "outcome", outcome, "error", err)
		r.metrics.ReconcileOutcome(outcome)
		return r.planner.Plan(req.Snapshot, req.UserInput)
	}

	resp, outcome := r.Resolve(raw, req.Snapshot, req.UserInput)
	r.metrics.ReconcileOutcome(outcome)
	return resp
}

// Resolve turns raw model text into a turn response, repairing it or falling
// back to the planner as needed. It reports which path produced the result.
func (r *Reconciler) Resolve(raw string, snapshot types.Snapshot, userInput string) (types.TurnResponse, string) {
	resp, err := decodeTurn(raw)
	if err == nil {
		slog.Debug("Decoded model response", "next_step", resp.NextStep)
		return resp, metrics.OutcomeModel
	}
	slog.Warn("Model returned invalid JSON, attempting to repair", "error", err, "raw", truncate(raw, 200))

	resp, err = repairTurn(raw)
	if err == nil {
		return resp, metrics.OutcomeRepaired
	}
	slog.Warn("Model response could not be repaired, using fallback planner", "error", err)
	return r.planner.Plan(snapshot, userInput), metrics.OutcomeMalformed
}

var errCompleterPanic = errors.New("completer panicked")

func (r *Reconciler) complete(ctx context.Context, req *Request) (raw string, err error) {
	defer func() {
		if p := recover(); p != nil {
			raw = ""
			err = fmt.Errorf("%w: %v", errCompleterPanic, p)
		}
	}()
	userPrompt, err := r.prompts.UserPrompt(req)
	if err != nil {
		return "", fmt.Errorf("build user prompt: %w", err)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	raw, err = r.completer.Complete(ctx, r.prompts.SystemPrompt(), userPrompt)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return raw, err
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
