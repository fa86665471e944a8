package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbxark/adagent/console"
	"github.com/tbxark/adagent/patch"
	"github.com/tbxark/adagent/submit"
	"github.com/tbxark/adagent/types"
	"github.com/tbxark/adagent/validate"
)

func (d *Driver) validateAndSubmit(ctx context.Context, res *TurnResult) error {
	d.phase = types.PhaseValidating
	d.io.Say(console.StyleHeading, "Validation & Submission")

	result := d.validator.All(d.snapshot)
	if !result.IsValid {
		res.Validation = &result
		d.logger.Info("Validation failed", "errors", len(result.Errors))
		d.io.Say(console.StyleError, "Validation errors found:\n"+types.FormatValidationErrors(result.Errors))
		d.io.Say(console.StyleWarning, "Please correct the errors above.")
		// Unset the failing slots so the next turns collect them again.
		failed := validate.FailedSlots(result)
		if cleared, err := patch.Clear(d.snapshot, failed...); err != nil {
			d.logger.Warn("Failed to clear invalid slots", "error", err)
		} else {
			d.snapshot = cleared
			d.io.Say(console.StyleInfo, "Let's collect again: "+slotNames(failed))
		}
		d.phase = types.PhaseCollecting
		return nil
	}

	d.io.Say(console.StyleSuccess, "All validations passed!")
	d.io.Say(console.StyleInfo, "Final Ad Configuration:")
	var rows [][]string
	for _, slot := range d.snapshot.Filled() {
		rows = append(rows, []string{slot.DisplayName(), d.snapshot.Get(slot)})
	}
	d.io.Table([]string{"Field", "Value"}, rows)

	answer, err := d.ask(ctx, "Submit this ad campaign? (yes/no):")
	if err != nil {
		return err
	}
	if !d.commands.IsConfirm(answer) {
		d.io.Say(console.StyleWarning, "Submission cancelled. Your data is kept; tell me what to change.")
		d.phase = types.PhaseCollecting
		return nil
	}

	d.io.Say(console.StyleInfo, "Submitting ad campaign to TikTok API...")
	outcome := d.submitter.Submit(ctx, d.snapshot)
	d.outcome = &outcome
	res.Outcome = &outcome
	d.phase = types.PhaseDone
	d.reportOutcome(outcome)
	return nil
}

func (d *Driver) reportOutcome(outcome submit.Outcome) {
	if outcome.OK() {
		c := outcome.Success
		d.logger.Info("Campaign created", "campaign_id", c.CampaignID, "attempts", outcome.Attempts)
		d.io.Say(console.StyleSuccess, "Ad campaign submitted successfully!")
		d.io.Table([]string{"Field", "Value"}, [][]string{
			{"Campaign ID", c.CampaignID},
			{"Ad ID", c.AdID},
			{"Status", c.Status},
			{"Estimated Review", c.ReviewETA},
		})
		return
	}

	f := outcome.Failure
	d.logger.Warn("Campaign submission failed", "code", f.Code, "kind", f.Kind, "attempts", outcome.Attempts)
	d.io.Say(console.StyleError, "Submission failed!")
	switch f.Kind {
	case submit.KindPermanent:
		d.sayAnalysis(f)
		d.io.Say(console.StyleError, "This error cannot be retried automatically. Please fix the issue and try creating a new campaign.")
	case submit.KindReauthRequired:
		d.io.Say(console.StyleError, "Token refresh failed. Please re-authenticate.")
	case submit.KindTooManyAttempts:
		d.sayAnalysis(f)
		d.io.Say(console.StyleError, fmt.Sprintf("Giving up after %d attempts.", outcome.Attempts))
	case submit.KindDeclined:
		d.io.Say(console.StyleWarning, "Submission was not retried.")
	default:
		d.sayAnalysis(f)
	}
}

func (d *Driver) sayAnalysis(f *submit.Failure) {
	d.io.Say(console.StyleWarning, fmt.Sprintf("Error Analysis:\n  - What happened: %s\n  - Action needed: %s",
		f.Classification.Explanation, f.Classification.Action))
}

func (d *Driver) confirmRetry(ctx context.Context, f *submit.Failure) (bool, error) {
	d.io.Say(console.StyleError, fmt.Sprintf("Submission failed! (code %d: %s)", f.Code, f.Message))
	d.sayAnalysis(f)
	d.io.Say(console.StyleWarning, "  - Retry suggestion: "+f.Classification.RetrySuggestion)
	answer, err := d.io.Ask(ctx, "Retry submission? (yes/no):")
	if err != nil {
		return false, err
	}
	if !d.commands.IsConfirm(answer) {
		return false, nil
	}
	if f.Classification.RefreshFirst {
		d.io.Say(console.StyleInfo, "Refreshing access token...")
	}
	return true, nil
}

func slotNames(slots []types.Slot) string {
	names := make([]string, 0, len(slots))
	for _, slot := range slots {
		names = append(names, slot.DisplayName())
	}
	return strings.Join(names, ", ")
}
