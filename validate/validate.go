// Package validate holds the campaign field rules. Every check is a pure
// function of its inputs.
package validate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/tbxark/adagent/config"
	"github.com/tbxark/adagent/types"
)

var (
	ErrTooShort           = errors.New(string(types.ErrTooShort))
	ErrInvalidEnum        = errors.New(string(types.ErrInvalidEnum))
	ErrRequired           = errors.New(string(types.ErrRequired))
	ErrTooLong            = errors.New(string(types.ErrTooLong))
	ErrMusicRequired      = errors.New(string(types.ErrMusicRequired))
	ErrMissingMusicID     = errors.New(string(types.ErrMissingMusicID))
	ErrInvalidMusicOption = errors.New(string(types.ErrInvalidMusicOption))
)

var sentinels = map[types.ErrorKind]error{
	types.ErrTooShort:           ErrTooShort,
	types.ErrInvalidEnum:        ErrInvalidEnum,
	types.ErrRequired:           ErrRequired,
	types.ErrTooLong:            ErrTooLong,
	types.ErrMusicRequired:      ErrMusicRequired,
	types.ErrMissingMusicID:     ErrMissingMusicID,
	types.ErrInvalidMusicOption: ErrInvalidMusicOption,
}

// Sentinel returns the sentinel error for kind so callers can use errors.Is
// on a *types.FieldError wrapped by Wrap.
func Sentinel(kind types.ErrorKind) error {
	return sentinels[kind]
}

// Wrap converts a field error into an error chain that matches its sentinel.
func Wrap(fe *types.FieldError) error {
	if fe == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", Sentinel(fe.Kind), fe.Error())
}

const MusicLogicField = "music_logic"

type Validator struct {
	rules config.Rules
}

func New(rules config.Rules) *Validator {
	return &Validator{rules: rules}
}

func (v *Validator) CampaignName(name string) *types.FieldError {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < v.rules.MinCampaignNameLength {
		return &types.FieldError{
			Field:   string(types.SlotCampaignName),
			Kind:    types.ErrTooShort,
			Message: fmt.Sprintf("Campaign name must be at least %d characters", v.rules.MinCampaignNameLength),
		}
	}
	return nil
}

func (v *Validator) Objective(objective string) *types.FieldError {
	if !slices.Contains(v.rules.AllowedObjectives, strings.ToUpper(strings.TrimSpace(objective))) {
		return &types.FieldError{
			Field:   string(types.SlotObjective),
			Kind:    types.ErrInvalidEnum,
			Message: fmt.Sprintf("Objective must be one of: %s", strings.Join(v.rules.AllowedObjectives, ", ")),
		}
	}
	return nil
}

func (v *Validator) AdText(text string) *types.FieldError {
	if text == "" {
		return &types.FieldError{
			Field:   string(types.SlotAdText),
			Kind:    types.ErrRequired,
			Message: "Ad text is required",
		}
	}
	if utf8.RuneCountInString(text) > v.rules.MaxAdTextLength {
		return &types.FieldError{
			Field:   string(types.SlotAdText),
			Kind:    types.ErrTooLong,
			Message: fmt.Sprintf("Ad text must be %d characters or less", v.rules.MaxAdTextLength),
		}
	}
	return nil
}

// MusicLogic checks the music choice against the objective. Music ID format
// and existence are left to the platform.
func (v *Validator) MusicLogic(objective, musicOption, musicID string) *types.FieldError {
	fail := func(kind types.ErrorKind, msg string) *types.FieldError {
		return &types.FieldError{Field: MusicLogicField, Kind: kind, Message: msg}
	}
	switch strings.ToUpper(strings.TrimSpace(musicOption)) {
	case types.MusicNone:
		switch strings.ToUpper(strings.TrimSpace(objective)) {
		case types.ObjectiveConversions:
			return fail(types.ErrMusicRequired, "Music is required for Conversions objective")
		case types.ObjectiveTraffic:
			return nil
		}
	case types.MusicExisting:
		if musicID == "" {
			return fail(types.ErrMissingMusicID, "Music ID is required for existing music")
		}
		return nil
	case types.MusicCustom:
		return nil
	}
	return fail(types.ErrInvalidMusicOption, "Invalid music option")
}

// CanSkipMusic reports whether NO_MUSIC is acceptable for objective.
func (v *Validator) CanSkipMusic(objective string) (bool, *types.FieldError) {
	fe := v.MusicLogic(objective, types.MusicNone, "")
	return fe == nil, fe
}

// All runs every check and aggregates all failures; it never stops at the
// first one.
func (v *Validator) All(s types.Snapshot) types.ValidationResult {
	checks := []func(types.Snapshot) *types.FieldError{
		func(s types.Snapshot) *types.FieldError { return v.CampaignName(s.CampaignName) },
		func(s types.Snapshot) *types.FieldError { return v.Objective(s.Objective) },
		func(s types.Snapshot) *types.FieldError { return v.AdText(s.AdText) },
		func(s types.Snapshot) *types.FieldError { return v.MusicLogic(s.Objective, s.MusicOption, s.MusicID) },
	}
	return v.run(s, checks)
}

func (v *Validator) run(s types.Snapshot, checks []func(types.Snapshot) *types.FieldError) types.ValidationResult {
	errs := make(map[string]*types.FieldError)
	for _, check := range checks {
		if fe := check(s); fe != nil {
			errs[fe.Field] = fe
		}
	}
	return types.ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

var fieldSlots = []struct {
	field string
	slots []types.Slot
}{
	{string(types.SlotCampaignName), []types.Slot{types.SlotCampaignName}},
	{string(types.SlotObjective), []types.Slot{types.SlotObjective}},
	{string(types.SlotAdText), []types.Slot{types.SlotAdText}},
	{MusicLogicField, []types.Slot{types.SlotMusicOption, types.SlotMusicID}},
}

// FailedSlots lists, in collection order, the slots that must be collected
// again to clear the errors of res.
func FailedSlots(res types.ValidationResult) []types.Slot {
	var out []types.Slot
	for _, fs := range fieldSlots {
		if _, ok := res.Errors[fs.field]; ok {
			out = append(out, fs.slots...)
		}
	}
	return out
}
