package types

import "strings"

type Phase string

const (
	PhaseCollecting          Phase = "collecting"
	PhaseAwaitingMusicID     Phase = "awaiting_music_id"
	PhaseAwaitingCustomMusic Phase = "awaiting_custom_music"
	PhaseValidating          Phase = "validating"
	PhaseDone                Phase = "done"
	PhaseAborted             Phase = "aborted"
)

// Terminal reports whether no further turns are accepted in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseAborted
}

type Slot string

const (
	SlotCampaignName Slot = "campaign_name"
	SlotObjective    Slot = "objective"
	SlotAdText       Slot = "ad_text"
	SlotCTA          Slot = "cta"
	SlotMusicOption  Slot = "music_option"
	SlotMusicID      Slot = "music_id"
)

// Slots lists every slot in collection order.
var Slots = []Slot{
	SlotCampaignName,
	SlotObjective,
	SlotAdText,
	SlotCTA,
	SlotMusicOption,
	SlotMusicID,
}

// JSONPointer returns the RFC6901 pointer of the slot inside a Snapshot document.
func (s Slot) JSONPointer() string {
	return "/" + string(s)
}

// DisplayName turns campaign_name into "Campaign Name".
func (s Slot) DisplayName() string {
	parts := strings.Split(string(s), "_")
	for i, p := range parts {
		switch p {
		case "cta", "id":
			parts[i] = strings.ToUpper(p)
		default:
			if p != "" {
				parts[i] = strings.ToUpper(p[:1]) + p[1:]
			}
		}
	}
	return strings.Join(parts, " ")
}

const (
	ObjectiveTraffic     = "TRAFFIC"
	ObjectiveConversions = "CONVERSIONS"
)

const (
	MusicExisting = "EXISTING"
	MusicCustom   = "CUSTOM"
	MusicNone     = "NO_MUSIC"
)

// Snapshot is the campaign data collected so far. An empty string means the
// slot is unset.
type Snapshot struct {
	CampaignName string `json:"campaign_name" jsonschema:"description=Campaign name of at least 3 characters"`
	Objective    string `json:"objective" jsonschema:"description=TRAFFIC or CONVERSIONS"`
	AdText       string `json:"ad_text" jsonschema:"description=Ad text of at most 100 characters"`
	CTA          string `json:"cta" jsonschema:"description=Call to action such as Shop Now"`
	MusicOption  string `json:"music_option" jsonschema:"description=EXISTING or CUSTOM or NO_MUSIC"`
	MusicID      string `json:"music_id" jsonschema:"description=Music ID when music_option is EXISTING or CUSTOM"`
}

func (s Snapshot) Get(slot Slot) string {
	switch slot {
	case SlotCampaignName:
		return s.CampaignName
	case SlotObjective:
		return s.Objective
	case SlotAdText:
		return s.AdText
	case SlotCTA:
		return s.CTA
	case SlotMusicOption:
		return s.MusicOption
	case SlotMusicID:
		return s.MusicID
	default:
		return ""
	}
}

// Set returns a copy of s with slot replaced by value.
func (s Snapshot) Set(slot Slot, value string) Snapshot {
	switch slot {
	case SlotCampaignName:
		s.CampaignName = value
	case SlotObjective:
		s.Objective = value
	case SlotAdText:
		s.AdText = value
	case SlotCTA:
		s.CTA = value
	case SlotMusicOption:
		s.MusicOption = value
	case SlotMusicID:
		s.MusicID = value
	}
	return s
}

func (s Snapshot) IsEmpty() bool {
	for _, slot := range Slots {
		if s.Get(slot) != "" {
			return false
		}
	}
	return true
}

func (s Snapshot) Filled() []Slot {
	var out []Slot
	for _, slot := range Slots {
		if s.Get(slot) != "" {
			out = append(out, slot)
		}
	}
	return out
}

func (s Snapshot) Missing() []Slot {
	var out []Slot
	for _, slot := range Slots {
		if s.Get(slot) == "" {
			out = append(out, slot)
		}
	}
	return out
}

type NextStep string

const (
	StepCampaignName   NextStep = "campaign_name"
	StepObjective      NextStep = "objective"
	StepAdText         NextStep = "ad_text"
	StepCTA            NextStep = "cta"
	StepMusic          NextStep = "music"
	StepAskMusicID     NextStep = "ask_music_id"
	StepAskCustomMusic NextStep = "ask_custom_music"
	StepValidation     NextStep = "validation"
)

// Known reports whether n is one of the closed set of steps.
func (n NextStep) Known() bool {
	switch n {
	case StepCampaignName, StepObjective, StepAdText, StepCTA, StepMusic,
		StepAskMusicID, StepAskCustomMusic, StepValidation:
		return true
	}
	return false
}

// Normalize lower-cases and trims a step received from a model.
func (n NextStep) Normalize() NextStep {
	return NextStep(strings.ToLower(strings.TrimSpace(string(n))))
}

type TurnResponse struct {
	UserMessage       string   `json:"user_message" jsonschema:"required,description=Conversational reply shown to the user"`
	InternalReasoning string   `json:"internal_reasoning" jsonschema:"required,description=Brief reasoning about the current state and next step"`
	CollectedData     Snapshot `json:"collected_data" jsonschema:"required,description=All campaign fields collected so far with empty strings for unknown values"`
	NextStep          NextStep `json:"next_step" jsonschema:"required,enum=campaign_name,enum=objective,enum=ad_text,enum=cta,enum=music,enum=ask_music_id,enum=ask_custom_music,enum=validation,description=What to collect next"`
}

// RequiredTurnKeys are the top-level keys a model response must carry.
var RequiredTurnKeys = []string{"user_message", "internal_reasoning", "collected_data", "next_step"}

type ErrorKind string

const (
	ErrTooShort           ErrorKind = "TooShort"
	ErrInvalidEnum        ErrorKind = "InvalidEnum"
	ErrRequired           ErrorKind = "Required"
	ErrTooLong            ErrorKind = "TooLong"
	ErrMusicRequired      ErrorKind = "MusicRequired"
	ErrMissingMusicID     ErrorKind = "MissingMusicId"
	ErrInvalidMusicOption ErrorKind = "InvalidMusicOption"
)

type FieldError struct {
	Field   string    `json:"field"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

type ValidationResult struct {
	IsValid bool                   `json:"is_valid"`
	Errors  map[string]*FieldError `json:"errors,omitempty"`
}

type Progress struct {
	Filled  int
	Total   int
	Missing []Slot
}

func ProgressOf(s Snapshot) Progress {
	return Progress{
		Filled:  len(s.Filled()),
		Total:   len(Slots),
		Missing: s.Missing(),
	}
}
