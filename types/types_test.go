package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotSetReturnsCopy(t *testing.T) {
	var s Snapshot
	updated := s.Set(SlotObjective, ObjectiveTraffic)

	assert.Equal(t, "", s.Objective)
	assert.Equal(t, ObjectiveTraffic, updated.Objective)
	assert.Equal(t, ObjectiveTraffic, updated.Get(SlotObjective))
}

func TestSnapshotFilledAndMissing(t *testing.T) {
	s := Snapshot{CampaignName: "Acme", CTA: "Shop Now"}

	assert.Equal(t, []Slot{SlotCampaignName, SlotCTA}, s.Filled())
	assert.Equal(t, []Slot{SlotObjective, SlotAdText, SlotMusicOption, SlotMusicID}, s.Missing())
	assert.False(t, s.IsEmpty())
	assert.True(t, Snapshot{}.IsEmpty())
}

func TestSlotDisplayName(t *testing.T) {
	assert.Equal(t, "Campaign Name", SlotCampaignName.DisplayName())
	assert.Equal(t, "CTA", SlotCTA.DisplayName())
	assert.Equal(t, "Music ID", SlotMusicID.DisplayName())
	assert.Equal(t, "/ad_text", SlotAdText.JSONPointer())
}

func TestNextStepKnown(t *testing.T) {
	assert.True(t, StepValidation.Known())
	assert.True(t, NextStep(" Ask_Music_ID ").Normalize().Known())
	assert.False(t, NextStep("submission").Known())
}

func TestFormatProgress(t *testing.T) {
	p := ProgressOf(Snapshot{CampaignName: "Acme", Objective: ObjectiveTraffic, AdText: "Buy", CTA: "Go", MusicOption: MusicNone})
	assert.Equal(t, 5, p.Filled)
	assert.Equal(t, 6, p.Total)
	assert.Equal(t, "[Progress: 5/6 fields collected]\n  Still needed: Music ID", FormatProgress(p))

	full := ProgressOf(Snapshot{CampaignName: "a", Objective: "b", AdText: "c", CTA: "d", MusicOption: "e", MusicID: "f"})
	assert.Equal(t, "[Progress: 6/6 fields collected]", FormatProgress(full))
}

func TestFormatValidationErrorsSorted(t *testing.T) {
	out := FormatValidationErrors(map[string]*FieldError{
		"objective":     {Field: "objective", Kind: ErrInvalidEnum, Message: "bad objective"},
		"campaign_name": {Field: "campaign_name", Kind: ErrTooShort, Message: "too short"},
	})
	assert.Equal(t, "- campaign_name: too short\n- objective: bad objective", out)
	assert.Empty(t, FormatValidationErrors(nil))
}

func TestFormatSnapshotTableShowsUnset(t *testing.T) {
	out := FormatSnapshotTable(Snapshot{CampaignName: "Acme"})
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "(unset)")
	assert.Contains(t, out, "music_id")
}
