// Package planner computes the next prompt from the collected data alone,
// without any language model. It is the last line of defense of the
// reconciler and must always return a complete turn response.
package planner

import (
	"fmt"
	"strings"

	"github.com/tbxark/adagent/types"
	"github.com/tbxark/adagent/validate"
)

type Planner struct {
	validator       *validate.Validator
	maxAdTextLength int
}

func New(validator *validate.Validator, maxAdTextLength int) *Planner {
	return &Planner{validator: validator, maxAdTextLength: maxAdTextLength}
}

type step struct {
	slot      types.Slot
	current   types.NextStep
	message   string
	reasoning string
	normalize func(string) string
}

func (p *Planner) steps() []step {
	return []step{
		{
			slot:      types.SlotCampaignName,
			current:   types.StepCampaignName,
			message:   "Let's start with your campaign name. What would you like to name it?",
			reasoning: "Fallback: asking for campaign name.",
		},
		{
			slot:      types.SlotObjective,
			current:   types.StepObjective,
			message:   "Great! Now what's your campaign objective? (Choose: TRAFFIC or CONVERSIONS)",
			reasoning: "Fallback: campaign name collected. Need objective.",
			normalize: strings.ToUpper,
		},
		{
			slot:      types.SlotAdText,
			current:   types.StepAdText,
			message:   fmt.Sprintf("Objective set. Now please write your ad text (max %d characters):", p.maxAdTextLength),
			reasoning: "Fallback: objective collected. Need ad text.",
		},
		{
			slot:      types.SlotCTA,
			current:   types.StepCTA,
			message:   "Now what call-to-action would you like? (e.g., 'Shop Now', 'Learn More', 'Sign Up'):",
			reasoning: "Fallback: ad text collected. Need CTA.",
		},
	}
}

// Plan never panics. The returned collected data is the full snapshot with
// at most one tentatively filled slot.
func (p *Planner) Plan(s types.Snapshot, lastUserInput string) types.TurnResponse {
	input := strings.TrimSpace(lastUserInput)
	for _, st := range p.steps() {
		if s.Get(st.slot) != "" {
			continue
		}
		resp := types.TurnResponse{
			UserMessage:       st.message,
			InternalReasoning: st.reasoning,
			CollectedData:     s,
			NextStep:          st.current,
		}
		if input != "" {
			value := input
			if st.normalize != nil {
				value = st.normalize(value)
			}
			resp.CollectedData = s.Set(st.slot, value)
			// Move on to whatever is missing now that the slot is filled. After a
			// failed validation that may already be the validation step.
			follow := p.Plan(resp.CollectedData, "")
			resp.UserMessage = follow.UserMessage
			resp.InternalReasoning = follow.InternalReasoning
			resp.NextStep = follow.NextStep
		}
		return resp
	}
	if s.MusicOption == "" {
		return p.planMusic(s, input)
	}
	return types.TurnResponse{
		UserMessage:       "Perfect! I have all the information. Let me validate everything.",
		InternalReasoning: "Fallback: all fields collected. Ready for validation.",
		CollectedData:     s,
		NextStep:          types.StepValidation,
	}
}

func (p *Planner) planMusic(s types.Snapshot, input string) types.TurnResponse {
	canSkip, _ := p.validator.CanSkipMusic(s.Objective)
	resp := types.TurnResponse{
		CollectedData: s,
		NextStep:      types.StepMusic,
	}
	if canSkip {
		resp.UserMessage = "For music, choose: 1) Use existing TikTok music, 2) Upload custom music, 3) No music"
		resp.InternalReasoning = "Fallback: music optional for this objective. Need music option."
	} else {
		resp.UserMessage = fmt.Sprintf("For %s objective, music is required. Choose: 1) Use existing TikTok music, 2) Upload custom music", strings.ToUpper(s.Objective))
		resp.InternalReasoning = "Fallback: music required for this objective. Need music option."
	}

	switch ParseMusicChoice(input) {
	case types.MusicExisting:
		resp.UserMessage = "Please provide the TikTok music ID you want to use."
		resp.InternalReasoning = "Fallback: user chose existing music."
		resp.NextStep = types.StepAskMusicID
	case types.MusicCustom:
		resp.UserMessage = "Let's upload your custom music."
		resp.InternalReasoning = "Fallback: user chose custom music."
		resp.NextStep = types.StepAskCustomMusic
	case types.MusicNone:
		if !canSkip {
			resp.InternalReasoning = "Fallback: user asked for no music but the objective requires music."
			return resp
		}
		resp.CollectedData = s.Set(types.SlotMusicOption, types.MusicNone)
		resp.UserMessage = "No music it is. Let me validate everything."
		resp.InternalReasoning = "Fallback: no music selected. Ready for validation."
		resp.NextStep = types.StepValidation
	}
	return resp
}

// ParseMusicChoice maps free text such as "1", "existing" or "no music" to a
// music option, or "" when the input names none.
func ParseMusicChoice(input string) string {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	switch normalized {
	case "1", "existing", "existing music", "use existing music":
		return types.MusicExisting
	case "2", "custom", "custom music", "upload", "upload custom music":
		return types.MusicCustom
	case "3", "no music", "none", "no", "skip":
		return types.MusicNone
	}
	return ""
}
