package dialogue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"

	"github.com/tbxark/adagent/config"
	"github.com/tbxark/adagent/types"
)

// DefaultSystemPromptTemplate takes, in order: min campaign name length,
// allowed objectives, max ad text length, response JSON schema.
const DefaultSystemPromptTemplate = `You are a helpful TikTok Ads creation assistant. Guide the user through creating an ad campaign by collecting specific information.

CRITICAL: Output ONLY one valid JSON object. No markdown, no prose around it.

Business rules:
1. Campaign name must be at least %d characters.
2. Objective must be one of: %s.
3. Ad text is required and cannot exceed %d characters.
4. Music: required when the objective is CONVERSIONS, optional when it is TRAFFIC. The user can choose existing music, upload custom music, or no music (TRAFFIC only).

Collection order (strict): campaign_name, objective, ad_text, cta, music.

Music options:
- Existing music ID: set next_step to "ask_music_id".
- Custom music upload: set next_step to "ask_custom_music".
- No music: set music_option to "NO_MUSIC" (only when objective is TRAFFIC).

next_step rules:
- Use a field name (campaign_name, objective, ad_text, cta) to ask for that field, or "music" to ask for the music choice.
- Use "validation" only when every required field is collected.

Always return collected_data with all six keys, using an empty string for anything unknown. Keep values the user already gave unless they correct them.

Response JSON schema:
%s`

// PromptBuilder renders the system and user prompts of a turn.
type PromptBuilder struct {
	systemPrompt string
}

type promptOptions struct {
	systemPrompt         string
	systemPromptTemplate string
}

type PromptOption func(*promptOptions)

// WithSystemPrompt replaces the generated system prompt entirely.
func WithSystemPrompt(systemPrompt string) PromptOption {
	return func(o *promptOptions) {
		o.systemPrompt = systemPrompt
	}
}

// WithSystemPromptTemplate overrides the template; it receives the same
// arguments as DefaultSystemPromptTemplate.
func WithSystemPromptTemplate(tpl string) PromptOption {
	return func(o *promptOptions) {
		o.systemPromptTemplate = tpl
	}
}

func NewPromptBuilder(rules config.Rules, opts ...PromptOption) (*PromptBuilder, error) {
	options := promptOptions{systemPromptTemplate: DefaultSystemPromptTemplate}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.systemPrompt != "" {
		return &PromptBuilder{systemPrompt: options.systemPrompt}, nil
	}
	responseSchema, err := ResponseSchema()
	if err != nil {
		return nil, err
	}
	return &PromptBuilder{
		systemPrompt: fmt.Sprintf(options.systemPromptTemplate,
			rules.MinCampaignNameLength,
			strings.Join(rules.AllowedObjectives, " or "),
			rules.MaxAdTextLength,
			responseSchema,
		),
	}, nil
}

// ResponseSchema is the JSON schema of types.TurnResponse.
func ResponseSchema() (string, error) {
	s := jsonschema.Reflect(&types.TurnResponse{})
	s.Title = "TurnResponse"
	s.Description = "One assistant turn of the ad campaign conversation."
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON schema: %w", err)
	}
	return string(data), nil
}

func (b *PromptBuilder) SystemPrompt() string {
	return b.systemPrompt
}

func (b *PromptBuilder) UserPrompt(req *Request) (string, error) {
	stateJSON, err := sonic.MarshalIndent(req.Snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal collected data: %w", err)
	}
	sections := []string{
		fmt.Sprintf("# Current collected data:\n```json\n%s\n```", string(stateJSON)),
		"# Collected fields:\n" + types.FormatSnapshotTable(req.Snapshot),
	}
	if s := formatHistorySection(req.History); s != "" {
		sections = append(sections, s)
	}
	sections = append(sections, fmt.Sprintf("# User says:\n%s", req.UserInput))
	return strings.Join(sections, "\n\n"), nil
}

func formatHistorySection(history []*schema.Message) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# Recent dialogue:\n")
	for _, m := range history {
		if m == nil || m.Role == schema.System {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", m.Role, m.Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}
