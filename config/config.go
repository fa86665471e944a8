// Package config holds the explicit configuration value handed to every
// component at construction time.
//
// Priority: defaults -> YAML/JSON file -> ADAGENT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Rules    Rules    `yaml:"rules"`
	LLM      LLM      `yaml:"llm"`
	Platform Platform `yaml:"platform"`
	Auth     Auth     `yaml:"auth"`
	Retry    Retry    `yaml:"retry"`
	Timeouts Timeouts `yaml:"timeouts"`
	History  History  `yaml:"history"`
}

// Rules are the campaign business rules enforced by the validator.
type Rules struct {
	MinCampaignNameLength int      `yaml:"min_campaign_name_length"`
	MaxAdTextLength       int      `yaml:"max_ad_text_length"`
	AllowedObjectives     []string `yaml:"allowed_objectives"`
}

type LLM struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// ToolCalling forces the structured reply through a tool call instead of
	// plain JSON text.
	ToolCalling bool `yaml:"tool_calling"`
	Disabled    bool `yaml:"disabled"`
}

type Platform struct {
	BaseURL          string   `yaml:"base_url"`
	KnownMusicIDs    []string `yaml:"known_music_ids"`
	InvalidMusicIDs  []string `yaml:"invalid_music_ids"`
	MaxMusicAttempts int      `yaml:"max_music_attempts"`
}

type Auth struct {
	AuthorizeURL string        `yaml:"authorize_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	RedirectURI  string        `yaml:"redirect_uri"`
	Scope        string        `yaml:"scope"`
	TokenSecret  string        `yaml:"token_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// Retry bounds the submission retry loop.
type Retry struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
}

type Timeouts struct {
	Model    time.Duration `yaml:"model"`
	Platform time.Duration `yaml:"platform"`
	Auth     time.Duration `yaml:"auth"`
}

type History struct {
	// KeepLast is the number of non-system messages kept for the model prompt.
	KeepLast int `yaml:"keep_last"`
}

func Default() *Config {
	return &Config{
		Rules: Rules{
			MinCampaignNameLength: 3,
			MaxAdTextLength:       100,
			AllowedObjectives:     []string{"TRAFFIC", "CONVERSIONS"},
		},
		LLM: LLM{
			BaseURL:     "https://integrate.api.nvidia.com/v1",
			Model:       "meta/llama-3.1-8b-instruct",
			Temperature: 0.3,
			MaxTokens:   1024,
		},
		Platform: Platform{
			BaseURL:          "https://ads.tiktok.com/open_api/v1.3",
			KnownMusicIDs:    []string{"M123456789", "M987654321", "M555555555"},
			InvalidMusicIDs:  []string{"M000000000", "M999999999"},
			MaxMusicAttempts: 3,
		},
		Auth: Auth{
			AuthorizeURL: "https://ads.tiktok.com/marketing_api/auth/authorize",
			ClientID:     "mock_client_id",
			ClientSecret: "mock_client_secret",
			RedirectURI:  "http://localhost:8000/callback",
			Scope:        "ads.manage",
			TokenSecret:  "adagent-mock-signing-secret",
			TokenTTL:     time.Hour,
		},
		Retry: Retry{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
			Multiplier:      2,
		},
		Timeouts: Timeouts{
			Model:    60 * time.Second,
			Platform: 30 * time.Second,
			Auth:     15 * time.Second,
		},
		History: History{KeepLast: 20},
	}
}

// Load reads path on top of Default and applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	conf := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, conf); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	conf.applyEnv(os.LookupEnv)
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

const envPrefix = "ADAGENT_"

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	set("LLM_API_KEY", &c.LLM.APIKey)
	set("LLM_BASE_URL", &c.LLM.BaseURL)
	set("LLM_MODEL", &c.LLM.Model)
	set("CLIENT_ID", &c.Auth.ClientID)
	set("CLIENT_SECRET", &c.Auth.ClientSecret)
	set("TOKEN_SECRET", &c.Auth.TokenSecret)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Rules.MinCampaignNameLength < 0 {
		errs = append(errs, errors.New("rules.min_campaign_name_length must not be negative"))
	}
	if c.Rules.MaxAdTextLength <= 0 {
		errs = append(errs, errors.New("rules.max_ad_text_length must be positive"))
	}
	if len(c.Rules.AllowedObjectives) == 0 {
		errs = append(errs, errors.New("rules.allowed_objectives must not be empty"))
	}
	for i, o := range c.Rules.AllowedObjectives {
		c.Rules.AllowedObjectives[i] = strings.ToUpper(strings.TrimSpace(o))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry.max_attempts must be positive"))
	}
	if c.Platform.MaxMusicAttempts <= 0 {
		errs = append(errs, errors.New("platform.max_music_attempts must be positive"))
	}
	if c.Auth.TokenSecret == "" {
		errs = append(errs, errors.New("auth.token_secret must not be empty"))
	}
	if c.Timeouts.Model <= 0 || c.Timeouts.Platform <= 0 || c.Timeouts.Auth <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{LLM.BaseURL:%q, LLM.Model:%q, LLM.Disabled:%v}", c.LLM.BaseURL, c.LLM.Model, c.LLM.Disabled)
}
