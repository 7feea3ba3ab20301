package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	openrouterx "github.com/tanpawarit/premeeting-warmup-agent/pkg/openrouter"
)

// Config covers both models: the tool-calling dialogue model and the summary model.
// The API key is optional at load time so the webhook keeps working without it.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"google/gemini-2.5-flash"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	SummaryModel       string  `envconfig:"SUMMARY_MODEL" split_words:"true" default:"openai/gpt-4o"`
	SummaryTemperature float32 `envconfig:"SUMMARY_TEMPERATURE" split_words:"true" default:"-1"`
	SummaryTokenBudget int     `envconfig:"SUMMARY_TOKEN_BUDGET" split_words:"true" default:"12000"`

	TurnTimeout    time.Duration `envconfig:"TURN_TIMEOUT" split_words:"true" default:"30s"`
	SummaryTimeout time.Duration `envconfig:"SUMMARY_TIMEOUT" split_words:"true" default:"30s"`
	MaxToolRounds  int           `envconfig:"MAX_TOOL_ROUNDS" split_words:"true" default:"5"`
}

func (c Config) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c Config) Validate() error {
	if !c.Configured() {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrNotConfigured)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: dialogue model is required", contractx.ErrValidation)
	}
	if c.MaxToolRounds < 1 {
		return fmt.Errorf("%w: max tool rounds must be >= 1", contractx.ErrValidation)
	}
	return nil
}

func (c Config) DialogueOpenRouter() openrouterx.Config {
	return c.openRouter(c.Model, c.Temperature)
}

// SummaryOpenRouter falls back to the dialogue model and temperature when unset.
func (c Config) SummaryOpenRouter() openrouterx.Config {
	modelName := strings.TrimSpace(c.SummaryModel)
	if modelName == "" {
		modelName = c.Model
	}
	temp := c.Temperature
	if c.SummaryTemperature >= 0 {
		temp = c.SummaryTemperature
	}
	cfg := c.openRouter(modelName, temp)
	cfg.Timeout = c.SummaryTimeout
	return cfg
}

func (c Config) openRouter(modelName string, temp float32) openrouterx.Config {
	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              strings.TrimSpace(modelName),
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
