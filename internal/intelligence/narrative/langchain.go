package narrative

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/pkg/errors"
)

// LangChainCompleter is a Completer backed by an OpenAI-compatible chat
// endpoint through langchaingo.
type LangChainCompleter struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewLangChainCompleter builds the OpenAI client described by cfg. An empty
// BaseURL targets the public OpenAI API.
func NewLangChainCompleter(cfg Config) (*LangChainCompleter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeEnhancerDisabled, "api key not configured")
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEnhancerFailed, "creating OpenAI client")
	}

	callOpts := []llms.CallOption{llms.WithTemperature(cfg.Temperature)}
	if cfg.MaxOutputTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(cfg.MaxOutputTokens))
	}
	return &LangChainCompleter{model: llm, opts: callOpts}, nil
}

// Complete implements Completer.
func (c *LangChainCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt, c.opts...)
}

// NewFromConfig returns an Enhancer for cfg. When the enhancer is disabled or
// has no API key the Enhancer has no completer and every call degrades.
func NewFromConfig(cfg Config, logger logging.Logger) (*Enhancer, error) {
	if !cfg.Enabled || cfg.APIKey == "" {
		return NewEnhancer(nil, cfg, logger), nil
	}
	c, err := NewLangChainCompleter(cfg)
	if err != nil {
		return nil, err
	}
	return NewEnhancer(c, cfg, logger), nil
}
