package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/pkg/errors"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

// Completer turns a prompt into model text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds enhancer settings.
type Config struct {
	Enabled         bool          `json:"enabled" mapstructure:"enabled"`
	BaseURL         string        `json:"base_url" mapstructure:"base_url"`
	Model           string        `json:"model" mapstructure:"model"`
	APIKey          string        `json:"-" mapstructure:"api_key"`
	Temperature     float64       `json:"temperature" mapstructure:"temperature"`
	MaxOutputTokens int           `json:"max_output_tokens" mapstructure:"max_output_tokens"`
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxTextRunes    int           `json:"max_text_runes" mapstructure:"max_text_runes"`
}

// DefaultConfig returns an enhancer configuration with defaults.
func DefaultConfig() Config {
	return Config{
		Model:           "gpt-4o",
		Temperature:     0.2,
		MaxOutputTokens: 2048,
		Timeout:         60 * time.Second,
		MaxTextRunes:    8000,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2.0 {
		return errors.New(errors.ErrCodeValidation, "temperature must be between 0 and 2.0")
	}
	if c.MaxTextRunes <= 0 {
		return errors.New(errors.ErrCodeValidation, "max_text_runes must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New(errors.ErrCodeValidation, "timeout must be positive")
	}
	if c.Enabled && c.Model == "" {
		return errors.New(errors.ErrCodeValidation, "model is required when the enhancer is enabled")
	}
	return nil
}

// Input is what the enhancer reviews.
type Input struct {
	Title    string
	Text     string
	Features audit.FeatureMap
	Report   audit.FeedbackReport
}

// Enhancement is the model's structured review.
type Enhancement = audit.Narrative

// Enhancer asks a Completer for a narrative review of a deterministic audit.
type Enhancer struct {
	completer Completer
	cfg       Config
	logger    logging.Logger
}

// NewEnhancer creates an Enhancer. A nil completer yields an enhancer whose
// Enhance always reports ErrCodeEnhancerDisabled.
func NewEnhancer(completer Completer, cfg Config, logger logging.Logger) *Enhancer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.MaxTextRunes <= 0 {
		cfg.MaxTextRunes = DefaultConfig().MaxTextRunes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Enhancer{completer: completer, cfg: cfg, logger: logger.Named("narrative")}
}

// Available reports whether a completer is configured.
func (e *Enhancer) Available() bool {
	return e != nil && e.completer != nil
}

// Enhance builds the review prompt, calls the completer and parses its JSON.
func (e *Enhancer) Enhance(ctx context.Context, in Input) (*Enhancement, error) {
	if !e.Available() {
		return nil, errors.New(errors.ErrCodeEnhancerDisabled, "no language model configured")
	}
	prompt, err := BuildPrompt(in, e.cfg.MaxTextRunes)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("completion failed", logging.Err(err), logging.Duration("elapsed", time.Since(start)))
		return nil, errors.Wrap(err, errors.ErrCodeEnhancerFailed, "language model call failed")
	}
	e.logger.Debug("completion received",
		logging.Int("prompt_len", len(prompt)),
		logging.Int("response_len", len(raw)),
		logging.Duration("elapsed", time.Since(start)))

	enh, err := ParseEnhancement(raw)
	if err != nil {
		return nil, err
	}
	enh.Model = e.cfg.Model
	return enh, nil
}

// ParseEnhancement pulls the first JSON object out of model output, which may
// be wrapped in a Markdown code fence or surrounded by prose.
func ParseEnhancement(raw string) (*Enhancement, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, errors.New(errors.ErrCodeEnhancerBadResponse, "no JSON object in model output")
	}
	var enh Enhancement
	if err := json.Unmarshal([]byte(body), &enh); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEnhancerBadResponse, "model output is not valid JSON")
	}
	if enh.KeyIssues == nil {
		enh.KeyIssues = []string{}
	}
	if enh.Recommendations == nil {
		enh.Recommendations = []string{}
	}
	return &enh, nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

const promptTemplate = `You are an elite statistical reviewer for top-tier medical journals (e.g., Nature, NEJM, The Lancet).
Your goal is to perform a high-rigor audit of the Methods section provided below.

### AUDIT CRITERIA
1. Statistical assumptions: normality for t-tests and ANOVA, proportional hazards for Cox regression, homoscedasticity and collinearity where relevant.
2. Multiplicity correction: multiple endpoints, subgroups or time points need an adjustment (Bonferroni, FDR) or an explicit rationale.
3. Study design and transparency: blinding process, sequence generation with allocation concealment, and a formal power calculation.
4. Analysis principles: a stated and justified ITT or per-protocol choice, with software versions and packages cited.

Article Title: {{.Title}}

### Detected methodology ({{len .Categories}} categories)
{{range .Categories}}- {{.Name}}: {{.Terms}}
{{end}}
### Deterministic audit
Score: {{printf "%.1f" .Score}} ({{.Rating}})
{{if .Gaps}}Critical gaps:
{{range .Gaps}}- {{.}}
{{end}}{{else}}No critical gaps were flagged.
{{end}}
### Original Text Excerpt
{{.Text}}

### OUTPUT FORMAT (JSON ONLY)
{"summary": "...", "key_issues": ["..."], "recommendations": ["..."], "rigor_commentary": "..."}
`

var promptTmpl = template.Must(template.New("review").Parse(promptTemplate))

type promptCategory struct {
	Name  string
	Terms string
}

type promptData struct {
	Title      string
	Text       string
	Categories []promptCategory
	Score      float64
	Rating     audit.Rating
	Gaps       []string
}

// BuildPrompt renders the reviewer prompt. Text longer than maxRunes is cut
// and marked with an ellipsis.
func BuildPrompt(in Input, maxRunes int) (string, error) {
	data := promptData{
		Title:  in.Title,
		Text:   truncate(in.Text, maxRunes),
		Score:  in.Report.OverallScore,
		Rating: in.Report.RigorRating,
		Gaps:   in.Report.GapMessages(),
	}
	if data.Title == "" {
		data.Title = "Untitled"
	}
	for _, cat := range in.Features.PresentCategories() {
		data.Categories = append(data.Categories, promptCategory{
			Name:  cat,
			Terms: strings.Join(in.Features.Get(cat).UniqueMatches, ", "),
		})
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to render prompt")
	}
	return buf.String(), nil
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes]) + "..."
}
