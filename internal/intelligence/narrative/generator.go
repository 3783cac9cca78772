package narrative

import (
	"context"

	"github.com/turtacn/RigorAudit/pkg/errors"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

// NoteDisabled is attached when no language model is configured.
const NoteDisabled = "Language model not configured. Showing deterministic audit only."

// Output pairs the deterministic report with an optional narrative review.
type Output struct {
	Report      audit.FeedbackReport `json:"report"`
	Enhancement *Enhancement         `json:"enhancement,omitempty"`
	Note        string               `json:"note,omitempty"`
}

// Generator wraps an Enhancer so that enhancement never fails an audit.
type Generator struct {
	enhancer *Enhancer
}

// NewGenerator creates a Generator. enhancer may be nil.
func NewGenerator(enhancer *Enhancer) *Generator {
	return &Generator{enhancer: enhancer}
}

// Generate returns in.Report unchanged together with the enhancer's review,
// or with a note explaining why the review is missing.
func (g *Generator) Generate(ctx context.Context, in Input) Output {
	out := Output{Report: in.Report}
	if g == nil || !g.enhancer.Available() {
		out.Note = NoteDisabled
		return out
	}
	enh, err := g.enhancer.Enhance(ctx, in)
	if err != nil {
		out.Note = "LLM Error: " + errorText(err)
		return out
	}
	out.Enhancement = enh
	return out
}

func errorText(err error) string {
	if appErr, ok := err.(*errors.AppError); ok {
		if appErr.Cause != nil {
			return appErr.Message + ": " + appErr.Cause.Error()
		}
		return appErr.Message
	}
	return err.Error()
}
