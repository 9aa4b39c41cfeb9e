// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

// Builder provides fluent configuration for the research agents.
// Usage: agent.NewBuilder().MaxSubQuestions(4).Build() - no stutter.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder seeded with DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// MinSubQuestions sets the lower bound asked of the model.
func (b *Builder) MinSubQuestions(n int) *Builder {
	b.cfg.MinSubQuestions = n
	return b
}

// MaxSubQuestions sets the decomposition cap.
func (b *Builder) MaxSubQuestions(n int) *Builder {
	b.cfg.MaxSubQuestions = n
	if b.cfg.MinSubQuestions > n {
		b.cfg.MinSubQuestions = n
	}
	return b
}

// ExcerptChars sets the per-source excerpt bound used in synthesis.
func (b *Builder) ExcerptChars(n int) *Builder {
	b.cfg.ExcerptChars = n
	return b
}

// AnalysisPrompt replaces the structured decomposition prompt.
func (b *Builder) AnalysisPrompt(prompt string) *Builder {
	b.cfg.AnalysisPrompt = prompt
	return b
}

// FallbackPrompt replaces the plain-text decomposition prompt.
func (b *Builder) FallbackPrompt(prompt string) *Builder {
	b.cfg.FallbackPrompt = prompt
	return b
}

// SynthesisPrompt replaces the synthesis prompt.
func (b *Builder) SynthesisPrompt(prompt string) *Builder {
	b.cfg.SynthesisPrompt = prompt
	return b
}

// Build validates and returns the configuration.
func (b *Builder) Build() (Config, error) {
	if err := b.cfg.Validate(); err != nil {
		return Config{}, err
	}
	return b.cfg, nil
}
