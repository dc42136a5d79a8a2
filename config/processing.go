package config

import "fmt"

// Line filter strategies applied before parsing a model reply.
const (
	FilterStrict  = "strict"  // keep only lines starting with "Question"
	FilterLenient = "lenient" // keep every non-blank line
)

// Parse policies for malformed reply lines.
const (
	PolicySkip   = "skip"   // drop malformed lines and report how many were dropped
	PolicyStrict = "strict" // reject the whole batch on the first malformed line
)

// ProcessingConfig defines how prompts are rendered and replies are parsed.
type ProcessingConfig struct {
	// Categories holds per-category overrides keyed by category name
	// (programming, logical, quantitative)
	Categories map[string]CategoryConfig `yaml:"categories"`

	// ResponseFormatting configures clean-up applied to the raw reply
	ResponseFormatting ResponseFormattingConfig `yaml:"response_formatting"`

	// TruncateToCount drops records beyond the requested count
	TruncateToCount bool `yaml:"truncate_to_count"`
}

// CategoryConfig overrides the prompt and parse behaviour of one category.
// Zero values fall back to the category's built-in behaviour.
type CategoryConfig struct {
	// Template replaces the built-in prompt template (Go text/template)
	Template string `yaml:"template"`

	// Filter is the line filter strategy: strict or lenient
	Filter string `yaml:"filter"`

	// Policy is the malformed-line policy: skip or strict
	Policy string `yaml:"policy"`

	// LenientAnswers accepts a Correct: value that matches none of the options
	LenientAnswers bool `yaml:"lenient_answers"`
}

// ResponseFormattingConfig defines clean-up applied to model replies
type ResponseFormattingConfig struct {
	// StripCodeFences removes markdown code fence lines from the reply
	StripCodeFences bool `yaml:"strip_code_fences"`

	// MaxLength limits the reply bytes considered by the parser (0 = unlimited).
	// The cut falls on a line boundary.
	MaxLength int `yaml:"max_length"`
}

// DefaultProcessingConfig returns the built-in processing behaviour.
func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		Categories: map[string]CategoryConfig{},
		ResponseFormatting: ResponseFormattingConfig{
			StripCodeFences: true,
		},
		TruncateToCount: true,
	}
}

// Category returns the overrides for name, or the zero value.
func (p ProcessingConfig) Category(name string) CategoryConfig {
	return p.Categories[name]
}

// Validate checks category names and enum values.
func (p ProcessingConfig) Validate() error {
	for name, c := range p.Categories {
		switch name {
		case "programming", "logical", "quantitative":
		default:
			return fmt.Errorf("unknown category %q in processing config", name)
		}
		switch c.Filter {
		case "", FilterStrict, FilterLenient:
		default:
			return fmt.Errorf("invalid filter %q for category %s", c.Filter, name)
		}
		switch c.Policy {
		case "", PolicySkip, PolicyStrict:
		default:
			return fmt.Errorf("invalid policy %q for category %s", c.Policy, name)
		}
	}
	if p.ResponseFormatting.MaxLength < 0 {
		return fmt.Errorf("negative response max_length: %d", p.ResponseFormatting.MaxLength)
	}
	return nil
}
