// Package processing turns quiz requests into prompts and model replies into
// question records. It holds the prompt templates, the reply parser and the
// Processor that ties them to a generation provider.
package processing

import "fmt"

// Category is one of the fixed question domains. Each category has its own
// prompt template and default line filter.
type Category string

const (
	Programming          Category = "programming"
	LogicalReasoning     Category = "logical"
	QuantitativeAptitude Category = "quantitative"
)

// Categories returns every supported category.
func Categories() []Category {
	return []Category{Programming, LogicalReasoning, QuantitativeAptitude}
}

// ParseCategory validates a category name.
func ParseCategory(name string) (Category, error) {
	c := Category(name)
	switch c {
	case Programming, LogicalReasoning, QuantitativeAptitude:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", name)
}

// Title returns the human-readable name used in prompts.
func (c Category) Title() string {
	switch c {
	case Programming:
		return "Programming"
	case LogicalReasoning:
		return "Logical Reasoning"
	case QuantitativeAptitude:
		return "Quantitative Aptitude"
	}
	return string(c)
}

// QuestionRequest holds the parameters of one generation request. The
// category comes from the route, the remaining fields from the JSON body.
type QuestionRequest struct {
	Category Category `json:"-"`
	Topic    string   `json:"topic" validate:"required"`
	Count    int      `json:"number" validate:"required"`
	Level    string   `json:"level" validate:"required"`
}

// QuestionRecord is one multiple-choice question recovered from a reply line.
type QuestionRecord struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     string   `json:"correct"`
	Explanation string   `json:"explanation"`
}

// QuestionSet is the response for one request. It is built per request and
// never stored.
type QuestionSet struct {
	Category  Category         `json:"-"`
	Topic     string           `json:"topic"`
	Count     int              `json:"number"`
	Level     string           `json:"level"`
	Questions []QuestionRecord `json:"questions"`
	Skipped   int              `json:"skipped_count"`
}

// LineIssue describes why a reply line was rejected. Line is the 1-based
// position in the raw reply.
type LineIssue struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ParseResult is the outcome of parsing a reply.
type ParseResult struct {
	Records []QuestionRecord
	Skipped int
	Issues  []LineIssue
}
