package processing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GokulKGit/quiz-API/config"
	"github.com/GokulKGit/quiz-API/errors"
)

const (
	correctLabel     = "Correct:"
	explanationLabel = "Explanation:"
	optionCount      = 4
	minSegments      = 1 + optionCount + 1
)

var (
	questionPrefix = regexp.MustCompile(`^Question\s*\d+\s*[:.)]\s*`)
	optionLabel    = regexp.MustCompile(`^(?:\(?[A-Da-d][.):]|\([A-Da-d]\))\s*`)
	placeholder    = regexp.MustCompile(`^\[[^\]]*\]\.?$`)
	spaces         = regexp.MustCompile(`\s+`)
)

// ParserOptions controls how a reply is filtered and how malformed lines
// are treated.
type ParserOptions struct {
	Filter         string // config.FilterStrict or config.FilterLenient
	Policy         string // config.PolicySkip or config.PolicyStrict
	LenientAnswers bool
}

// DefaultParserOptions returns the built-in options for c. Programming
// replies are filtered strictly since models tend to add headings there.
func DefaultParserOptions(c Category) ParserOptions {
	opts := ParserOptions{Filter: config.FilterLenient, Policy: config.PolicySkip}
	if c == Programming {
		opts.Filter = config.FilterStrict
	}
	return opts
}

// withOverrides applies non-zero fields of cfg on top of o.
func (o ParserOptions) withOverrides(cfg config.CategoryConfig) ParserOptions {
	if cfg.Filter != "" {
		o.Filter = cfg.Filter
	}
	if cfg.Policy != "" {
		o.Policy = cfg.Policy
	}
	if cfg.LenientAnswers {
		o.LenientAnswers = true
	}
	return o
}

// ResponseParser converts the line-oriented reply format into records:
//
//	Question N: <text> | <A> | <B> | <C> | <D> | Correct: <answer> | Explanation: <text>
//
// A parser holds no state between calls.
type ResponseParser struct {
	opts ParserOptions
}

func NewResponseParser(opts ParserOptions) *ResponseParser {
	if opts.Filter == "" {
		opts.Filter = config.FilterStrict
	}
	if opts.Policy == "" {
		opts.Policy = config.PolicySkip
	}
	return &ResponseParser{opts: opts}
}

// Parse extracts every well-formed question from raw. Under the skip policy
// malformed lines are counted and reported in the result; under the strict
// policy the first one fails the whole reply with a FormatValidationError.
// A reply that yields no records returns an EmptyResultError.
func (p *ResponseParser) Parse(raw string) (*ParseResult, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	result := &ParseResult{Records: []QuestionRecord{}}
	retained := 0
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if !p.keep(line) {
			continue
		}
		retained++

		rec, err := p.parseLine(i+1, line)
		if err != nil {
			if p.opts.Policy == config.PolicyStrict {
				return nil, errors.NewFormatValidationError(
					fmt.Sprintf("line %d: %s", i+1, err.Details), err)
			}
			result.Skipped++
			result.Issues = append(result.Issues, LineIssue{Line: i + 1, Reason: err.Details})
			continue
		}
		result.Records = append(result.Records, rec)
	}

	if retained == 0 {
		return nil, errors.NewEmptyResultError("reply contained no question lines")
	}
	if len(result.Records) == 0 {
		return nil, errors.NewEmptyResultError(
			fmt.Sprintf("all %d question lines were malformed", result.Skipped))
	}
	return result, nil
}

func (p *ResponseParser) keep(line string) bool {
	if line == "" {
		return false
	}
	if p.opts.Filter == config.FilterLenient {
		return true
	}
	return strings.HasPrefix(line, "Question")
}

func (p *ResponseParser) parseLine(n int, line string) (QuestionRecord, *errors.QuizError) {
	segments := strings.Split(line, "|")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}
	if len(segments) < minSegments {
		return QuestionRecord{}, errors.NewMalformedLineError(n,
			fmt.Sprintf("expected at least %d segments, got %d", minSegments, len(segments)))
	}

	rec := QuestionRecord{
		Question: questionPrefix.ReplaceAllString(segments[0], ""),
		Options:  make([]string, 0, optionCount),
	}
	for _, opt := range segments[1 : 1+optionCount] {
		if hasLabel(opt, correctLabel) || hasLabel(opt, explanationLabel) {
			return QuestionRecord{}, errors.NewMalformedLineError(n, "fewer than four options")
		}
		rec.Options = append(rec.Options, opt)
	}

	var trailing []string
	inExplanation := false
	for _, seg := range segments[1+optionCount:] {
		switch {
		case hasLabel(seg, correctLabel):
			rec.Correct = strings.TrimSpace(seg[len(correctLabel):])
			inExplanation = false
		case hasLabel(seg, explanationLabel):
			rec.Explanation = strings.TrimSpace(seg[len(explanationLabel):])
			inExplanation = true
		case inExplanation:
			trailing = append(trailing, seg)
		}
	}
	if len(trailing) > 0 {
		rec.Explanation = strings.Join(append([]string{rec.Explanation}, trailing...), " | ")
	}

	switch {
	case rec.Question == "":
		return QuestionRecord{}, errors.NewMalformedLineError(n, "empty question")
	case rec.Correct == "":
		return QuestionRecord{}, errors.NewMalformedLineError(n, "missing Correct: segment")
	case rec.Explanation == "":
		return QuestionRecord{}, errors.NewMalformedLineError(n, "missing Explanation: segment")
	}
	for _, opt := range rec.Options {
		if opt == "" {
			return QuestionRecord{}, errors.NewMalformedLineError(n, "empty option")
		}
	}
	if isPlaceholder(rec) {
		return QuestionRecord{}, errors.NewMalformedLineError(n, "template placeholder line")
	}

	if !p.opts.LenientAnswers {
		opt, ok := matchOption(rec.Correct, rec.Options)
		if !ok {
			return QuestionRecord{}, errors.NewMalformedLineError(n,
				fmt.Sprintf("correct answer %q matches no option", rec.Correct))
		}
		rec.Correct = opt
	}
	return rec, nil
}

func hasLabel(seg, label string) bool {
	return len(seg) >= len(label) && strings.EqualFold(seg[:len(label)], label)
}

func isPlaceholder(rec QuestionRecord) bool {
	if placeholder.MatchString(rec.Question) {
		return true
	}
	for _, opt := range rec.Options {
		if !placeholder.MatchString(opt) {
			return false
		}
	}
	return true
}

// matchOption resolves answer to one of options. It accepts the option text
// (ignoring case, spacing and a letter label) or a bare letter A-D.
func matchOption(answer string, options []string) (string, bool) {
	want := normalize(answer)
	for _, opt := range options {
		if normalize(opt) == want {
			return opt, true
		}
	}

	letter := strings.Trim(strings.TrimSpace(answer), "().:")
	if len(letter) == 1 {
		idx := int(strings.ToUpper(letter)[0]) - 'A'
		if idx >= 0 && idx < len(options) {
			return options[idx], true
		}
	}
	return "", false
}

func normalize(s string) string {
	s = optionLabel.ReplaceAllString(strings.TrimSpace(s), "")
	s = spaces.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(strings.TrimRight(s, ".")))
}
