package processing

import (
	"bytes"
	"fmt"
	"text/template"
)

// PromptData is the value a prompt template is executed with. Custom
// templates configured per category receive the same fields.
type PromptData struct {
	Count       int
	Topic       string
	Level       string
	Subject     string   // category subject, empty for programming
	Noun        string   // what one question is called in the placeholder line
	Examples    []string // worked example lines, already in the output format
	Placeholder string   // trailing placeholder line
}

const defaultPromptTemplate = `Generate exactly {{.Count}} multiple-choice questions on the topic {{if .Subject}}"{{.Subject}}" with a focus on "{{.Topic}}"{{else}}"{{.Topic}}"{{end}} at a "{{.Level}}" difficulty level.
Each question must include the following:
1. A clear and concise question string.
2. Four distinct options (A, B, C, D).
3. The correct answer explicitly labeled as "Correct: [Option text]".
4. A detailed and easy-to-understand explanation of why the correct answer is correct.

Format the output precisely as shown below, one question per line, without adding any introductory or extra text:
{{range .Examples}}{{.}}
{{end}}{{.Placeholder}}

Ensure:
- The output strictly adheres to the given format.
- Use appropriate {{.Noun}}s relevant to the topic and level.
- Avoid any additional information, formatting, or introductory/explanatory comments outside the required structure.
`

type categoryPrompt struct {
	subject  string
	noun     string
	examples []string
}

var categoryPrompts = map[Category]categoryPrompt{
	Programming: {
		noun: "question",
		examples: []string{
			"Question 1: What does the 'printf' function do? | Prints to the screen | Reads input | Allocates memory | Terminates the program | Correct: Prints to the screen | Explanation: The 'printf' function is used to display output on the screen.",
			"Question 2: What is the size of an integer in C? | 2 bytes | 4 bytes | 8 bytes | Depends on the compiler | Correct: Depends on the compiler | Explanation: The size of an integer depends on the system architecture and compiler.",
		},
	},
	LogicalReasoning: {
		subject: LogicalReasoning.Title(),
		noun:    "logical reasoning question",
		examples: []string{
			"Question 1: If A is the brother of B, and B is the mother of C, how is A related to C? | Uncle | Brother | Father | Grandfather | Correct: Uncle | Explanation: A is B's brother, and since B is C's mother, A is C's uncle.",
			`Question 2: If the code for "APPLE" is "ELPPA," what is the code for "ORANGE"? | EGNARO | ORGENA | ANEGRO | ANGORE | Correct: EGNARO | Explanation: The code reverses the letters of the word. Thus, "ORANGE" becomes "EGNARO."`,
		},
	},
	QuantitativeAptitude: {
		subject: QuantitativeAptitude.Title(),
		noun:    "quantitative aptitude question",
		examples: []string{
			"Question 1: A shirt marked at 800 is sold at a 25% discount. What is the selling price? | 550 | 600 | 625 | 650 | Correct: 600 | Explanation: 25% of 800 is 200, so the selling price is 800 - 200 = 600.",
			"Question 2: A train covers 180 km in 3 hours. What is its average speed? | 50 km/h | 55 km/h | 60 km/h | 65 km/h | Correct: 60 km/h | Explanation: Average speed is distance divided by time, so 180 / 3 = 60 km/h.",
		},
	},
}

// PromptBuilder renders category prompts. Templates are compiled once, so a
// builder is safe for concurrent use.
type PromptBuilder struct {
	templates map[Category]*template.Template
}

// NewPromptBuilder compiles the built-in template for every category,
// replacing it with overrides[c] when present.
func NewPromptBuilder(overrides map[Category]string) (*PromptBuilder, error) {
	templates := make(map[Category]*template.Template, len(categoryPrompts))
	for _, c := range Categories() {
		src := defaultPromptTemplate
		if o, ok := overrides[c]; ok && o != "" {
			src = o
		}
		t, err := template.New(string(c)).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", c, err)
		}
		templates[c] = t
	}
	return &PromptBuilder{templates: templates}, nil
}

// Build renders the prompt for req.
func (b *PromptBuilder) Build(req QuestionRequest) (string, error) {
	tmpl, ok := b.templates[req.Category]
	if !ok {
		return "", fmt.Errorf("no template found for category: %s", req.Category)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, NewPromptData(req)); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}

// NewPromptData assembles the template data for req.
func NewPromptData(req QuestionRequest) PromptData {
	cp := categoryPrompts[req.Category]
	next := len(cp.examples) + 1
	return PromptData{
		Count:    req.Count,
		Topic:    req.Topic,
		Level:    req.Level,
		Subject:  cp.subject,
		Noun:     cp.noun,
		Examples: cp.examples,
		Placeholder: fmt.Sprintf(
			"Question %d: [Your next %s] | [Option A] | [Option B] | [Option C] | [Option D] | Correct: [Correct option] | Explanation: [Explanation of correct answer].",
			next, cp.noun),
	}
}
