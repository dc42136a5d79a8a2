package processing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptBuilderCategories(t *testing.T) {
	b, err := NewPromptBuilder(nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		req      QuestionRequest
		contains []string
	}{
		{
			name: "programming",
			req:  QuestionRequest{Category: Programming, Topic: "C pointers", Count: 5, Level: "beginner"},
			contains: []string{
				`Generate exactly 5 multiple-choice questions on the topic "C pointers" at a "beginner" difficulty level.`,
				"What does the 'printf' function do?",
				"Question 3: [Your next question]",
			},
		},
		{
			name: "logical",
			req:  QuestionRequest{Category: LogicalReasoning, Topic: "blood relations", Count: 3, Level: "medium"},
			contains: []string{
				`on the topic "Logical Reasoning" with a focus on "blood relations"`,
				"Correct: Uncle",
				"Question 3: [Your next logical reasoning question]",
			},
		},
		{
			name: "quantitative",
			req:  QuestionRequest{Category: QuantitativeAptitude, Topic: "percentages", Count: 10, Level: "hard"},
			contains: []string{
				`on the topic "Quantitative Aptitude" with a focus on "percentages"`,
				"Correct: 600",
				"Question 3: [Your next quantitative aptitude question]",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := b.Build(tt.req)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, prompt, s)
			}
			assert.Contains(t, prompt, "The output strictly adheres to the given format.")
		})
	}
}

// TestPromptExamplesParse keeps the worked examples in the prompts valid
// input for the parser, so the model is never shown a format we reject.
func TestPromptExamplesParse(t *testing.T) {
	for c, cp := range categoryPrompts {
		t.Run(string(c), func(t *testing.T) {
			res, err := NewResponseParser(DefaultParserOptions(c)).Parse(strings.Join(cp.examples, "\n"))
			require.NoError(t, err)
			assert.Len(t, res.Records, len(cp.examples))
			assert.Equal(t, 0, res.Skipped)
		})
	}
}

func TestPromptBuilderOverrides(t *testing.T) {
	b, err := NewPromptBuilder(map[Category]string{
		Programming: "Write {{.Count}} {{.Level}} questions about {{.Topic}}.",
	})
	require.NoError(t, err)

	prompt, err := b.Build(QuestionRequest{Category: Programming, Topic: "Go", Count: 2, Level: "easy"})
	require.NoError(t, err)
	assert.Equal(t, "Write 2 easy questions about Go.", prompt)

	// Categories without an override keep the built-in template.
	prompt, err = b.Build(QuestionRequest{Category: LogicalReasoning, Topic: "series", Count: 2, Level: "easy"})
	require.NoError(t, err)
	assert.Contains(t, prompt, `with a focus on "series"`)
}

func TestPromptBuilderErrors(t *testing.T) {
	_, err := NewPromptBuilder(map[Category]string{Programming: "{{.Topic"})
	assert.Error(t, err)

	b, err := NewPromptBuilder(map[Category]string{Programming: "{{.Missing}}"})
	require.NoError(t, err)
	_, err = b.Build(QuestionRequest{Category: Programming, Topic: "Go", Count: 1, Level: "easy"})
	assert.Error(t, err)

	b, err = NewPromptBuilder(nil)
	require.NoError(t, err)
	_, err = b.Build(QuestionRequest{Category: "history", Topic: "Rome", Count: 1, Level: "easy"})
	assert.Error(t, err)
}

// TestPromptTopicVerbatim checks that user text is inserted as-is.
func TestPromptTopicVerbatim(t *testing.T) {
	b, err := NewPromptBuilder(nil)
	require.NoError(t, err)

	topic := `pointers & "arrays" <C>`
	prompt, err := b.Build(QuestionRequest{Category: Programming, Topic: topic, Count: 1, Level: "easy"})
	require.NoError(t, err)
	assert.Contains(t, prompt, topic)
}
