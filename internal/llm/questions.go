package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionSpec describes the interview to generate questions for.
type QuestionSpec struct {
	Role       string
	Level      string
	Count      int
	FocusAreas []string
}

const questionSystemPrompt = "You are an experienced hiring manager preparing questions for a mock job interview. Respond with a raw JSON array of question strings and nothing else."

// GenerateQuestions asks the model for spec.Count interview questions and
// parses them out of the JSON array it returns.
func (c *Client) GenerateQuestions(ctx context.Context, spec QuestionSpec) ([]string, error) {
	if spec.Count <= 0 {
		return nil, fmt.Errorf("llm: question count must be positive")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d interview questions for a %s position", spec.Count, spec.Role)
	if spec.Level != "" {
		fmt.Fprintf(&b, " at %s level", spec.Level)
	}
	b.WriteString(".")
	if len(spec.FocusAreas) > 0 {
		fmt.Fprintf(&b, " Focus on: %s.", strings.Join(spec.FocusAreas, ", "))
	}
	b.WriteString(" Questions must be answerable out loud in one to three minutes. Return a JSON array of strings.")

	raw, err := c.complete(ctx, questionSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	var questions []string
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &questions); err != nil {
		return nil, fmt.Errorf("llm: unparsable question payload: %w", err)
	}
	cleaned := questions[:0]
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("llm: model returned no questions")
	}
	if len(cleaned) > spec.Count {
		cleaned = cleaned[:spec.Count]
	}
	return cleaned, nil
}
