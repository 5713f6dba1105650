package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// QA is one answered question of a finished interview transcript.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CategoryScore grades one assessment category on a 0-100 scale.
type CategoryScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Feedback is the structured interview assessment produced by the model.
type Feedback struct {
	TotalScore          int             `json:"totalScore"`
	CategoryScores      []CategoryScore `json:"categoryScores"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement"`
	FinalAssessment     string          `json:"finalAssessment"`
}

// ScoreSpec carries everything the model needs to grade an interview.
type ScoreSpec struct {
	Role       string
	Categories []string
	Transcript []QA
}

const scoreSystemPrompt = "You are a strict but fair interview assessor. Respond with a single raw JSON object matching the requested schema and nothing else."

// Score grades a completed interview transcript across the given categories.
// The model must return exactly one score per category.
func (c *Client) Score(ctx context.Context, spec ScoreSpec) (*Feedback, error) {
	if len(spec.Transcript) == 0 {
		return nil, fmt.Errorf("llm: empty transcript")
	}
	if len(spec.Categories) == 0 {
		return nil, fmt.Errorf("llm: no assessment categories")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Grade this mock interview for a %s position.\n\nTranscript:\n", spec.Role)
	for i, qa := range spec.Transcript {
		answer := qa.Answer
		if answer == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n", i+1, qa.Question, i+1, answer)
	}
	fmt.Fprintf(&b, "\nScore each of these categories from 0 to 100 with a one-sentence comment: %s.\n", strings.Join(spec.Categories, "; "))
	b.WriteString(`Return JSON: {"totalScore":int,"categoryScores":[{"name":string,"score":int,"comment":string}],"strengths":[string],"areasForImprovement":[string],"finalAssessment":string}. `)
	b.WriteString("A skipped question marked [SKIPPED] counts against completeness. Include every category exactly once, in the order given.")

	raw, err := c.complete(ctx, scoreSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	var fb Feedback
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &fb); err != nil {
		return nil, fmt.Errorf("llm: unparsable feedback payload: %w", err)
	}
	if len(fb.CategoryScores) != len(spec.Categories) {
		return nil, fmt.Errorf("llm: expected %d category scores, got %d", len(spec.Categories), len(fb.CategoryScores))
	}
	for i := range fb.CategoryScores {
		if fb.CategoryScores[i].Score < 0 {
			fb.CategoryScores[i].Score = 0
		}
		if fb.CategoryScores[i].Score > 100 {
			fb.CategoryScores[i].Score = 100
		}
	}
	if fb.TotalScore < 0 || fb.TotalScore > 100 {
		sum := 0
		for _, cs := range fb.CategoryScores {
			sum += cs.Score
		}
		fb.TotalScore = sum / len(fb.CategoryScores)
	}
	return &fb, nil
}
