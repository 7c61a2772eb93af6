package llm

import (
	"fmt"
	"strings"
)

// SystemPrompt frames every request.
const SystemPrompt = "You are an operations analyst AI. Use concise, verifiable, business-appropriate " +
	"language. If data is missing, say 'unknown'. Never invent tasks or dates."

const textToRowsTemplate = `From the update text below, extract tasks with fields:
task_id (slug), title, owner, status(one of: todo, in_progress, blocked, done), start_date(YYYY-MM-DD or null), due_date(YYYY-MM-DD or null), dependency_ids(list of task ids), priority(low/med/high), effort(1..5), notes.
Return strict JSON array only.

TEXT:
%s`

const recommendationTemplate = `You are a workflow optimizer. Given a task and context (owner load, dependencies, due dates), propose 1-3 concrete actions. Focus on realism: reassign to available owners, split, escalate, or renegotiate. Each action: {title, rationale, expected_effect(<=20 words), type(one of: reassign, split_task, escalate, renegotiate_deadline, add_resources, remove_dependencies, prioritize), priority(high/medium/low)}. Return strict JSON.

Task: %s
Owner: %s
Bottleneck Type: %s
Reason: %s

Context:
%s

Return JSON array of recommendations:`

// TextToRowsPrompt builds the extraction prompt for free-form status text.
func TextToRowsPrompt(text string) string {
	return fmt.Sprintf(textToRowsTemplate, text)
}

// RecommendationRequest carries the fields interpolated into a
// recommendation prompt.
type RecommendationRequest struct {
	Title          string
	Owner          string
	BottleneckType string
	Reason         string
	Context        []string
}

// RecommendationPrompt builds the prompt asking for 1-3 actions.
func RecommendationPrompt(r RecommendationRequest) string {
	return fmt.Sprintf(recommendationTemplate,
		r.Title, r.Owner, r.BottleneckType, r.Reason, strings.Join(r.Context, "\n"))
}
