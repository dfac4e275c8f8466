// Package prompt binds the five assistant variables into the fixed
// instruction template. Intent routing lives inside the template: the model,
// not local code, matches the literal keywords ("profile analysis", "job
// fit", "cover letter", ...) and is told to ask for clarification when the
// intent is ambiguous.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"linkedin-optimizer/internal/llm"
)

//go:embed prompts/assistant_prompt.md
var assistantPromptRaw string

// Parsed once at package init; reused on every Assemble call.
var assistantTemplate = template.Must(template.New("assistant").Parse(assistantPromptRaw))

// NoHistory is the chat_history value for a fresh session.
const NoHistory = "No previous chat history in this session."

type Vars struct {
	Query          string
	ProfileContext string
	JobContext     string
	CareerGoals    string
	ChatHistory    string
}

func Assemble(v Vars) (string, error) {
	var b strings.Builder
	if err := assistantTemplate.Execute(&b, v); err != nil {
		return "", fmt.Errorf("fill assistant template: %w", err)
	}
	return b.String(), nil
}

// RenderHistory flattens transcript messages into "Role: content" lines for
// the chat_history variable.
func RenderHistory(msgs []llm.Message) string {
	if len(msgs) == 0 {
		return NoHistory
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		role := "You"
		if m.Role == llm.RoleAssistant {
			role = "Assistant"
		}
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
