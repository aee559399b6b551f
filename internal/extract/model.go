package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Completer runs one chat completion and returns the assistant text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// RawTask is one entry of the model's task list before normalization.
type RawTask struct {
	Description string
	Priority    string
	MessageLink string
}

const systemInstruction = `Respond with JSON only. Schema: ` +
	`{"tasks":[{"description":"string","priority":"URGENT|HIGH PRIORITY|MEDIUM PRIORITY|LOW PRIORITY","message_link":null|"string"}]}.`

var jsonBlobRe = regexp.MustCompile(`(?s)\{.*\}`)

// BuildPrompt returns the user prompt for a transcript.
func BuildPrompt(transcript string, user User) string {
	var sb strings.Builder
	sb.WriteString("Analyze the Discord conversation and extract only tasks assigned to ")
	sb.WriteString(user.Handle())
	sb.WriteString(".\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Focus on clear, actionable tasks assigned to the user.\n")
	sb.WriteString("- Ignore general chatter or tasks for other people.\n")
	sb.WriteString("- Use concise, imperative phrasing.\n")
	sb.WriteString("- Return a priority of URGENT, HIGH PRIORITY, MEDIUM PRIORITY, or LOW PRIORITY.\n")
	sb.WriteString("- If a task is tied to a specific message, include its message_link.\n")
	sb.WriteString("- Do not invent links.\n\n")
	sb.WriteString("Messages:\n")
	sb.WriteString(transcript)
	return sb.String()
}

// GenerateTodoList asks the model for the user's tasks. Any completion
// failure yields an empty list; the error is returned alongside for logging
// and is never fatal to the caller.
func GenerateTodoList(ctx context.Context, c Completer, transcript string, user User) ([]RawTask, error) {
	if transcript == "" {
		return nil, nil
	}
	if c == nil {
		return nil, ErrNoModel
	}

	content, err := c.Complete(ctx, systemInstruction, BuildPrompt(transcript, user))
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	return ParseTaskList(content), nil
}

// ParseTaskList decodes the model reply. It accepts the bare JSON document or
// the first {...} span embedded in prose or code fences. Anything without a
// "tasks" array decodes to an empty list; non-object items and items without
// a description are skipped.
func ParseTaskList(content string) []RawTask {
	payload := strings.TrimSpace(content)
	if payload == "" {
		return nil
	}
	if !gjson.Valid(payload) {
		payload = jsonBlobRe.FindString(payload)
		if payload == "" || !gjson.Valid(payload) {
			return nil
		}
	}

	root := gjson.Parse(payload)
	if !root.IsObject() {
		return nil
	}
	list := root.Get("tasks")
	if !list.IsArray() {
		return nil
	}

	var out []RawTask
	for _, item := range list.Array() {
		if !item.IsObject() {
			continue
		}
		desc := strings.TrimSpace(item.Get("description").String())
		if desc == "" {
			continue
		}
		out = append(out, RawTask{
			Description: desc,
			Priority:    item.Get("priority").String(),
			MessageLink: item.Get("message_link").String(),
		})
	}
	return out
}
