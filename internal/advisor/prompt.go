package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/taskpulse/domain"
)

const promptHeader = `You are an assistant that reviews a person's task list and gives short, warm, practical feedback.

CURRENT DATE: %s

TASKS:
%s
Respond with ONLY a JSON object with the keys "summary" (one or two sentences),
"insights" (array of short observations) and "suggestions" (array of short next steps).`

// BuildPrompt renders the task snapshot for the advisory model.
func BuildPrompt(tasks []domain.Task, now time.Time) string {
	var b strings.Builder
	if len(tasks) == 0 {
		b.WriteString("(no tasks)\n")
	}
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s [priority: %s, status: %s, progress: %d%%]", t.Title, t.Priority, t.Status.Label(), t.Progress)
		if ctx := domain.DeadlineContext(t.Deadline, now); ctx != "" {
			b.WriteString(" ")
			b.WriteString(ctx)
		}
		b.WriteString("\n")
		for _, s := range t.Subtasks {
			mark := " "
			if s.Completed {
				mark = "x"
			}
			fmt.Fprintf(&b, "    [%s] %s\n", mark, s.DisplayTitle())
		}
	}
	return fmt.Sprintf(promptHeader, now.Format("2006-01-02"), b.String())
}

type payload struct {
	Summary     string   `json:"summary"`
	Insights    []string `json:"insights"`
	Suggestions []string `json:"suggestions"`
}

// ParseFeedback decodes the model reply. Models sometimes wrap the object in
// prose, so the outermost braces are tried when the reply is not pure JSON.
func ParseFeedback(text string) (domain.Feedback, error) {
	text = strings.TrimSpace(text)
	var p payload
	err := json.Unmarshal([]byte(text), &p)
	if err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return domain.Feedback{}, fmt.Errorf("advisor reply is not JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
			return domain.Feedback{}, fmt.Errorf("advisor reply is not JSON: %w", err)
		}
	}
	if strings.TrimSpace(p.Summary) == "" {
		return domain.Feedback{}, fmt.Errorf("advisor reply has no summary")
	}
	return domain.Feedback{
		Summary:     p.Summary,
		Insights:    nonNil(p.Insights),
		Suggestions: nonNil(p.Suggestions),
	}, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
