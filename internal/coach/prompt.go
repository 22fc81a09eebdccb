package coach

import (
	"fmt"
	"strings"

	"github.com/saulo-duarte/chronos-goals/internal/goal"
)

const (
	defaultCount = 3
	maxCount     = 10
)

const systemPrompt = `
You help people break a goal into smaller goals for a personal planner.

Goals live on four levels: quarterly, monthly, weekly and daily. Each goal is
split into goals of the next finer level only.

Rules:
1. Suggest concrete, actionable goals that together move the parent goal forward.
2. Keep each title under 80 characters, written as an action.
3. Never repeat a title that already exists under the parent.
4. "minutes" is an optional planned duration, only for daily goals.

Answer with pure, valid JSON and nothing else:

[
  {"title": "<title>", "minutes": <optional integer>}
]
`

func clampCount(n int) int {
	if n <= 0 {
		return defaultCount
	}
	return min(n, maxCount)
}

// BuildUserPrompt describes the parent goal, the level to fill and the titles already taken.
func BuildUserPrompt(parent *goal.Goal, childType goal.GoalType, existing []string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest %d %s goals for the %s %s goal %q starting %s.",
		clampCount(count), childType, parent.Category, parent.Type, parent.Title, parent.StartDate)
	if len(existing) > 0 {
		fmt.Fprintf(&b, " Already planned: %s.", strings.Join(quoteAll(existing), ", "))
	}
	if childType == goal.TypeDaily {
		b.WriteString(" Include a realistic \"minutes\" value for each.")
	}
	return b.String()
}

func quoteAll(titles []string) []string {
	out := make([]string, len(titles))
	for i, t := range titles {
		out[i] = fmt.Sprintf("%q", t)
	}
	return out
}
