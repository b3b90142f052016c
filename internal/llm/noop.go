package llm

import (
	"context"
	"encoding/json"
	"strings"

	"clientcomms/internal/prompt"
)

// Noop drafts offline from keyword heuristics. It answers the way chatty
// models do, with prose around a fenced JSON block.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Name() string { return string(NoopProvider) }

func (n *Noop) Invoke(ctx context.Context, pair prompt.Pair, _ Settings) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", invocationError(n.Name(), err)
	}
	caseText := caseContext(pair.User)
	tone, reasoning := detectTone(caseText)
	draft := "Dear Client,\n\n"
	draft += "Thank you for reaching out. We have reviewed the latest developments in your matter"
	draft += " and want you to know we are actively working on it.\n\n"
	draft += "Summary we are working from:\n" + truncate(caseText, 240)
	draft += "\n\nWe will follow up shortly with next steps.\n\nBest regards,\nYour legal team"

	body, _ := json.Marshal(map[string]string{
		"tone":          tone,
		"message_draft": draft,
		"reasoning":     reasoning,
	})
	return "Here is the drafted communication:\n```json\n" + string(body) + "\n```", nil
}

func caseContext(user string) string {
	text := strings.TrimPrefix(user, "Case Context:\n")
	if idx := strings.Index(text, "\n\nTask Details:"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func detectTone(text string) (string, string) {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "angry", "furious", "unacceptable", "complaint"):
		return "frustrated, expects accountability", "Client language signals frustration; acknowledge it directly and commit to concrete follow-up."
	case containsAny(lower, "worried", "anxious", "scared", "deadline", "urgent"):
		return "anxious, seeking reassurance", "Client appears concerned about timing; lead with reassurance and a clear next step."
	case containsAny(lower, "thank", "grateful", "great news", "settled"):
		return "relieved, appreciative", "Client is positive; confirm the outcome and keep the message warm and brief."
	case containsAny(lower, "confused", "don't understand", "what does", "question"):
		return "uncertain, needs clarity", "Client is unsure of the process; explain plainly and invite questions."
	default:
		return "neutral, informational", "No strong emotional signal; keep a professional, informative tone."
	}
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
