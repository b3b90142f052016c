// Package prompt turns a case document and a task descriptor into the
// provider-neutral system/user instruction pair.
package prompt

import "strings"

// Pair is the canonical (system, user) instruction pair sent to every provider.
type Pair struct {
	System string
	User   string
}

const systemInstructions = `You are an expert legal communication specialist helping attorneys draft empathetic, professional client messages.

Your role:
1. Analyze the client's emotional state and concerns from the case context
2. Draft a compassionate, clear message that addresses their needs
3. Maintain professional legal communication standards
4. Provide reasoning for your communication approach

Always respond in valid JSON format with these exact keys:
- tone: string describing the client's emotional state
- message_draft: string with the complete drafted message
- reasoning: string explaining your communication strategy`

const responseInstructions = `Based on this case information, analyze the client's tone and draft an empathetic message the attorney can send.

Respond ONLY with valid JSON in this exact format:
{
    "tone": "description of client's emotional state",
    "message_draft": "complete drafted message for the client",
    "reasoning": "explanation of communication approach"
}`

// Build is pure: identical inputs always produce an identical Pair.
func Build(documentText string, task Task) Pair {
	var b strings.Builder
	b.WriteString("Case Context:\n")
	b.WriteString(documentText)
	b.WriteString("\n\nTask Details:\n")
	b.WriteString(task.Pretty())
	b.WriteString("\n\n")
	b.WriteString(responseInstructions)
	return Pair{System: systemInstructions, User: b.String()}
}
