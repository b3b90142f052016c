package agent

const ID = "client_communication_guru"

// Metadata describes the agent to a hosting router.
type Metadata struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Capabilities []string          `json:"capabilities"`
	OutputSchema map[string]string `json:"output_schema"`
}

func Info() Metadata {
	return Metadata{
		ID:          ID,
		Name:        "Client Communication Guru",
		Description: "Drafts empathetic, professional client messages",
		Capabilities: []string{
			"Tone analysis",
			"Empathetic message generation",
			"Professional legal communication",
			"Context-aware drafting",
		},
		OutputSchema: map[string]string{
			"tone":          "string",
			"message_draft": "string",
			"reasoning":     "string",
		},
	}
}
