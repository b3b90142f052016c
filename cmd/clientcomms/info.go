package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"clientcomms/internal/agent"
)

func newInfoCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print agent metadata and the resolved model settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := c.cfg.LLM.Settings()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"agents": []agent.Metadata{agent.Info()},
				"llm": map[string]any{
					"provider":    settings.Provider,
					"model":       settings.Model,
					"temperature": settings.Temperature,
					"max_tokens":  settings.MaxTokens,
				},
			})
		},
	}
}
