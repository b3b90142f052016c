package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clientcomms/internal/config"
)

type cli struct {
	configPath string
	cfg        config.Config
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "clientcomms",
		Short:         "Draft client communications from case files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("CC_CONFIG"), "path to a YAML config file")

	root.AddCommand(newDraftCommand(c))
	root.AddCommand(newInfoCommand(c))
	root.AddCommand(newDoctorCommand(c))
	return root
}
