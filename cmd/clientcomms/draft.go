package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"clientcomms/internal/agent"
	"clientcomms/internal/app"
	"clientcomms/internal/config"
	"clientcomms/internal/llm"
	"clientcomms/internal/observability"
	"clientcomms/internal/policy"
	"clientcomms/internal/prompt"
	"clientcomms/internal/tools"
)

type draftOptions struct {
	task        string
	provider    string
	concurrency int
	pretty      bool
}

func newDraftCommand(c *cli) *cobra.Command {
	opts := draftOptions{}
	cmd := &cobra.Command{
		Use:   "draft FILE...",
		Short: "Draft a client message for each case file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraft(cmd.Context(), c.cfg, opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.task, "task", "", "task descriptor as a JSON object")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "override the configured provider (openai, anthropic, ollama, noop)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "files drafted in parallel")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "indent JSON output")
	return cmd
}

// runDraft prints one report per file in completion order. Unreadable files
// fail the command; agent failures are reported inside the report.
func runDraft(ctx context.Context, cfg config.Config, opts draftOptions, files []string, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.provider != "" {
		if _, err := llm.ParseProviderID(opts.provider); err != nil {
			return err
		}
		cfg.LLM.Provider = opts.provider
		cfg.LLM.Model = ""
	}
	task := prompt.DefaultTask()
	if opts.task != "" {
		parsed, err := prompt.ParseTask([]byte(opts.task))
		if err != nil {
			return fmt.Errorf("--task: %w", err)
		}
		if !parsed.IsEmpty() {
			task = parsed
		}
	}

	logger := observability.NewLogger(cfg.Log.Level, "text", errOut)
	var pol policy.Policy
	if cfg.Policy.Path != "" {
		loaded, err := policy.Load(cfg.Policy.Path)
		if err != nil {
			return err
		}
		pol = loaded
	}
	guru, err := agent.New(cfg.LLM, app.BuildProviders(cfg.LLM), agent.WithLogger(logger))
	if err != nil {
		return err
	}
	svc := tools.NewService(guru, nil, nil, pol, nil, logger)

	var mu sync.Mutex
	enc := json.NewEncoder(out)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}

	g, ctx := errgroup.WithContext(ctx)
	if opts.concurrency > 0 {
		g.SetLimit(opts.concurrency)
	}
	for _, path := range files {
		path := path
		g.Go(func() error {
			text, err := readCaseFile(path)
			if err != nil {
				return err
			}
			report := svc.ProcessCase(ctx, filepath.Base(path), text, task)
			mu.Lock()
			defer mu.Unlock()
			return enc.Encode(report)
		})
	}
	return g.Wait()
}

func readCaseFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: file must be valid UTF-8 encoded text", path)
	}
	return string(data), nil
}
