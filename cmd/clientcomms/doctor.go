package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clientcomms/internal/config"
	"clientcomms/internal/queue"
	"clientcomms/internal/store"
)

func newDoctorCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the configured database, redis and local server",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctor(cmd.Context(), c.cfg, cmd.OutOrStdout())
			return nil
		},
	}
}

func doctor(ctx context.Context, cfg config.Config, out io.Writer) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	checks := []struct {
		Name string
		Fn   func() error
	}{
		{"config", func() error { return cfg.Validate() }},
		{"database", func() error { return pingDatabase(ctx, cfg.Database.DSN) }},
		{"redis", func() error { return pingRedis(ctx, cfg.Redis.URL) }},
		{"http", func() error { return pingHTTP(ctx, localHTTPBase(cfg)+"/healthz") }},
	}
	for _, check := range checks {
		if err := check.Fn(); err != nil {
			fmt.Fprintf(out, "%s: FAIL (%v)\n", check.Name, err)
			continue
		}
		fmt.Fprintf(out, "%s: OK\n", check.Name)
	}
}

func pingDatabase(ctx context.Context, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("not configured")
	}
	st, err := store.Open(dsn)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Ping(ctx)
}

func pingRedis(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("not configured")
	}
	q, err := queue.New(url)
	if err != nil {
		return err
	}
	defer q.Close()
	if err := q.Ping(ctx); err != nil {
		return err
	}
	_, err = q.Depth(ctx)
	return err
}

func pingHTTP(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func localHTTPBase(cfg config.Config) string {
	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8000"
	}
	host := "127.0.0.1"
	port := addr
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		if h := addr[:idx]; h != "" && h != "0.0.0.0" {
			host = h
		}
		port = addr[idx+1:]
	}
	return fmt.Sprintf("http://%s:%s", host, port)
}
