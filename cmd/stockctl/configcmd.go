package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xinguang/stock-console/pkg/config"
	"github.com/xinguang/stock-console/pkg/fakeapi"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Run: func(cmd *cobra.Command, args []string) {
			c := cli.cfg
			cli.printer.Title("Configuration")
			cli.printer.Field("File", orDash(c.Path()))
			cli.printer.Field("base_url", c.BaseURL)
			cli.printer.Field("bind_key", orDash(c.BindKey))
			cli.printer.Field("request_timeout", c.RequestTimeout)
			cli.printer.Field("rule_run_timeout", c.RuleRunTimeout)
			cli.printer.Field("simulator_run_timeout", c.SimulatorRunTimeout)
			cli.printer.Field("page_size", c.PageSize)
			cli.printer.Field("log_level", c.LogLevel)
			cli.printer.Field("log_file", orDash(c.LogFile))
			cli.printer.Field("tui", c.TUI)
			cli.printer.Field("telegram", c.Telegram.Enabled)
			if c.Telegram.Enabled {
				cli.printer.Field("telegram.chat_id", c.Telegram.ChatID)
				cli.printer.Field("telegram.bot_token", mask(c.Telegram.BotToken))
				cli.printer.Field("telegram.min_level", c.Telegram.MinLevel)
			}
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if !cfg.ValidateAndPrint(os.Stderr) {
				return errors.New("configuration not saved")
			}
			if err := cfg.Save(""); err != nil {
				return err
			}
			cli.printer.Success("Saved %s to %s", args[0], cfg.Path())
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := cli.cfg.Validate()
			cli.cfg.ValidateAndPrint(os.Stdout)
			if !result.IsValid() {
				return reported(fmt.Errorf("%d configuration errors", len(result.Errors)))
			}
			if !result.HasWarnings() {
				cli.printer.Success("Configuration is valid")
			}
			return nil
		},
	}

	cmd.AddCommand(showCmd, setCmd, validateCmd)
	return cmd
}

func mask(secret string) string {
	if len(secret) <= 6 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:3] + strings.Repeat("*", len(secret)-6) + secret[len(secret)-3:]
}

func demoCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Serve an in-memory backend with demo data",
		Long: `demo serves a small in-memory backend seeded with pools, rules and
simulators so stockctl can be tried without a real backend:

  stockctl demo --addr :8000 &
  stockctl --base-url http://localhost:8000/api rules list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			backend := fakeapi.NewBackend()
			backend.Seed()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			srv := &http.Server{
				Handler:           backend.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()
			cli.printer.Success("Demo backend on http://%s/api", ln.Addr())
			cli.printer.Dim("Press Ctrl+C to stop")

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "Listen address")
	return cmd
}
