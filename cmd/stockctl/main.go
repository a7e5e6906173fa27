// stockctl - console client for the stock-agent trading backend
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/config"
	"github.com/xinguang/stock-console/pkg/logging"
	"github.com/xinguang/stock-console/pkg/notify"
	"github.com/xinguang/stock-console/pkg/store"
	"github.com/xinguang/stock-console/pkg/ui"
)

var (
	version    = "0.1.0"
	configPath string
	baseURL    string
	logLevel   string
	verbose    bool
	noColor    bool
	noTUI      bool
)

// app holds everything a command needs once flags are parsed
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	client   *api.Client
	printer  *ui.Printer
	notifier notify.Notifier // includes the console
	quiet    notify.Notifier // everything but the console
	recorder *notify.Recorder
	closeLog func() error
}

var cli *app

func main() {
	rootCmd := &cobra.Command{
		Use:   "stockctl",
		Short: "Console for the stock-agent trading backend",
		Long: `stockctl manages stock pools, trading rules and simulators of a
stock-agent backend and follows agent executions live.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cli != nil && cli.closeLog != nil {
				cli.closeLog()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.stockctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noTUI, "no-tui", false, "Print execution logs instead of the full-screen view")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(poolsCmd())
	rootCmd.AddCommand(stocksCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(simsCmd())
	rootCmd.AddCommand(tradingCmd())
	rootCmd.AddCommand(simConfigCmd())
	rootCmd.AddCommand(execCmd())
	rootCmd.AddCommand(demoCmd())

	if err := rootCmd.Execute(); err != nil {
		var re *reportedError
		if !errors.As(err, &re) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// setup loads config, flags win over file and environment
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if baseURL != "" {
		if err := cfg.Set("base_url", baseURL); err != nil {
			return err
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if noColor {
		cfg.NoColor = true
	}
	if noTUI {
		cfg.TUI = false
	}
	// logs stay off the terminal unless asked for
	if cfg.LogFile == "" && !verbose {
		if path, err := config.GetLogPath(); err == nil {
			cfg.LogFile = path
		}
	}

	logger, closeLog, err := logging.Setup(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		NoColor: cfg.NoColor,
	})
	if err != nil {
		return err
	}

	printer := ui.NewPrinter()
	printer.NoColor = printer.NoColor || cfg.NoColor

	recorder := &notify.Recorder{}
	notifiers := notify.Multi{notify.NewLogger(logger), recorder}
	if cfg.Telegram.Enabled {
		level, err := notify.ParseLevel(cfg.Telegram.MinLevel)
		if err != nil {
			closeLog()
			return err
		}
		notifiers = append(notifiers, notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, level, logger))
	}

	cli = &app{
		cfg:      cfg,
		log:      logger,
		printer:  printer,
		notifier: append(notify.Multi{notify.NewConsole(printer)}, notifiers...),
		quiet:    notifiers,
		recorder: recorder,
		closeLog: closeLog,
		client: api.New(cfg.BaseURL,
			api.WithTimeout(cfg.RequestTimeout),
			api.WithRunTimeouts(cfg.RuleRunTimeout, cfg.SimulatorRunTimeout),
			api.WithLogger(logger),
			api.WithUserAgent(config.AppName+"/"+version),
		),
	}
	return nil
}

// storeOptions returns list store options sharing the app's notifier
func (a *app) storeOptions() store.Options {
	return store.Options{Notifier: a.notifier, Logger: a.log}
}

// listParams builds the query of a paged list
func (a *app) listParams(page, pageSize int) api.Params {
	if pageSize <= 0 {
		pageSize = a.cfg.PageSize
	}
	p := api.Params{}
	if page > 0 {
		p = p.WithInt("page", page).WithInt("page_size", pageSize)
	}
	if a.cfg.BindKey != "" {
		p = p.With("bind_key", a.cfg.BindKey)
	}
	return p
}

// signalContext is cancelled on interrupt
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %s", s)
	}
	return id, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stockctl version %s\n", version)
		},
	}
}
