package main

import (
	"github.com/spf13/cobra"

	"github.com/xinguang/stock-console/pkg/agentlog"
	"github.com/xinguang/stock-console/pkg/notify"
	"github.com/xinguang/stock-console/pkg/tui"
)

func execCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Start an agent execution and follow its log",
		Long: `exec starts an agent execution on the backend and streams its log.
Closing the view stops following; the execution keeps running on the backend.`,
	}

	ruleCmd := &cobra.Command{
		Use:   "rule <rule-id>",
		Short: "Execute a rule over all of its stocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return follow(agentlog.Target{RuleID: id})
		},
	}

	stockCmd := &cobra.Command{
		Use:   "stock <rule-id> <code>",
		Short: "Execute a rule for one stock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return follow(agentlog.Target{RuleID: id, StockCode: args[1]})
		},
	}

	cmd.AddCommand(ruleCmd, stockCmd)
	return cmd
}

func follow(target agentlog.Target) error {
	ctx, cancel := signalContext()
	defer cancel()

	if cli.cfg.TUI {
		v := agentlog.NewViewer(cli.client.Executions(), target, agentlog.Options{
			Notifier: cli.quiet,
			Logger:   cli.log,
		})
		err := tui.RunLogView(ctx, v, cli.recorder)

		// the full-screen view is gone, repeat how it ended
		n, ok := cli.recorder.Last()
		if !ok {
			return err
		}
		notify.NewConsole(cli.printer).Notify(n)
		return reported(err)
	}

	v := agentlog.NewViewer(cli.client.Executions(), target, agentlog.Options{
		Notifier: cli.notifier,
		Logger:   cli.log,
		OnLine: func(line string) {
			cli.printer.Plain("%s", line)
		},
	})
	go func() {
		<-ctx.Done()
		v.Close()
	}()

	cli.printer.Info("Following %s", target)
	err := v.Follow(ctx)

	s := v.Snapshot()
	if s.ShowProgress && s.Total > 0 {
		cli.printer.Progress("Stocks", len(s.Completed), s.Total)
	}
	return reported(err)
}
