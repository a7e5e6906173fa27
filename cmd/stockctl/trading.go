package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/notify"
	"github.com/xinguang/stock-console/pkg/store"
)

func tradingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trading",
		Short: "Browse the trading log of all simulators",
	}

	var (
		ruleID         int
		page, pageSize int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := cli.listParams(page, pageSize)
			if ruleID > 0 {
				params = params.WithInt("rule_id", ruleID)
			}
			ctx, cancel := signalContext()
			defer cancel()

			check := cli.watchErrors()
			l := store.NewTradings(cli.client, cli.storeOptions())
			l.Fetch(ctx, params)
			if err := check(); err != nil {
				return err
			}
			s := l.Snapshot()
			cli.printer.Table(tradingHeaders, tradingRows(s.Items))
			cli.pagination(len(s.Items), s.Total, page)
			return nil
		},
	}
	listCmd.Flags().IntVar(&ruleID, "rule", 0, "Only trades of this rule")
	listCmd.Flags().IntVar(&page, "page", 0, "Page number (0 lists everything)")
	listCmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size (defaults to config page_size)")

	var earnRule, earnSim int
	earnsCmd := &cobra.Command{
		Use:   "earns",
		Short: "Show the cumulative earnings history",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := cli.listParams(0, 0)
			if earnRule > 0 {
				params = params.WithInt("rule_id", earnRule)
			}
			if earnSim > 0 {
				params = params.WithInt("sim_id", earnSim)
			}
			return printList(cli.scoped(params), func(ctx context.Context, o store.Options) ([]string, [][]string) {
				l := store.NewTradeEarns(cli.client, o)
				l.Mount(ctx)
				return tradeEarnHeaders, tradeEarnRows(l.Items())
			})
		},
	}
	earnsCmd.Flags().IntVar(&earnRule, "rule", 0, "Only earnings of this rule")
	earnsCmd.Flags().IntVar(&earnSim, "sim", 0, "Only earnings of this simulator")

	cmd.AddCommand(listCmd, earnsCmd)
	return cmd
}

func simConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simconfig",
		Short: "Show or change the global simulator sell policy",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the simulator config",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := cli.client.SimConfig().Get(ctx)
			if err != nil {
				return err
			}
			cli.printer.Title("Simulator config")
			cli.printer.Field("Profit threshold", fmt.Sprintf("%g%%", cfg.ProfitThreshold))
			cli.printer.Field("Stop loss", fmt.Sprintf("%g%%", cfg.StopLoss))
			cli.printer.Field("Max holding days", cfg.MaxHoldingDays)
			return nil
		},
	}

	var (
		profit, stopLoss float64
		holdDays         int
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change the simulator config",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			svc := cli.client.SimConfig()
			cfg, err := svc.Get(ctx)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("profit-threshold") {
				cfg.ProfitThreshold = profit
			}
			if flags.Changed("stop-loss") {
				cfg.StopLoss = stopLoss
			}
			if flags.Changed("max-holding-days") {
				if holdDays < 1 {
					return fmt.Errorf("--max-holding-days must be at least 1")
				}
				cfg.MaxHoldingDays = holdDays
			}

			if err := svc.Update(ctx, cfg); err != nil {
				notify.Error(cli.notifier, "Failed to update simulator config: %s", api.Message(err))
				return reported(err)
			}
			notify.Success(cli.notifier, "Simulator config updated successfully")
			return nil
		},
	}
	setCmd.Flags().Float64Var(&profit, "profit-threshold", 0, "Sell when profit reaches this percentage")
	setCmd.Flags().Float64Var(&stopLoss, "stop-loss", 0, "Sell when loss reaches this percentage")
	setCmd.Flags().IntVar(&holdDays, "max-holding-days", 0, "Sell after holding this many days")

	cmd.AddCommand(getCmd, setCmd)
	return cmd
}
