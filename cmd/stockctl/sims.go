package main

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xinguang/stock-console/pkg/store"
	"github.com/xinguang/stock-console/pkg/trading"
)

func simsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sims",
		Aliases: []string{"simulators", "sim"},
		Short:   "Manage simulators",
	}

	var (
		ruleID         int
		page, pageSize int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List simulators",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			params := cli.listParams(page, pageSize)
			if ruleID > 0 {
				params = params.WithInt("rule_id", ruleID)
			}

			check := cli.watchErrors()
			sims := store.NewSimulators(cli.client, cli.storeOptions())
			sims.Fetch(ctx, params)
			if err := check(); err != nil {
				return err
			}

			s := sims.Snapshot()
			cli.printer.Table(simHeaders, simRows(s.Items))
			cli.pagination(len(s.Items), s.Total, page)
			return nil
		},
	}
	listCmd.Flags().IntVar(&ruleID, "rule", 0, "Only simulators of this rule")
	listCmd.Flags().IntVar(&page, "page", 0, "Page number (0 lists everything)")
	listCmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size (defaults to config page_size)")

	showCmd := &cobra.Command{
		Use:   "show <sim-id>",
		Short: "Show a simulator with its earnings and trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return showSimulator(id)
		},
	}

	var (
		addRule  int
		addStock string
		addMoney string
		addStart string
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a simulator for a rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addRule <= 0 {
				return errors.New("--rule is required")
			}
			amount, err := decimal.NewFromString(addMoney)
			if err != nil || !amount.IsPositive() {
				return errors.New("--init-money must be a positive amount")
			}
			fields := trading.Patch{"rule_id": addRule, "init_money": amount.InexactFloat64()}
			if addStock != "" {
				fields["stock_code"] = addStock
			}
			if addStart != "" {
				fields["start_date"] = addStart
			}
			return simMutation(func(ctx context.Context, sims *store.Simulators) error {
				return sims.Add(ctx, fields)
			})
		},
	}
	addCmd.Flags().IntVar(&addRule, "rule", 0, "Rule to simulate")
	addCmd.Flags().StringVar(&addStock, "stock", "", "Stock code (empty simulates every stock of the rule)")
	addCmd.Flags().StringVar(&addMoney, "init-money", "100000", "Initial money")
	addCmd.Flags().StringVar(&addStart, "start", "", "Start date, YYYY-MM-DD")

	updateCmd := &cobra.Command{
		Use:   "update <sim-id> key=value...",
		Long:  fieldsHelp,
		Short: "Change fields of a simulator",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			patch, err := parseFields(args[1:])
			if err != nil {
				return err
			}
			return simMutation(func(ctx context.Context, sims *store.Simulators) error {
				return sims.Update(ctx, id, patch)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <sim-id>",
		Short: "Delete a simulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return simMutation(func(ctx context.Context, sims *store.Simulators) error {
				return sims.Delete(ctx, id)
			})
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <sim-id>...",
		Short: "Run simulators up to today",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			ctx, cancel := signalContext()
			defer cancel()

			// runs share one list so each is marked while in flight
			sims := store.NewSimulators(cli.client, cli.storeOptions())
			var g errgroup.Group
			for _, id := range ids {
				id := id
				g.Go(func() error {
					return sims.Run(ctx, id)
				})
			}
			err := waitRuns(g.Wait, sims.RunningIDs, runStatusInterval, func(running []int) {
				cli.printer.Dim("Still running: %s", joinIDs(running))
			})
			return reported(err)
		},
	}

	var (
		tradingStock string
		tradingType  string
	)
	tradingCmd := &cobra.Command{
		Use:   "trading <sim-id>",
		Short: "Show the trades of a simulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			params := cli.listParams(0, 0).With("stock", tradingStock).With("trading_type", tradingType)
			return printList(cli.scoped(params), func(ctx context.Context, o store.Options) ([]string, [][]string) {
				l := store.NewSimTradings(cli.client, id, o)
				l.Mount(ctx)
				return simTradingHeaders, simTradingRows(l.Items())
			})
		},
	}
	tradingCmd.Flags().StringVar(&tradingStock, "stock", "", "Only trades of this stock")
	tradingCmd.Flags().StringVar(&tradingType, "type", "", "Only trades of this type (buy, sell, ...)")

	paramsCmd := &cobra.Command{
		Use:   "params <sim-id>",
		Short: "Show the earning info of a simulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return printList(cli.scoped(nil), func(ctx context.Context, o store.Options) ([]string, [][]string) {
				l := store.NewSimParams(cli.client, id, o)
				l.Mount(ctx)
				return paramHeaders, paramRows(l.Items())
			})
		},
	}

	cmd.AddCommand(listCmd, showCmd, addCmd, updateCmd, deleteCmd, runCmd, tradingCmd, paramsCmd)
	return cmd
}

func simMutation(fn func(ctx context.Context, sims *store.Simulators) error) error {
	ctx, cancel := signalContext()
	defer cancel()
	return reported(fn(ctx, store.NewSimulators(cli.client, cli.storeOptions())))
}

// showSimulator loads the simulator, its earning info and trades concurrently
func showSimulator(id int) error {
	ctx, cancel := signalContext()
	defer cancel()

	check := cli.watchErrors()
	params := store.NewSimParams(cli.client, id, cli.storeOptions())
	trades := store.NewSimTradings(cli.client, id, cli.storeOptions())

	var sim trading.Simulator
	err := loadDetail(ctx, func(ctx context.Context) (err error) {
		sim, err = cli.client.Simulators().Get(ctx, id)
		return err
	}, params.Mount, trades.Mount)
	if err != nil {
		return err
	}
	if err := check(); err != nil {
		return err
	}

	cli.printer.Title("Simulator %d", sim.ID)
	cli.printer.Field("Rule", orDash(sim.RuleName))
	cli.printer.Field("Stock", orDash(sim.StockCode))
	cli.printer.Field("Status", sim.Status)
	cli.printer.Field("Init money", money(sim.InitMoney))
	cli.printer.Field("Current money", money(sim.CurrentMoney))
	cli.printer.Field("Cum earn", money(sim.CumEarn))
	cli.printer.Field("Annual earn", money(sim.AnnualEarn))
	cli.printer.Field("Win rate", pct(sim.EarningRate))
	cli.printer.Field("Max drawback", pct(sim.MaxDrawback))
	cli.printer.Field("Sharpe", num(sim.Sharpe))
	cli.printer.Field("Start date", orDash(sim.StartDate))
	cli.printer.Field("Holding", orDash(sim.CurrentShares))
	if sim.InitMoney.IsPositive() {
		ret := sim.CurrentMoney.Sub(sim.InitMoney).Div(sim.InitMoney)
		cli.printer.Field("Return", pct(ret.InexactFloat64()))
	}
	cli.printer.Section("Earning info")
	cli.printer.Table(paramHeaders, paramRows(params.Items()))
	cli.printer.Section("Trades")
	cli.printer.Table(simTradingHeaders, simTradingRows(trades.Items()))
	return nil
}

const runStatusInterval = 10 * time.Second

// waitRuns blocks until wait returns and reports the runs still in flight
// every interval meanwhile
func waitRuns(wait func() error, running func() []int, every time.Duration, report func([]int)) error {
	done := make(chan error, 1)
	go func() { done <- wait() }()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			if ids := running(); len(ids) > 0 {
				report(ids)
			}
		}
	}
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
