package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/store"
	"github.com/xinguang/stock-console/pkg/trading"
	"github.com/xinguang/stock-console/pkg/tui"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage trading rules",
	}

	var (
		ruleType       string
		page, pageSize int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ruleType != "" && !trading.RuleType(ruleType).Valid() {
				return fmt.Errorf("unknown rule type: %s", ruleType)
			}
			ctx, cancel := signalContext()
			defer cancel()

			check := cli.watchErrors()
			rules := store.NewRules(cli.client, cli.storeOptions())
			rules.Fetch(ctx, cli.listParams(page, pageSize).With("rule_type", ruleType))
			if err := check(); err != nil {
				return err
			}

			s := rules.Snapshot()
			cli.printer.Table(ruleHeaders, ruleRows(s.Items, rules.Running))
			cli.pagination(len(s.Items), s.Total, page)
			return nil
		},
	}
	listCmd.Flags().StringVar(&ruleType, "type", "", "Only rules of this type (agent, remote_agent, ...)")
	listCmd.Flags().IntVar(&page, "page", 0, "Page number (0 lists everything)")
	listCmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size (defaults to config page_size)")

	showCmd := &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show a rule with its pools and parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return showRule(id)
		},
	}

	var (
		addName, addType, addDesc, addInfo string
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addName == "" {
				return errors.New("--name is required")
			}
			if !trading.RuleType(addType).Valid() {
				return fmt.Errorf("unknown rule type: %s", addType)
			}
			fields := trading.Patch{"name": addName, "type": addType}
			if addDesc != "" {
				fields["description"] = addDesc
			}
			if addInfo != "" {
				fields["info"] = addInfo
			}
			return ruleMutation(func(ctx context.Context, rules *store.Rules) error {
				return rules.Add(ctx, fields)
			})
		},
	}
	addCmd.Flags().StringVar(&addName, "name", "", "Rule name")
	addCmd.Flags().StringVar(&addType, "type", string(trading.RuleTypeAgent), "Rule type")
	addCmd.Flags().StringVar(&addDesc, "description", "", "Markdown description")
	addCmd.Flags().StringVar(&addInfo, "info", "", "Agent location or rule source")

	updateCmd := &cobra.Command{
		Use:   "update <rule-id> key=value...",
		Long:  fieldsHelp,
		Short: "Change fields of a rule",
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
			return ruleMutation(func(ctx context.Context, rules *store.Rules) error {
				return rules.Update(ctx, id, patch)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <rule-id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ruleMutation(func(ctx context.Context, rules *store.Rules) error {
				return rules.Delete(ctx, id)
			})
		},
	}

	bindCmd := &cobra.Command{
		Use:   "bind <rule-id> <pool-id>...",
		Short: "Bind pools to a rule",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			poolIDs := make([]int, 0, len(args)-1)
			for _, arg := range args[1:] {
				poolID, err := parseID(arg)
				if err != nil {
					return err
				}
				poolIDs = append(poolIDs, poolID)
			}
			ctx, cancel := signalContext()
			defer cancel()

			pools := cli.rulePools(id)
			if err := pools.Bind(ctx, poolIDs); err != nil {
				return reported(err)
			}
			cli.printer.Table(poolHeaders, poolRows(pools.Items()))
			return nil
		},
	}

	unbindCmd := &cobra.Command{
		Use:   "unbind <rule-id> <pool-id>",
		Short: "Remove a pool from a rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			poolID, err := parseID(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			pools := cli.rulePools(id)
			if err := pools.Unbind(ctx, poolID); err != nil {
				return reported(err)
			}
			cli.printer.Table(poolHeaders, poolRows(pools.Items()))
			return nil
		},
	}

	var stocksPool int
	stocksCmd := &cobra.Command{
		Use:   "stocks <rule-id>",
		Short: "Show the stocks a rule evaluates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			params := cli.listParams(0, 0)
			if stocksPool > 0 {
				params = params.WithInt("pool_id", stocksPool)
			}
			return printList(cli.scoped(params), func(ctx context.Context, o store.Options) ([]string, [][]string) {
				l := store.NewRuleStocks(cli.client, id, o)
				l.Mount(ctx)
				return stockEarnHeaders, earnRows(l.Items(), false)
			})
		},
	}
	stocksCmd.Flags().IntVar(&stocksPool, "pool", 0, "Only stocks of this pool")

	paramsCmd := &cobra.Command{
		Use:   "params <rule-id>",
		Short: "Show the parameter set of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return printList(cli.scoped(cli.listParams(0, 0)), func(ctx context.Context, o store.Options) ([]string, [][]string) {
				l := store.NewRuleParams(cli.client, id, o)
				l.Mount(ctx)
				return paramHeaders, paramRows(l.Items())
			})
		},
	}

	var tradingPage, tradingPageSize int
	tradingCmd := &cobra.Command{
		Use:   "trading <rule-id>",
		Short: "Show the indicating history of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if tradingPage <= 0 {
				tradingPage = 1
			}
			ctx, cancel := signalContext()
			defer cancel()

			check := cli.watchErrors()
			l := store.NewRuleTradings(cli.client, id, cli.scoped(cli.listParams(tradingPage, tradingPageSize)))
			l.Mount(ctx)
			if err := check(); err != nil {
				return err
			}
			s := l.Snapshot()
			cli.printer.Table(ruleTradingHeaders, ruleTradingRows(s.Items))
			cli.pagination(len(s.Items), s.Total, tradingPage)
			return nil
		},
	}
	tradingCmd.Flags().IntVar(&tradingPage, "page", 1, "Page number")
	tradingCmd.Flags().IntVar(&tradingPageSize, "page-size", 0, "Page size (defaults to config page_size)")

	indicatingCmd := &cobra.Command{
		Use:   "indicating <rule-id>",
		Short: "Show stocks the rule currently indicates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return printList(cli.scoped(nil), func(ctx context.Context, o store.Options) ([]string, [][]string) {
				l := store.NewRuleIndicating(cli.client, id, o)
				l.Mount(ctx)
				return stockEarnHeaders, earnRows(l.Items(), false)
			})
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <rule-id>",
		Short: "Run an agent rule over all its stocks and wait for it",
		Long: `run calls the synchronous run endpoint and waits up to rule_run_timeout.
Use "stockctl exec rule" to follow the execution log live instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			rules := store.NewRules(cli.client, cli.storeOptions())
			cli.printer.Info("Running rule %d, this can take a while...", id)
			return reported(rules.Run(ctx, id))
		},
	}

	cmd.AddCommand(listCmd, showCmd, addCmd, updateCmd, deleteCmd, bindCmd, unbindCmd,
		stocksCmd, paramsCmd, tradingCmd, indicatingCmd, runCmd)
	return cmd
}

func ruleMutation(fn func(ctx context.Context, rules *store.Rules) error) error {
	ctx, cancel := signalContext()
	defer cancel()
	return reported(fn(ctx, store.NewRules(cli.client, cli.storeOptions())))
}

// scoped returns store options whose first fetch uses params
func (a *app) scoped(params api.Params) store.Options {
	o := a.storeOptions()
	o.Params = params
	return o
}

func (a *app) rulePools(ruleID int) *store.RulePools {
	o := a.storeOptions()
	o.Params = a.listParams(0, 0)
	return store.NewRulePools(a.client, ruleID, o)
}

// printList mounts one list through load and prints it as a table
func printList(opts store.Options, load func(ctx context.Context, o store.Options) ([]string, [][]string)) error {
	ctx, cancel := signalContext()
	defer cancel()

	check := cli.watchErrors()
	headers, rows := load(ctx, opts)
	if err := check(); err != nil {
		return err
	}
	cli.printer.Table(headers, rows)
	return nil
}

// showRule loads the rule, its pools and its parameters concurrently
func showRule(id int) error {
	ctx, cancel := signalContext()
	defer cancel()

	check := cli.watchErrors()
	pools := cli.rulePools(id)
	params := store.NewRuleParams(cli.client, id, cli.storeOptions())

	var rule trading.Rule
	err := loadDetail(ctx, func(ctx context.Context) (err error) {
		rule, err = cli.client.Rules().Get(ctx, id, cli.listParams(0, 0))
		return err
	}, pools.Mount, params.Mount)
	if err != nil {
		return err
	}
	if err := check(); err != nil {
		return err
	}

	cli.printer.Title("%s", rule.Name)
	cli.printer.Field("ID", rule.ID)
	cli.printer.Field("Type", rule.Type)
	cli.printer.Field("Info", orDash(rule.Info))
	cli.printer.Field("Stocks", rule.Stocks)
	cli.printer.Field("Earn", num(rule.Earn))
	cli.printer.Field("Avg earn", num(rule.AvgEarn))
	cli.printer.Field("Win rate", pct(rule.EarningRate))
	cli.printer.Field("Trades", rule.TradingTimes)
	cli.printer.Field("Max earn", num(rule.MaxEarn))
	if rule.Description != "" {
		cli.printer.Section("Description")
		cli.printer.Plain("%s", tui.RenderMarkdown(rule.Description, 100))
	}
	cli.printer.Section("Pools")
	cli.printer.Table(poolHeaders, poolRows(pools.Items()))
	cli.printer.Section("Parameters")
	cli.printer.Table(paramHeaders, paramRows(params.Items()))
	return nil
}
