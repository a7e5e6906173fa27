package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/xinguang/stock-console/pkg/api"
	"github.com/xinguang/stock-console/pkg/store"
	"github.com/xinguang/stock-console/pkg/trading"
)

func stocksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stocks",
		Aliases: []string{"stock"},
		Short:   "Browse stocks and their rules",
	}

	var (
		poolIDs        []int
		page, pageSize int
		match          string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stocks, optionally of some pools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			params := cli.listParams(page, pageSize)
			stocks := store.NewStocks(cli.client, cli.storeOptions())
			show := func() error {
				s := stocks.Snapshot()
				items, err := trading.FilterStocks(s.Items, match)
				if err != nil {
					return err
				}
				cli.printer.Table(stockHeaders, stockRows(items))
				if match != "" {
					cli.printer.Dim("%d of %d records match %s", len(items), len(s.Items), match)
					return nil
				}
				cli.pagination(len(s.Items), s.Total, page)
				return nil
			}

			if len(poolIDs) == 0 {
				check := cli.watchErrors()
				stocks.Fetch(ctx, params)
				if err := check(); err != nil {
					return err
				}
				return show()
			}

			return eachPool(ctx, stocks, params, poolIDs, func(poolID int) error {
				if len(poolIDs) > 1 {
					cli.printer.Section("Pool %d", poolID)
				}
				return show()
			}, cli.watchErrors)
		},
	}
	listCmd.Flags().IntSliceVar(&poolIDs, "pool", nil, "Only stocks of these pools (repeat or comma-separate)")
	listCmd.Flags().IntVar(&page, "page", 0, "Page number (0 lists everything)")
	listCmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size (defaults to config page_size)")
	listCmd.Flags().StringVar(&match, "match", "", "Only stocks whose code matches a glob, e.g. 600*")

	var addPool int
	addCmd := &cobra.Command{
		Use:   "add <code>",
		Short: "Register a stock in a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addPool <= 0 {
				return errors.New("--pool is required")
			}
			ctx, cancel := signalContext()
			defer cancel()

			stocks := store.NewStocks(cli.client, store.Options{
				Notifier: cli.notifier,
				Logger:   cli.log,
				Params:   cli.listParams(0, 0).WithInt("pool_id", addPool),
			})
			return reported(stocks.Add(ctx, trading.Patch{"code": args[0], "pool_id": addPool}))
		},
	}
	addCmd.Flags().IntVar(&addPool, "pool", 0, "Pool to add the stock to")

	var deletePool int
	deleteCmd := &cobra.Command{
		Use:   "delete <code>",
		Short: "Remove a stock from a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deletePool <= 0 {
				return errors.New("--pool is required")
			}
			ctx, cancel := signalContext()
			defer cancel()

			stocks := store.NewStocks(cli.client, store.Options{
				Notifier: cli.notifier,
				Logger:   cli.log,
				Params:   cli.listParams(0, 0).WithInt("pool_id", deletePool),
			})
			return reported(stocks.Delete(ctx, args[0]))
		},
	}
	deleteCmd.Flags().IntVar(&deletePool, "pool", 0, "Pool to remove the stock from")

	rulesCmd := &cobra.Command{
		Use:   "rules <code>",
		Short: "Show the rules evaluating a stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			check := cli.watchErrors()
			rules := store.NewStockRules(cli.client, args[0], store.Options{
				Notifier: cli.notifier,
				Logger:   cli.log,
				Params:   cli.listParams(0, 0),
			})
			rules.Mount(ctx)
			if err := check(); err != nil {
				return err
			}

			cli.printer.Title("Rules of %s", args[0])
			cli.printer.Table(ruleEarnHeaders, earnRows(rules.Items(), true))
			return nil
		},
	}

	cmd.AddCommand(listCmd, addCmd, deleteCmd, rulesCmd)
	return cmd
}

// eachPool scopes one stock list to every pool in turn. The list only
// re-fetches when the pool changes.
func eachPool(ctx context.Context, stocks *store.List[trading.Stock, string], params api.Params, poolIDs []int, fn func(poolID int) error, watch func() func() error) error {
	for _, id := range poolIDs {
		check := watch()
		stocks.SetParams(ctx, params.WithInt("pool_id", id))
		if err := check(); err != nil {
			return err
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}
