package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/xinguang/stock-console/pkg/store"
	"github.com/xinguang/stock-console/pkg/trading"
)

func poolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pools",
		Aliases: []string{"pool"},
		Short:   "Manage stock pools",
	}

	var page, pageSize int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			check := cli.watchErrors()
			pools := store.NewPools(cli.client, cli.storeOptions())
			pools.Fetch(ctx, cli.listParams(page, pageSize))
			if err := check(); err != nil {
				return err
			}

			s := pools.Snapshot()
			cli.printer.Table(poolHeaders, poolRows(s.Items))
			cli.pagination(len(s.Items), s.Total, page)
			return nil
		},
	}
	listCmd.Flags().IntVar(&page, "page", 0, "Page number (0 lists everything)")
	listCmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size (defaults to config page_size)")

	var match string
	showCmd := &cobra.Command{
		Use:   "show <pool-id>",
		Short: "Show a pool and its stocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			check := cli.watchErrors()
			members := store.NewPoolMembers(cli.client, id, cli.storeOptions())

			var pool trading.Pool
			err = loadDetail(ctx, func(ctx context.Context) (err error) {
				pool, err = cli.client.Pools().Get(ctx, id)
				return err
			}, members.Mount)
			if err != nil {
				return err
			}
			if err := check(); err != nil {
				return err
			}

			stocks, err := trading.FilterStocks(members.Items(), match)
			if err != nil {
				return err
			}

			cli.printer.Title("%s", pool.Name)
			cli.printer.Field("ID", pool.ID)
			cli.printer.Field("Stocks", members.Total())
			cli.printer.Field("Earn", num(pool.Earn))
			cli.printer.Field("Avg earn", num(pool.AvgEarn))
			cli.printer.Field("Win rate", pct(pool.EarningRate))
			cli.printer.Field("Trades", pool.TradingTimes)
			cli.printer.Field("Latest date", orDash(pool.LatestDate))
			cli.printer.Section("Stocks")
			cli.printer.Table(stockHeaders, stockRows(stocks))
			return nil
		},
	}
	showCmd.Flags().StringVar(&match, "match", "", "Only show stocks whose code matches a glob, e.g. 600*")

	var name string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			return poolMutation(func(ctx context.Context, pools *store.List[trading.Pool, int]) error {
				return pools.Add(ctx, trading.Patch{"name": name})
			})
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Pool name")

	var newName string
	updateCmd := &cobra.Command{
		Use:   "update <pool-id>",
		Short: "Rename a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if newName == "" {
				return errors.New("--name is required")
			}
			return poolMutation(func(ctx context.Context, pools *store.List[trading.Pool, int]) error {
				return pools.Update(ctx, id, trading.Patch{"name": newName})
			})
		},
	}
	updateCmd.Flags().StringVar(&newName, "name", "", "New pool name")

	deleteCmd := &cobra.Command{
		Use:   "delete <pool-id>",
		Short: "Delete a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return poolMutation(func(ctx context.Context, pools *store.List[trading.Pool, int]) error {
				return pools.Delete(ctx, id)
			})
		},
	}

	addStockCmd := &cobra.Command{
		Use:   "add-stock <pool-id> <code>",
		Short: "Add a stock to a pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			members := store.NewPoolMembers(cli.client, id, cli.storeOptions())
			return reported(members.AddStock(ctx, args[1]))
		},
	}

	removeStockCmd := &cobra.Command{
		Use:   "remove-stock <pool-id> <code>",
		Short: "Remove a stock from a pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			members := store.NewPoolMembers(cli.client, id, cli.storeOptions())
			return reported(members.RemoveStock(ctx, args[1]))
		},
	}

	cmd.AddCommand(listCmd, showCmd, addCmd, updateCmd, deleteCmd, addStockCmd, removeStockCmd)
	return cmd
}

func poolMutation(fn func(ctx context.Context, pools *store.List[trading.Pool, int]) error) error {
	ctx, cancel := signalContext()
	defer cancel()
	return reported(fn(ctx, store.NewPools(cli.client, cli.storeOptions())))
}
