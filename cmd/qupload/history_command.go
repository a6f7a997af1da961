package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"qupload/internal/history"
	"qupload/internal/queue"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the upload history ledger",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func (c *commandContext) withHistory(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent uploads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				records, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "History is empty")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					detail := record.URL
					if record.Status == queue.StatusError {
						detail = record.ErrMessage
					}
					rows = append(rows, []string{
						record.FileName,
						formatSize(record.FileSize),
						statusLabel(record.Status),
						humanize.Time(record.UploadedAt),
						detail,
					})
				}
				printTable(cmd.OutOrStdout(), []column{
					{name: "File"},
					{name: "Size", right: true},
					{name: "Result"},
					{name: "When"},
					{name: "Detail"},
				}, rows)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to show (0 for all)")
	return cmd
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate upload totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				printTable(cmd.OutOrStdout(), []column{
					{name: "Metric"},
					{name: "Value", right: true},
				}, [][]string{
					{"Total uploads", fmt.Sprintf("%d", stats.Total)},
					{"Completed", fmt.Sprintf("%d", stats.Completed)},
					{"Failed", fmt.Sprintf("%d", stats.Failed)},
					{"Bytes uploaded", formatSize(stats.TotalBytes)},
				})
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				deleted, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d history records\n", deleted)
				return nil
			})
		},
	}
}
