package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tryon/internal/janitor"
	"tryon/internal/logging"
	"tryon/internal/queue"
)

var statusCaser = cases.Title(language.English)

func statusLabel(status queue.Status) string {
	return statusCaser.String(string(status))
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and modify the extraction queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.queueStore()
			if err != nil {
				return err
			}
			items := store.Items()
			if statusFilter != "" {
				status, ok := queue.ParseStatus(statusFilter)
				if !ok {
					known := queue.AllStatuses()
					names := make([]string, len(known))
					for i, s := range known {
						names[i] = string(s)
					}
					return fmt.Errorf("unknown status %q (valid: %s)", statusFilter, strings.Join(names, ", "))
				}
				filtered := items[:0:0]
				for _, item := range items {
					if item.Status == status {
						filtered = append(filtered, item)
					}
				}
				items = filtered
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]any{
					"items":   items,
					"summary": store.Summarize(),
				})
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					item.ProductID,
					item.ImageFilename,
					statusLabel(item.Status),
					item.ProcessedImagePath,
					strconv.FormatBool(item.IsCropped),
					strconv.FormatBool(item.Fallback),
				})
			}
			if stdoutIsTerminal() {
				fmt.Fprintln(out, renderTable(
					[]string{"Product", "Image", "Status", "Processed", "Cropped", "Fallback"},
					rows,
				))
			} else {
				for _, row := range rows {
					fmt.Fprintln(out, strings.Join(row, "\t"))
				}
			}

			summary := store.Summarize()
			fmt.Fprintf(out, "%d total: %d pending, %d processing, %d completed, %d failed, %d approved\n",
				summary.Total, summary.Pending, summary.Processing,
				summary.Completed, summary.Failed, summary.Approved)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show items with the given status")
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var cropped bool

	cmd := &cobra.Command{
		Use:   "add <product-id> <image-filename>",
		Short: "Enqueue an extraction job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID := strings.TrimSpace(args[0])
			filename := strings.TrimSpace(args[1])
			if productID == "" || filename == "" {
				return fmt.Errorf("product id and image filename must not be empty")
			}

			if api, ok := ctx.daemonAPI(); ok {
				item, added, err := api.enqueue(productID, filename, cropped)
				if err != nil {
					return err
				}
				printAddResult(cmd, item, added)
				return nil
			}

			if !cropped {
				catalogStore, err := ctx.catalogStore()
				if err != nil {
					return err
				}
				if _, err := catalogStore.Lookup(productID); err != nil {
					return err
				}
			}

			store, err := ctx.queueStore()
			if err != nil {
				return err
			}
			item, added, err := store.Add(productID, filename, cropped)
			if err != nil {
				return err
			}
			if added {
				runJanitorPass(ctx)
			}
			printAddResult(cmd, item, added)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cropped, "cropped", false, "The filename refers to an uploaded crop, not a catalog image")
	return cmd
}

func printAddResult(cmd *cobra.Command, item queue.Item, added bool) {
	out := cmd.OutOrStdout()
	if !added {
		fmt.Fprintf(out, "Already queued: %s / %s (%s)\n",
			item.ProductID, item.ImageFilename, statusLabel(item.Status))
		return
	}
	fmt.Fprintf(out, "Queued %s / %s\n", item.ProductID, item.ImageFilename)
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id> <image-filename>",
		Short: "Remove a queue item and its processed output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if api, ok := ctx.daemonAPI(); ok {
				if err := api.remove(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s / %s\n", args[0], args[1])
				return nil
			}

			store, err := ctx.queueStore()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0], args[1]); err != nil {
				return err
			}
			counts := runJanitorPass(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s / %s (%d auxiliary files reclaimed)\n",
				args[0], args[1], counts.Total())
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all approved queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if api, ok := ctx.daemonAPI(); ok {
				result, err := api.clearApproved()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d approved items (%d auxiliary files reclaimed)\n",
					result.Removed, result.Reclaimed.Total())
				return nil
			}

			store, err := ctx.queueStore()
			if err != nil {
				return err
			}
			removed, err := store.ClearApproved()
			if err != nil {
				return err
			}
			counts := runJanitorPass(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d approved items (%d auxiliary files reclaimed)\n",
				removed, counts.Total())
			return nil
		},
	}
}

// runJanitorPass runs a best-effort collection after a queue mutation.
// Failures to build the collector are ignored; the daemon's periodic pass
// will catch up.
func runJanitorPass(ctx *commandContext) janitor.Counts {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return janitor.Counts{}
	}
	store, err := ctx.queueStore()
	if err != nil {
		return janitor.Counts{}
	}
	catalogStore, err := ctx.catalogStore()
	if err != nil {
		return janitor.Counts{}
	}
	return janitor.New(cfg, store, catalogStore, logging.NewNop()).Run()
}
