package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tryon/internal/approval"
	"tryon/internal/logging"
	"tryon/internal/queue"
	"tryon/internal/services/remotestore"
)

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var processedName string

	cmd := &cobra.Command{
		Use:   "approve <product-id> <image-filename>",
		Short: "Promote a completed try-on result into the catalog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.queueStore()
			if err != nil {
				return err
			}
			catalogStore, err := ctx.catalogStore()
			if err != nil {
				return err
			}

			productID, filename := args[0], args[1]
			processed := strings.TrimSpace(processedName)
			if processed == "" {
				processed = queue.ProcessedFilename(productID, filename)
			}

			workflow := approval.New(cfg, store, catalogStore, remotestore.NewClient(cfg), logging.NewNop())
			result, err := workflow.Approve(cmd.Context(), productID, filename, processed)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Approved %s: catalog now references %s\n", productID, result.VtonFilename)
			if result.Mirrored {
				fmt.Fprintln(out, "Artifact mirrored to remote storage")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&processedName, "processed", "", "Processed artifact filename (defaults to the computed name)")
	return cmd
}
