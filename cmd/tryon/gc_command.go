package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tryon/internal/janitor"
	"tryon/internal/logging"
)

func newGCCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Reclaim orphaned crops, processed outputs, and thumbnails",
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

			counts := janitor.New(cfg, store, catalogStore, logging.NewNop()).Run()
			if jsonOutput {
				return writeJSON(cmd, counts)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Reclaimed %d files (%d crops, %d processed, %d thumbnails)\n",
				counts.Total(), counts.Crops, counts.Processed, counts.Thumbnails)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
