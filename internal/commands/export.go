package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/app"
)

func newExportCommand(g *globals) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the chart and monthly journals as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				root := out
				if root == "" {
					root = filepath.Join(a.Dir, "books")
				}
				res, err := a.Exporter.Export(ctx, tenantID, root)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d files to %s\n", len(res.Files), root)
				if res.Commit != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Committed %s\n", res.Commit)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "export root (default <dir>/books)")
	return cmd
}
