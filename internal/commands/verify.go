package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/app"
	"github.com/cleared-dev/ledger/internal/ledger"
)

func newVerifyCommand(g *globals) *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check cached balances against the transaction log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				drift, err := a.Ledger.Verify(ctx, tenantID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(drift) == 0 {
					fmt.Fprintln(out, "Balances match the transaction log")
					return nil
				}
				for _, d := range drift {
					fmt.Fprintf(out, "%s: cached %s, log %s\n", d.Code, ledger.FormatCents(d.CachedCents), ledger.FormatCents(d.DerivedCents))
				}
				if !rebuild {
					return fmt.Errorf("%d accounts drifted; rerun with --rebuild to repair", len(drift))
				}
				if err := a.Ledger.RebuildBalances(ctx, tenantID); err != nil {
					return err
				}
				fmt.Fprintln(out, "Balances rebuilt from the transaction log")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "overwrite drifted balances from the log")
	return cmd
}
