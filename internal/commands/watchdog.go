package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/app"
)

func newWatchdogCommand(g *globals) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "watchdog",
		Short: "Scan bank lines for duplicates and large outflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				findings, err := a.Watchdog.Run(ctx, tenantID)
				if err != nil {
					return err
				}
				if len(findings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No findings")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SEVERITY\tKIND\tLINE\tMESSAGE")
				for _, f := range findings {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Severity, f.Kind, f.LineID, f.Message)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if strict {
					return fmt.Errorf("%d findings", len(findings))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when there are findings")
	return cmd
}
