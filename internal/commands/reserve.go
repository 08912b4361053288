package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/app"
	"github.com/cleared-dev/ledger/internal/ledger"
)

func newReserveCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve allocation rules",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "rules",
			Short: "List reserve rules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
					rules, err := a.Reserve.Rules(ctx, tenantID)
					if err != nil {
						return err
					}
					codes, err := accountCodes(ctx, a, tenantID)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tPERCENT\tSOURCE\tRESERVE\tAUTOMATED")
					for _, r := range rules {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", r.Name, r.TargetPercentage, codes[r.SourceAccountID], codes[r.ReserveAccountID], r.IsAutomated)
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "evaluate",
			Short: "Post every missing automated reserve allocation",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
					txns, err := a.Reserve.EvaluateReserveRules(ctx, tenantID)
					for _, t := range txns {
						debits, _ := t.Totals()
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, ledger.FormatCents(debits), t.Description)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Posted %d allocations\n", len(txns))
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "preview <transaction-id>",
			Short: "Show what every rule, automated or not, would allocate for a transaction",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
					txn, err := a.Ledger.Transaction(ctx, tenantID, args[0])
					if err != nil {
						return err
					}
					allocs, err := a.Reserve.Preview(ctx, tenantID, txn)
					if err != nil {
						return err
					}
					if len(allocs) == 0 {
						fmt.Fprintf(cmd.OutOrStdout(), "No rules apply to %s\n", txn.ID)
						return nil
					}
					codes, err := accountCodes(ctx, a, tenantID)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "RULE\tAMOUNT\tFROM\tTO\tAUTOMATED")
					for _, al := range allocs {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", al.RuleName, ledger.FormatCents(al.AmountCents), codes[al.SourceAccountID], codes[al.ReserveAccountID], al.Automated)
					}
					return tw.Flush()
				})
			},
		},
	)
	return cmd
}
