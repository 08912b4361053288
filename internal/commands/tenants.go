package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTenantsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List tenants and their operating accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			tenants, err := a.Store.ListTenants(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCURRENCY\tOPERATING")
			for _, t := range tenants {
				operating := t.OperatingAccountID
				if acct, err := a.Accounts.Get(ctx, t.ID, t.OperatingAccountID); err == nil {
					operating = acct.Code
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Currency, operating)
			}
			return tw.Flush()
		},
	}
}
