package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/app"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
)

func newAccountsCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the chart of accounts with balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				accts, err := a.Accounts.List(ctx, tenantID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tBALANCE")
				for _, acct := range accts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", acct.Code, acct.Name, acct.Type, ledger.FormatCents(acct.BalanceCents))
				}
				return tw.Flush()
			})
		},
	}
	cmd.AddCommand(newAccountsAddCommand(g))
	return cmd
}

func newAccountsAddCommand(g *globals) *cobra.Command {
	var acct model.Account
	var typ string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account to the chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				acct.TenantID = tenantID
				acct.Type = model.AccountType(typ)
				created, err := a.Accounts.Create(ctx, acct)
				if err != nil {
					return err
				}
				if _, err := a.Accounts.Save(ctx, tenantID, a.Dir); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", created.Code, created.Name, created.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&acct.Code, "code", "", "account code (required)")
	cmd.Flags().StringVar(&acct.Name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&typ, "type", "", "asset, liability, equity, revenue or expense (required)")
	cmd.Flags().StringVar(&acct.Subtype, "subtype", "", "free-form subtype")
	cmd.Flags().StringVar(&acct.Currency, "currency", "USD", "currency code")
	for _, f := range []string{"code", "name", "type"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
