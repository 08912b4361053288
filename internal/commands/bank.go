package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/app"
	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
)

func newImportCommand(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Import a bank CSV; without a file, every CSV in <dir>/import",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				f := format
				if f == "" {
					f = "chase"
					if tc := a.Config.Tenant(tenantID); tc != nil && tc.BankFeed.Format != "" {
						f = tc.BankFeed.Format
					}
				}

				var res importer.Result
				var err error
				if len(args) == 0 {
					res, err = a.Importer.ImportDir(ctx, tenantID, f, a.Dir)
				} else {
					var file *os.File
					file, err = os.Open(args[0])
					if err != nil {
						return err
					}
					defer file.Close()
					res, err = a.Importer.Import(ctx, tenantID, f, file)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d lines (%d already present)\n", res.Imported, res.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "parser: chase or generic (default from bank_feed.format)")
	return cmd
}

func newUnmatchedCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "unmatched",
		Short: "List bank lines awaiting reconciliation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				lines, err := a.Reconcile.ListUnmatched(ctx, tenantID)
				if err != nil {
					return err
				}
				codes, err := accountCodes(ctx, a, tenantID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tDESCRIPTION\tAMOUNT\tSUGGESTED")
				for _, l := range lines {
					amount := ledger.FormatCents(l.AmountCents)
					if l.Type == model.LineDebit {
						amount = "-" + amount
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.ID, l.Date.Format(dateLayout), l.Description, amount, codes[l.SuggestedAccountID])
				}
				return tw.Flush()
			})
		},
	}
}

func accountCodes(ctx context.Context, a *app.App, tenantID string) (map[string]string, error) {
	accts, err := a.Accounts.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	codes := make(map[string]string, len(accts))
	for _, acct := range accts {
		codes[acct.ID] = acct.Code
	}
	return codes, nil
}

// resolveLine accepts a full line ID or a unique prefix of one.
func resolveLine(ctx context.Context, a *app.App, tenantID, ref string) (string, error) {
	lines, err := a.Reconcile.Lines(ctx, tenantID)
	if err != nil {
		return "", err
	}
	var found []string
	for _, l := range lines {
		if l.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(l.ID, ref) {
			found = append(found, l.ID)
		}
	}
	if len(found) > 1 {
		return "", fmt.Errorf("line prefix %q is ambiguous (%d lines)", ref, len(found))
	}
	if len(found) == 1 {
		return found[0], nil
	}
	return ref, nil
}

func newMatchCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "match <line-id> <account>",
		Short: "Match a bank line to an account, posting the transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				lineID, err := resolveLine(ctx, a, tenantID, args[0])
				if err != nil {
					return err
				}
				acct, err := a.Accounts.Resolve(ctx, tenantID, args[1])
				if err != nil {
					return err
				}
				txn, err := a.Reconcile.Match(ctx, tenantID, lineID, acct.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Matched %s to %s as %s\n", lineID, acct.Code, txn.ID)
				return nil
			})
		},
	}
}

func newSuggestCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest [line-id]",
		Short: "Record advisory account suggestions on unmatched lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				if len(args) == 0 {
					n, err := a.Reconcile.SuggestAll(ctx, tenantID)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Suggested accounts for %d lines\n", n)
					return nil
				}
				lineID, err := resolveLine(ctx, a, tenantID, args[0])
				if err != nil {
					return err
				}
				line, ok, err := a.Reconcile.Suggest(ctx, tenantID, lineID)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "No suggestion for %s\n", lineID)
					return nil
				}
				codes, err := accountCodes(ctx, a, tenantID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Suggested %s for %s\n", codes[line.SuggestedAccountID], lineID)
				return nil
			})
		},
	}
}
