package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/app"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
)

const dateLayout = "2006-01-02"

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// parseLeg parses "ACCOUNT=AMOUNT", where ACCOUNT is a code or an ID.
func parseLeg(ctx context.Context, a *app.App, tenantID, s string) (string, int64, error) {
	ref, amount, ok := strings.Cut(s, "=")
	if !ok {
		return "", 0, fmt.Errorf("invalid entry %q, want ACCOUNT=AMOUNT", s)
	}
	cents, err := ledger.ParseCents(amount)
	if err != nil {
		return "", 0, err
	}
	acct, err := a.Accounts.Resolve(ctx, tenantID, ref)
	if err != nil {
		// Unknown references go to the ledger as-is so it reports ErrUnknownAccount.
		return ref, cents, nil
	}
	return acct.ID, cents, nil
}

func newPostCommand(g *globals) *cobra.Command {
	var date, desc, ref string
	var debits, credits []string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a balanced transaction",
		Example: `  ledger post --date 2025-01-03 --desc "Client X" --debit 1010=5000.00 --credit 4010=5000.00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				var entries []model.JournalEntry
				for _, s := range debits {
					acct, cents, err := parseLeg(ctx, a, tenantID, s)
					if err != nil {
						return err
					}
					entries = append(entries, model.JournalEntry{AccountID: acct, DebitCents: cents})
				}
				for _, s := range credits {
					acct, cents, err := parseLeg(ctx, a, tenantID, s)
					if err != nil {
						return err
					}
					entries = append(entries, model.JournalEntry{AccountID: acct, CreditCents: cents})
				}
				txn, err := a.Ledger.PostTransaction(ctx, tenantID, model.Transaction{
					Date:        d,
					Description: desc,
					Reference:   ref,
					Source:      model.SourceManual,
					Entries:     entries,
				})
				if err != nil {
					return err
				}
				debitsTotal, _ := txn.Totals()
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %s (%s)\n", txn.ID, ledger.FormatCents(debitsTotal))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "transaction date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&desc, "desc", "", "description")
	cmd.Flags().StringVar(&ref, "ref", "", "external reference")
	cmd.Flags().StringArrayVar(&debits, "debit", nil, "debit entry ACCOUNT=AMOUNT (repeatable)")
	cmd.Flags().StringArrayVar(&credits, "credit", nil, "credit entry ACCOUNT=AMOUNT (repeatable)")
	return cmd
}

func newReverseCommand(g *globals) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "reverse <transaction-id>",
		Short: "Void a transaction by posting its reversal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			if d.IsZero() {
				d = time.Now()
			}
			return g.withApp(cmd, func(ctx context.Context, a *app.App, tenantID string) error {
				txn, err := a.Ledger.Reverse(ctx, tenantID, args[0], d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reversed %s with %s\n", args[0], txn.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "reversal date YYYY-MM-DD (default today)")
	return cmd
}
