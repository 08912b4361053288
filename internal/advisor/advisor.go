// Package advisor provides advisory account suggestions for bank lines.
// Suggestions are hints only; nothing here touches the ledger.
package advisor

import "context"

// Suggester proposes an account for a bank-line description. The acting tenant
// travels in ctx (see package tenant). Implementations must fail soft: any
// problem is reported as ok == false.
type Suggester interface {
	Suggest(ctx context.Context, description string) (accountID string, ok bool)
}

// Nop never suggests anything.
type Nop struct{}

func (Nop) Suggest(context.Context, string) (string, bool) { return "", false }

// Func adapts a function to Suggester.
type Func func(ctx context.Context, description string) (string, bool)

func (f Func) Suggest(ctx context.Context, description string) (string, bool) {
	return f(ctx, description)
}
