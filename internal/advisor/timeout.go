package advisor

import (
	"context"
	"time"
)

type result struct {
	accountID string
	ok        bool
}

// WithTimeout bounds every call to next. A call that outlives d yields no suggestion.
func WithTimeout(next Suggester, d time.Duration) Suggester {
	return Func(func(ctx context.Context, description string) (string, bool) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		ch := make(chan result, 1)
		go func() {
			id, ok := next.Suggest(ctx, description)
			ch <- result{id, ok}
		}()

		select {
		case r := <-ch:
			return r.accountID, r.ok
		case <-ctx.Done():
			return "", false
		}
	})
}
