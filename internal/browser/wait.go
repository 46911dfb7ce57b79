package browser

import (
	"context"
	"time"
)

// Condition is a predicate over the page evaluated by Poll.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates cond every interval until it returns true, it returns an
// error, or ctx is done. The first evaluation happens immediately.
func Poll(ctx context.Context, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Settle polls cond for at most limit. Running out of time is not an error:
// the limit is a heuristic fallback for pages without a readiness signal.
// It reports whether cond was met.
func Settle(ctx context.Context, limit, interval time.Duration, cond Condition) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	err := Poll(waitCtx, interval, cond)
	switch {
	case err == nil:
		return true, nil
	case waitCtx.Err() != nil && ctx.Err() == nil:
		return false, nil
	default:
		return false, err
	}
}

// AnyExists is a Condition that holds when any of the selectors matches.
func AnyExists(page Page, selectors ...string) Condition {
	return func(ctx context.Context) (bool, error) {
		for _, sel := range selectors {
			ok, err := page.Exists(ctx, sel)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}
