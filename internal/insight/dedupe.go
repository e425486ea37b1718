package insight

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Deduplicated collapses concurrent Generate calls for the same industry
// into one upstream request. Every waiter receives the same *Insights, so
// callers must not mutate it.
type Deduplicated struct {
	next    Generator
	timeout time.Duration
	group   singleflight.Group
}

// Deduplicate wraps next. timeout bounds the shared upstream call; zero
// means the generator default.
func Deduplicate(next Generator, timeout time.Duration) *Deduplicated {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Deduplicated{next: next, timeout: timeout}
}

// Generate joins the in-flight call for industry or starts one. The shared
// call is detached from every caller's cancellation and bounded by the
// wrapper's own timeout, so one caller going away does not fail the others.
// Each caller stops waiting when its own ctx ends.
func (d *Deduplicated) Generate(ctx context.Context, industry string) (*Insights, error) {
	ch := d.group.DoChan(industry, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		return d.next.Generate(callCtx, industry)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Insights), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
