package compat

import (
	"context"
	"time"
)

// Every calls fn once every interval until the context is canceled. If
// immediate is true, fn is also called right away. fn runs on the calling
// goroutine, so calls never overlap; ticks that arrive while fn is still
// running are coalesced into at most one pending call.
func Every(ctx context.Context, interval time.Duration, immediate bool, fn func()) {
	if immediate {
		fn()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Prefer stopping over one more call if both are ready.
			if ctx.Err() != nil {
				return
			}
			fn()
		}
	}
}
