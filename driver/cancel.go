package driver

import "sync/atomic"

// CancelToken is the cooperative cancellation signal shared by build
// and query workers (spec.md §5: "workers check a cancellation token
// between reads/files"). Grounded on the channel/atomic-flag style the
// pack's indexer workers use to stop early, simplified to a single
// atomic flag since no per-worker acknowledgement is required.
type CancelToken struct {
	fired atomic.Bool
}

// NewCancelToken returns a fresh, unfired token.
func NewCancelToken() *CancelToken { return &CancelToken{} }

// Cancel fires the token. Safe to call more than once or concurrently.
func (c *CancelToken) Cancel() { c.fired.Store(true) }

// Cancelled reports whether Cancel has been called.
func (c *CancelToken) Cancelled() bool { return c.fired.Load() }
