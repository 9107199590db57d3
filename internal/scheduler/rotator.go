package scheduler

import (
	"sync"

	"github.com/guygriffiths/wildfire/internal/tigge"
)

// Rotator hands out API credentials in round-robin order so concurrent
// requests stay balanced across keys. The cursor is the only shared
// mutable state in a bulk run; it is mutex-guarded even though the
// scheduler assigns credentials before dispatch, so assignment can safely
// move into workers without a redesign.
type Rotator struct {
	mu    sync.Mutex
	creds []tigge.Credential
	next  int
}

// NewRotator creates a rotator over the given credential sequence.
// The sequence must be non-empty; config validation enforces that before
// a rotator is ever built.
func NewRotator(creds []tigge.Credential) *Rotator {
	return &Rotator{creds: creds}
}

// Next returns the credential at the cursor and advances it by one,
// wrapping at the end of the sequence.
func (r *Rotator) Next() tigge.Credential {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred := r.creds[r.next]
	r.next = (r.next + 1) % len(r.creds)
	return cred
}

// Len returns the number of credentials in rotation.
func (r *Rotator) Len() int {
	return len(r.creds)
}
