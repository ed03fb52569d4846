// Package confirm implements the confirm-by-repeating gate for interactive requests.
package confirm

import (
	"time"
)

// DefaultTimeout is how long an intent stays confirmable.
const DefaultTimeout = 10 * time.Second

// Intent records a first, unconfirmed request.
type Intent struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	TargetSpec string    `json:"target_spec"`
	CreatedAt  time.Time `json:"created_at"`
}

// ExpiresAt is the last instant the intent can be confirmed.
func (i Intent) ExpiresAt(timeout time.Duration) time.Time {
	return i.CreatedAt.Add(timeout)
}

// Expired reports whether the intent can no longer be confirmed at now.
func (i Intent) Expired(now time.Time, timeout time.Duration) bool {
	return !now.Before(i.ExpiresAt(timeout))
}
