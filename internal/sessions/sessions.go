// Package sessions defines the session-store collaborator invoked by the
// reconciler. Winnow itself does not authenticate users; the seam exists so
// a deployment that fronts the catalog with a login layer can have its stale
// sessions expired on the same cadence as the rest of the maintenance work.
package sessions

import "context"

// Store expires stale sessions. Implementations report how many sessions
// were removed.
type Store interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// Noop is the default Store: no session layer, nothing to expire.
type Noop struct{}

// ExpireStale reports zero expired sessions.
func (Noop) ExpireStale(context.Context) (int64, error) { return 0, nil }
