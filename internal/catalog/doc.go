// Package catalog persists the media library state in SQLite: every
// discovered item, its lifecycle status, the per-user deletion marks,
// permanent-keep ownership, and the user roster the quorum is counted
// against. Items are never hard-deleted; a purged or vanished item is
// retained with status gone so its history survives rescans.
//
// All status changes are conditional updates guarded by the expected
// prior status. Concurrent writers lose the race cleanly: the update
// affects zero rows and the caller observes that instead of clobbering
// a newer state.
package catalog
