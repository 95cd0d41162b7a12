package services

import "github.com/custodia-labs/syncd/internal/core/domain"

// ApplyFieldPolicy sets the fields whose ownership depends on the pass.
//
// An initial pass imports history, so items arrive read and unarchived.
// Incremental passes and webhooks must not touch what the user has done
// since, so Unread and Archived are left absent. Deleted items are
// archived rather than removed.
func ApplyFieldPolicy(activity *domain.Activity, initial, deleted bool) {
	if initial {
		activity.Unread = domain.Ptr(false)
		activity.Archived = domain.Ptr(false)
	} else {
		activity.Unread = nil
		activity.Archived = nil
	}
	if deleted {
		activity.Archived = domain.Ptr(true)
	}
}
