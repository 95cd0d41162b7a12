package domain

// Per-resource state key prefixes. The full key is prefix + resource ID,
// stored in a connection-scoped state store.
const (
	KeySyncEnabled      = "sync_enabled_"
	KeySyncState        = "sync_state_"
	KeySyncCheckpoint   = "sync_checkpoint_"
	KeyWebhookID        = "webhook_id_"
	KeyWebhookSecret    = "webhook_secret_"
	KeyWatchRenewalTask = "watch_renewal_task_"
	KeyPollTask         = "poll_task_"
	KeyItemCallback     = "item_callback_"
	KeyDisableCallback  = "disable_callback_"
	KeyBatchCallback    = "batch_callback_"
	KeyWebhookCallback  = "webhook_callback_"
	KeyRenewCallback    = "renew_callback_"
	KeyPollCallback     = "poll_callback_"
)

// ResourceKeyPrefixes lists every per-resource key. Disabling a resource
// clears all of them.
var ResourceKeyPrefixes = []string{
	KeySyncEnabled,
	KeySyncState,
	KeySyncCheckpoint,
	KeyWebhookID,
	KeyWebhookSecret,
	KeyWatchRenewalTask,
	KeyPollTask,
	KeyItemCallback,
	KeyDisableCallback,
	KeyBatchCallback,
	KeyWebhookCallback,
	KeyRenewCallback,
	KeyPollCallback,
}

// KeyWebhookRoute prefixes gateway routes in the global state store. The
// full key is prefix + route ID and the value is a callback token.
const KeyWebhookRoute = "webhook_route_"

// ResourceKey joins a prefix and a resource ID.
func ResourceKey(prefix, resourceID string) string {
	return prefix + resourceID
}
