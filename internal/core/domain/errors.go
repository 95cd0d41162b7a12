package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown connector type or operation kind.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSyncInProgress indicates a sync pass is already running for a resource.
	ErrSyncInProgress = errors.New("sync in progress")

	// Sync Errors.

	// ErrSyncStateMissing indicates a batch ran without a persisted SyncState.
	// This is fatal for the batch: the resource was disabled or never started.
	ErrSyncStateMissing = errors.New("sync state missing")

	// ErrCallbackMissing indicates the item callback token for a resource is absent.
	ErrCallbackMissing = errors.New("item callback missing")

	// ErrCallbackNotFound indicates a callback token does not resolve to a stored operation.
	ErrCallbackNotFound = errors.New("callback not found")

	// ErrCursorExpired indicates the provider rejected a cursor or delta token
	// (HTTP 410 Gone or equivalent). Handled as a controlled full resync.
	ErrCursorExpired = errors.New("cursor expired")

	// ErrInvalidCursor indicates a cursor could not be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")

	// Webhook Errors.

	// ErrSignatureInvalid indicates a webhook failed signature or token verification.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// Authentication Errors.

	// ErrAuthRequired indicates the connector requires authentication but none is configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthInvalid indicates the authentication credentials are invalid.
	ErrAuthInvalid = errors.New("authentication invalid")

	// Connector Errors.

	// ErrConnectorValidation indicates connector validation failed.
	// The connection is misconfigured or credentials are invalid.
	ErrConnectorValidation = errors.New("connector validation failed")

	// ErrConnectorClosed indicates the connector has been closed.
	ErrConnectorClosed = errors.New("connector closed")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient indicates a retryable provider failure (5xx, timeouts).
	ErrTransient = errors.New("transient provider error")
)
