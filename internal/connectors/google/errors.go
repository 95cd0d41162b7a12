package google

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/syncd/internal/core/domain"
)

// IsUnauthorized returns true if the error indicates invalid credentials.
func IsUnauthorized(err error) bool {
	return statusCode(err) == http.StatusUnauthorized
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// IsRateLimited returns true if the error indicates rate limiting.
// Google reports per-user quota exhaustion as 403 rateLimitExceeded.
func IsRateLimited(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if gerr.Code == http.StatusForbidden {
		for _, item := range gerr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}

// WrapError annotates a Google API error with the domain error the engine
// and scheduler act on. The googleapi.Error stays reachable via errors.As.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var sentinel error
	switch code := statusCode(err); {
	case code == 0:
		var gerr *googleapi.Error
		if !errors.As(err, &gerr) {
			sentinel = domain.ErrTransient
		}
	case code == http.StatusGone:
		sentinel = domain.ErrCursorExpired
	case IsRateLimited(err):
		sentinel = domain.ErrRateLimited
	case code == http.StatusUnauthorized:
		sentinel = domain.ErrAuthInvalid
	case code == http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case code >= http.StatusInternalServerError:
		sentinel = domain.ErrTransient
	}

	if sentinel == nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return fmt.Errorf("%s: %w: %w", operation, sentinel, err)
}

func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
