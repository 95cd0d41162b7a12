package domain

import (
	"fmt"
	"strings"
)

// SourceKey builds an upsert key from a provider name, an item kind and
// one or more immutable provider identifiers. Mutable attributes such as
// titles or issue numbers must never be passed here: the key has to
// survive renames and transfers.
func SourceKey(provider, kind string, ids ...string) (string, error) {
	if provider == "" || kind == "" || len(ids) == 0 {
		return "", fmt.Errorf("%w: source key needs provider, kind and an id", ErrInvalidInput)
	}
	parts := make([]string, 0, len(ids)+2)
	parts = append(parts, provider, kind)
	for _, id := range ids {
		if id == "" {
			return "", fmt.Errorf("%w: empty id in source key for %s:%s", ErrInvalidInput, provider, kind)
		}
		parts = append(parts, id)
	}
	return strings.Join(parts, ":"), nil
}
