package config

import "context"

// SecretProvider resolves secret references, such as mounted secret file
// paths, to plaintext values.
type SecretProvider interface {
	// GetParametersBatch resolves every key it can. Keys that cannot be found
	// are omitted from the result rather than reported as errors; an error
	// means the provider itself failed.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
