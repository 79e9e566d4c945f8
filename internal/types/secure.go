package types

import (
	"log/slog"
	"net/url"
)

const redactedPlaceholder = "***REDACTED***"

// SecretString holds a credential: DATABASE_URL, REDIS_URL, the weather API
// key or a broker password. Every printing path (fmt verbs including %#v,
// encoding/json, slog) sees the placeholder.
type SecretString string

func (s SecretString) String() string   { return redactedPlaceholder }
func (s SecretString) GoString() string { return redactedPlaceholder }

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value { return slog.StringValue(redactedPlaceholder) }

// MarshalJSON implements json.Marshaler.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the plaintext for the driver or client that needs it.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a non-empty secret was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}

// Host returns the host:port of a URL-shaped secret such as a connection
// string, without user info, path or query. It is "" when the value does not
// parse as a URL with a host.
func (s SecretString) Host() string {
	u, err := url.Parse(string(s))
	if err != nil {
		return ""
	}
	return u.Host
}
