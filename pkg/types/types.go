// Package types holds the small, dependency-free value types shared
// across the sidecar's subsystems: repository identity, connection
// credentials, and the data-source mode.
package types

import "fmt"

// RepositoryKey identifies a configuration repository by owner and name,
// e.g. "acme/flags". Immutable for the lifetime of the process.
type RepositoryKey struct {
	Owner string
	Name  string
}

func (k RepositoryKey) String() string {
	return fmt.Sprintf("%s/%s", k.Owner, k.Name)
}

// Valid reports whether both components of the key are non-empty.
func (k RepositoryKey) Valid() bool {
	return k.Owner != "" && k.Name != ""
}

// ConnectionCredentials bundles the identity and auth material used when
// talking to the distribution backend. SessionKey may be empty in
// fallback (static, unregistered) cases.
type ConnectionCredentials struct {
	RepoKey    RepositoryKey
	APIKey     string
	SessionKey string
}

// Mode selects the sidecar's data-source.
type Mode string

const (
	// ModeDefault polls the distribution backend.
	ModeDefault Mode = "default"
	// ModeStatic watches an on-disk clone of the repository.
	ModeStatic Mode = "static"
)

// APIKeyHeader is the gRPC metadata key carrying the caller's api key,
// attached to every outbound backend call made with a non-empty api key
// and required on every host-facing request.
const APIKeyHeader = "apikey"
