// Package config defines the sidecar's runtime configuration surface,
// populated from cobra flags in cmd/sidecar, and the validation that
// enforces its mode-dependent required fields.
package config

import (
	"strings"
	"time"

	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/log"
	"github.com/lekkodev/sidecar/pkg/types"
)

// Config holds every recognised runtime option.
type Config struct {
	LekkoAddr       string
	BindAddr        string
	MetricsBindAddr string
	APIKey          string
	Mode            types.Mode
	PollInterval    time.Duration
	RepoPath        string
	RepoURL         string

	LogLevel log.Level
	LogJSON  bool
}

// Validate enforces the mode-dependent requiredness of the data-source
// fields, returning an InvalidArgument-kinded error naming the first
// violation found.
func (c Config) Validate() error {
	if c.BindAddr == "" {
		return errs.InvalidArgumentf("config: bind_addr is required")
	}

	switch c.Mode {
	case types.ModeDefault:
		if c.LekkoAddr == "" {
			return errs.InvalidArgumentf("config: lekko_addr is required in default mode")
		}
		if c.RepoURL == "" {
			return errs.InvalidArgumentf("config: repo_url is required in default mode")
		}
		if _, err := ParseRepositoryKey(c.RepoURL); err != nil {
			return err
		}
	case types.ModeStatic:
		if c.RepoPath == "" {
			return errs.InvalidArgumentf("config: repo_path is required in static mode")
		}
	default:
		return errs.InvalidArgumentf("config: unknown mode %q", c.Mode)
	}

	return nil
}

// ParseRepositoryKey parses a user-supplied "owner/name" string into a
// RepositoryKey.
func ParseRepositoryKey(s string) (types.RepositoryKey, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return types.RepositoryKey{}, errs.InvalidArgumentf("config: repo_url %q is not of the form owner/name", s)
	}
	return types.RepositoryKey{Owner: parts[0], Name: parts[1]}, nil
}
