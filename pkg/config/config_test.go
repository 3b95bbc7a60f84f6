package config

import (
	"testing"
	"time"

	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultModeRequiresLekkoAddrAndRepoURL(t *testing.T) {
	c := Config{BindAddr: ":50051", Mode: types.ModeDefault, PollInterval: time.Second}
	err := c.Validate()
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.KindOf(err))

	c.LekkoAddr = "lekko.example.com:443"
	err = c.Validate()
	require.Error(t, err)

	c.RepoURL = "acme/flags"
	assert.NoError(t, c.Validate())
}

func TestValidateStaticModeRequiresRepoPath(t *testing.T) {
	c := Config{BindAddr: ":50051", Mode: types.ModeStatic}
	err := c.Validate()
	require.Error(t, err)

	c.RepoPath = "/var/lib/sidecar/repo"
	assert.NoError(t, c.Validate())
}

func TestValidateRequiresBindAddr(t *testing.T) {
	c := Config{Mode: types.ModeStatic, RepoPath: "/tmp/repo"}
	err := c.Validate()
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.KindOf(err))
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	c := Config{BindAddr: ":50051", Mode: types.Mode("bogus")}
	assert.Error(t, c.Validate())
}

func TestParseRepositoryKey(t *testing.T) {
	k, err := ParseRepositoryKey("acme/flags")
	require.NoError(t, err)
	assert.Equal(t, types.RepositoryKey{Owner: "acme", Name: "flags"}, k)

	_, err = ParseRepositoryKey("no-slash")
	assert.Error(t, err)

	_, err = ParseRepositoryKey("/flags")
	assert.Error(t, err)
}
