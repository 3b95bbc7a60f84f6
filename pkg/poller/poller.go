// Package poller implements the remote poller data source: it
// periodically checks the distribution backend's current commit and
// pulls a full refresh into the config store when it changes.
package poller

import (
	"context"
	"time"

	"github.com/lekkodev/sidecar/pkg/distclient"
	"github.com/lekkodev/sidecar/pkg/log"
	"github.com/lekkodev/sidecar/pkg/metrics"
	"github.com/lekkodev/sidecar/pkg/store"
	"github.com/lekkodev/sidecar/pkg/types"
	"github.com/rs/zerolog"
)

// distributionClient is the slice of *distclient.Client the poller
// depends on, narrowed to an interface so tests can substitute a stub
// backend instead of dialing a real connection.
type distributionClient interface {
	GetRepositoryVersion(ctx context.Context, repo types.RepositoryKey, sessionKey, apiKey string) (string, error)
	GetRepositoryContents(ctx context.Context, repo types.RepositoryKey, sessionKey, apiKey string) (string, []store.Namespace, error)
}

// Poller periodically checks the distribution backend for a new commit
// and refreshes st when one appears. Transport errors never back off or
// stop the loop; exponential backoff is a documented TODO, not yet
// implemented.
type Poller struct {
	client distributionClient
	st     *store.Store
	creds  types.ConnectionCredentials
	tick   time.Duration

	logger zerolog.Logger
	stopCh chan struct{}
}

// New constructs a Poller over client, reloading st on every detected
// commit change. tick is the wait between version checks.
func New(client *distclient.Client, st *store.Store, creds types.ConnectionCredentials, tick time.Duration) *Poller {
	return &Poller{
		client: client,
		st:     st,
		creds:  creds,
		tick:   tick,
		logger: log.WithRepoKey(creds.RepoKey.Owner, creds.RepoKey.Name),
		stopCh: make(chan struct{}),
	}
}

// Start begins the poll loop in its own goroutine.
func (p *Poller) Start() {
	go p.run()
}

// Stop terminates the poll loop.
func (p *Poller) Stop() {
	close(p.stopCh)
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	p.logger.Info().Dur("interval", p.tick).Msg("remote poller started")

	for {
		select {
		case <-ticker.C:
			p.cycle()
		case <-p.stopCh:
			p.logger.Info().Msg("remote poller stopped")
			return
		}
	}
}

func (p *Poller) cycle() {
	ctx, cancel := context.WithTimeout(context.Background(), p.tick)
	defer cancel()

	remote, err := p.client.GetRepositoryVersion(ctx, p.creds.RepoKey, p.creds.SessionKey, p.creds.APIKey)
	if err != nil {
		p.logger.Warn().Err(err).Msg("checking repository version failed")
		metrics.PollCyclesTotal.WithLabelValues("version_error").Inc()
		return
	}

	if remote == p.st.Commit() {
		metrics.PollCyclesTotal.WithLabelValues("unchanged").Inc()
		return
	}

	timer := metrics.NewTimer()
	commit, namespaces, err := p.client.GetRepositoryContents(ctx, p.creds.RepoKey, p.creds.SessionKey, p.creds.APIKey)
	timer.ObserveDurationVec(metrics.StoreRefreshDuration, "poller")
	if err != nil {
		p.logger.Error().Err(err).Msg("fetching repository contents failed")
		metrics.StoreRefreshTotal.WithLabelValues("poller", "error").Inc()
		metrics.PollCyclesTotal.WithLabelValues("contents_error").Inc()
		return
	}

	p.st.Replace(namespaces, commit)
	p.logger.Info().Str("commit", commit).Msg("repository snapshot refreshed from backend")
	metrics.StoreRefreshTotal.WithLabelValues("poller", "success").Inc()
	metrics.PollCyclesTotal.WithLabelValues("refreshed").Inc()
}
