package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/lekkodev/sidecar/pkg/distclient"
	"github.com/lekkodev/sidecar/pkg/log"
	"github.com/lekkodev/sidecar/pkg/types"
	"github.com/rs/zerolog"
)

const (
	queueCapacity = 1024
	flushInterval = 10 * time.Second
	sendTimeout   = 10 * time.Second
)

// metricsClient is the slice of *distclient.Client the pipeline depends
// on, narrowed so tests can substitute a stub backend.
type metricsClient interface {
	SendFlagEvaluationMetrics(ctx context.Context, sessionKey, apiKey string, events []distclient.EvaluationEvent) error
}

// Pipeline is the evaluation-path metrics ingress: a bounded channel fed
// by a non-blocking producer-side send, drained by a single background
// worker on a tick or size threshold. The evaluation path must never
// block on it.
type Pipeline struct {
	client metricsClient
	creds  types.ConnectionCredentials

	ch     chan distclient.EvaluationEvent
	doneCh chan struct{}

	logger zerolog.Logger
}

// NewPipeline constructs a Pipeline uploading through client, using
// creds for the session key and api key on every send.
func NewPipeline(client *distclient.Client, creds types.ConnectionCredentials) *Pipeline {
	return &Pipeline{
		client: client,
		creds:  creds,
		ch:     make(chan distclient.EvaluationEvent, queueCapacity),
		doneCh: make(chan struct{}),
		logger: log.WithComponent("metrics-pipeline"),
	}
}

// Push enqueues ev without blocking. If the ingress is full (or the
// worker has already stopped draining it), the event is dropped and a
// warning logged — the evaluation path's latency never depends on the
// metrics backend.
func (p *Pipeline) Push(ev distclient.EvaluationEvent) {
	select {
	case p.ch <- ev:
		MetricsQueueDepth.Set(float64(len(p.ch)))
	default:
		MetricsDroppedTotal.Inc()
		p.logger.Warn().Str("namespace", ev.Namespace).Str("flag", ev.FlagName).Msg("metrics ingress full, dropping evaluation event")
	}
}

// Start begins the background worker in its own goroutine.
func (p *Pipeline) Start() {
	go p.run()
}

// Stop closes the ingress, waits for the worker to drain and flush
// whatever remains, and for any in-flight sends to complete. Callers
// must stop every Push caller (the RPC surface) before calling Stop, or
// a concurrent Push can panic on a closed channel.
func (p *Pipeline) Stop() {
	close(p.ch)
	<-p.doneCh
}

func (p *Pipeline) run() {
	defer close(p.doneCh)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var buf []distclient.EvaluationEvent
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case ev, ok := <-p.ch:
			if !ok {
				if len(buf) > 0 {
					p.flush(buf, &wg)
				}
				return
			}
			buf = append(buf, ev)
			if len(buf) >= queueCapacity {
				p.flush(buf, &wg)
				buf = nil
			}
		case <-ticker.C:
			if len(buf) > 0 {
				p.flush(buf, &wg)
				buf = nil
			}
		}
	}
}

// flush sends batch in its own goroutine, tracked by wg; sends are an
// unordered in-flight set with no total ordering requirement.
func (p *Pipeline) flush(batch []distclient.EvaluationEvent, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		timer := NewTimer()
		err := p.client.SendFlagEvaluationMetrics(ctx, p.creds.SessionKey, p.creds.APIKey, batch)
		timer.ObserveDuration(MetricsFlushDuration)
		if err != nil {
			p.logger.Error().Err(err).Int("count", len(batch)).Msg("sending flag evaluation metrics failed")
			MetricsBatchesSentTotal.WithLabelValues("error").Inc()
			return
		}
		MetricsBatchesSentTotal.WithLabelValues("success").Inc()
	}()
}
