package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lekkodev/sidecar/pkg/distclient"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stalledClient struct {
	release chan struct{}
	mu      sync.Mutex
	sent    [][]distclient.EvaluationEvent
}

func (s *stalledClient) SendFlagEvaluationMetrics(ctx context.Context, sessionKey, apiKey string, events []distclient.EvaluationEvent) error {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, events)
	return nil
}

func (s *stalledClient) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.sent {
		n += len(b)
	}
	return n
}

func newTestPipeline(client metricsClient) *Pipeline {
	return &Pipeline{
		client: client,
		ch:     make(chan distclient.EvaluationEvent, queueCapacity),
		doneCh: make(chan struct{}),
		logger: zerolog.Nop(),
	}
}

func TestPushDropsOnBurstWithStalledWorker(t *testing.T) {
	client := &stalledClient{release: make(chan struct{})}
	p := newTestPipeline(client)
	// The worker is never started: nothing drains p.ch, simulating a
	// worker stalled for the whole burst window.

	start := time.Now()
	for i := 0; i < 10000; i++ {
		p.Push(distclient.EvaluationEvent{FlagName: "f"})
	}
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second, "Push must never block even when nothing drains the ingress")
	assert.Equal(t, queueCapacity, len(p.ch))

	close(client.release)
}

func TestPushNeverBlocks(t *testing.T) {
	client := &stalledClient{release: make(chan struct{})}
	p := newTestPipeline(client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5000; i++ {
			p.Push(distclient.EvaluationEvent{FlagName: "f"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push blocked on a full, undrained channel")
	}
	close(client.release)
}

func TestFlushOnCloseDeliversBufferedEvents(t *testing.T) {
	client := &stalledClient{release: make(chan struct{})}
	close(client.release)
	p := newTestPipeline(client)
	p.ch = make(chan distclient.EvaluationEvent, queueCapacity)

	go p.run()

	p.Push(distclient.EvaluationEvent{FlagName: "a"})
	p.Push(distclient.EvaluationEvent{FlagName: "b"})

	// Closing the ingress makes the worker flush whatever it has
	// buffered and exit, without waiting for the 10s ticker.
	close(p.ch)
	<-p.doneCh

	require.Equal(t, 2, client.count())
}

func TestFlushOnSizeThreshold(t *testing.T) {
	client := &stalledClient{release: make(chan struct{})}
	close(client.release)
	p := newTestPipeline(client)
	p.ch = make(chan distclient.EvaluationEvent, queueCapacity)
	go p.run()

	for i := 0; i < queueCapacity; i++ {
		p.Push(distclient.EvaluationEvent{FlagName: "f"})
	}

	require.Eventually(t, func() bool {
		return client.count() >= queueCapacity
	}, time.Second, 5*time.Millisecond)

	close(p.ch)
	<-p.doneCh
}
