// Package distclient is the backend-facing distribution client: it
// wraps a gRPC connection to the remote distribution backend used by the
// poller (version checks, full refreshes) and the metrics pipeline
// (evaluation telemetry upload), plus client lifecycle registration.
package distclient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lekkodev/sidecar/pkg/loader"
	"github.com/lekkodev/sidecar/pkg/store"
	"github.com/lekkodev/sidecar/pkg/types"
	"github.com/lekkodev/sidecar/pkg/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const callTimeout = 10 * time.Second

// Client is cloneable and shareable across goroutines: it holds a single
// *grpc.ClientConn, which is itself safe for concurrent use.
type Client struct {
	conn *grpc.ClientConn
}

// New dials addr. TLS is out of scope for this surface; the connection
// relies on transport-level security provided by its deployment
// environment (e.g. a service mesh sidecar or localhost trust boundary).
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(wire.Codec{})),
	)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

type versionRequest struct {
	Owner      string `json:"owner"`
	Name       string `json:"name"`
	SessionKey string `json:"session_key"`
}

type versionResponse struct {
	CommitSHA string `json:"commit_sha"`
}

// GetRepositoryVersion returns the backend's current commit for repo.
func (c *Client) GetRepositoryVersion(ctx context.Context, repo types.RepositoryKey, sessionKey, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req := versionRequest{Owner: repo.Owner, Name: repo.Name, SessionKey: sessionKey}
	var resp versionResponse
	if err := c.invoke(ctx, "/lekko.distribution.v1.DistributionService/GetRepositoryVersion", apiKey, &req, &resp); err != nil {
		return "", err
	}
	return resp.CommitSHA, nil
}

type contentsRequest struct {
	Owner      string `json:"owner"`
	Name       string `json:"name"`
	SessionKey string `json:"session_key"`
}

// namespaceArtifacts carries each flag as the same raw *.proto.bin-style
// blob the repo loader decodes, rather than the decoded tree: pkg/rules'
// Rule is a closed sum type with unexported fields and does not survive
// a JSON round-trip on its own, so the wire representation matches what
// the Repo Loader already knows how to decode.
type namespaceArtifacts struct {
	Name  string            `json:"name"`
	Flags map[string][]byte `json:"flags"`
}

type contentsResponse struct {
	CommitSHA  string                `json:"commit_sha"`
	Namespaces []namespaceArtifacts `json:"namespaces"`
}

// GetRepositoryContents returns the backend's full current snapshot,
// decoding each flag artifact the same way the Repo Loader does.
func (c *Client) GetRepositoryContents(ctx context.Context, repo types.RepositoryKey, sessionKey, apiKey string) (string, []store.Namespace, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req := contentsRequest{Owner: repo.Owner, Name: repo.Name, SessionKey: sessionKey}
	var resp contentsResponse
	if err := c.invoke(ctx, "/lekko.distribution.v1.DistributionService/GetRepositoryContents", apiKey, &req, &resp); err != nil {
		return "", nil, err
	}

	namespaces, err := decodeContentsResponse(resp)
	if err != nil {
		return "", nil, err
	}
	return resp.CommitSHA, namespaces, nil
}

func decodeContentsResponse(resp contentsResponse) ([]store.Namespace, error) {
	namespaces := make([]store.Namespace, 0, len(resp.Namespaces))
	for _, na := range resp.Namespaces {
		var records []store.FlagRecord
		for name, raw := range na.Flags {
			flag, err := loader.DecodeFlagArtifact(name, raw)
			if err != nil {
				return nil, err
			}
			records = append(records, store.FlagRecord{Flag: flag, ContentHash: loader.ContentHash(raw)})
		}
		namespaces = append(namespaces, store.Namespace{Name: na.Name, Flags: records})
	}
	return namespaces, nil
}

// EvaluationEvent is a single flag-evaluation telemetry record.
type EvaluationEvent struct {
	RepoOwner string `json:"repo_owner"`
	RepoName  string `json:"repo_name"`
	Namespace string `json:"namespace"`
	FlagName  string `json:"flag_name"`
	Path      []int  `json:"path"`
	Timestamp int64  `json:"timestamp_unix_ms"`
}

type sendMetricsRequest struct {
	BatchID    string            `json:"batch_id"`
	SessionKey string            `json:"session_key"`
	Events     []EvaluationEvent `json:"events"`
}

// SendFlagEvaluationMetrics uploads a drained batch of evaluation
// events, tagged with a fresh batch id so the backend can dedupe a
// batch resent after a client-side timeout whose response was lost.
// Failures are the caller's to log; events are never retried here.
func (c *Client) SendFlagEvaluationMetrics(ctx context.Context, sessionKey, apiKey string, events []EvaluationEvent) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req := sendMetricsRequest{BatchID: uuid.New().String(), SessionKey: sessionKey, Events: events}
	return c.invoke(ctx, "/lekko.distribution.v1.DistributionService/SendFlagEvaluationMetrics", apiKey, &req, &struct{}{})
}

type registerRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

type registerResponse struct {
	SessionKey string `json:"session_key"`
}

// RegisterClient registers the sidecar with the backend, obtaining a
// session key for subsequent calls.
func (c *Client) RegisterClient(ctx context.Context, repo types.RepositoryKey, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req := registerRequest{Owner: repo.Owner, Name: repo.Name}
	var resp registerResponse
	if err := c.invoke(ctx, "/lekko.distribution.v1.DistributionService/RegisterClient", apiKey, &req, &resp); err != nil {
		return "", err
	}
	return resp.SessionKey, nil
}

// DeregisterClient ends a session previously obtained via
// RegisterClient.
func (c *Client) DeregisterClient(ctx context.Context, sessionKey, apiKey string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req := struct {
		SessionKey string `json:"session_key"`
	}{SessionKey: sessionKey}
	return c.invoke(ctx, "/lekko.distribution.v1.DistributionService/DeregisterClient", apiKey, &req, &struct{}{})
}

func (c *Client) invoke(ctx context.Context, method, apiKey string, req, resp any) error {
	if apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, types.APIKeyHeader, apiKey)
	}
	return c.conn.Invoke(ctx, method, req, resp)
}
