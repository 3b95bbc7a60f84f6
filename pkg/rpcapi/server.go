// Package rpcapi is the host-facing RPC surface: six typed evaluation
// operations plus Register/Deregister lifecycle shims, wired to the
// config store, the feature evaluator and the metrics pipeline. No
// protoc-generated stubs exist for this service in the retrieved
// example pack, so the service is registered by hand as a
// grpc.ServiceDesc over the same JSON encoding.Codec pkg/distclient
// uses, rather than fabricating protobuf message types.
package rpcapi

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/lekkodev/sidecar/pkg/distclient"
	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/feature"
	"github.com/lekkodev/sidecar/pkg/log"
	"github.com/lekkodev/sidecar/pkg/metrics"
	"github.com/lekkodev/sidecar/pkg/rules"
	"github.com/lekkodev/sidecar/pkg/store"
	"github.com/lekkodev/sidecar/pkg/types"
	"github.com/lekkodev/sidecar/pkg/value"
	_ "github.com/lekkodev/sidecar/pkg/wire" // registers the JSON codec
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// evaluationPipeline narrows *metrics.Pipeline to the one method this
// surface depends on, so tests can substitute a recording stub.
type evaluationPipeline interface {
	Push(ev distclient.EvaluationEvent)
}

// Server implements the host-facing configuration RPC service.
type Server struct {
	grpc     *grpc.Server
	st       *store.Store
	pipeline evaluationPipeline
	repoKey  types.RepositoryKey
	logger   zerolog.Logger
}

// NewServer constructs a Server over st, pushing an evaluation event to
// pipeline on every successful typed Get call. The registered unary
// interceptor only requires a caller to present a non-empty apikey
// header; it does not check that header against any configured secret.
func NewServer(st *store.Store, pipeline evaluationPipeline, repoKey types.RepositoryKey) *Server {
	s := &Server{
		st:       st,
		pipeline: pipeline,
		repoKey:  repoKey,
		logger:   log.WithComponent("rpcapi"),
	}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(apiKeyInterceptor))
	s.grpc.RegisterService(&serviceDesc, s)
	return s
}

// Start begins serving on addr. It blocks until the listener closes.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errs.InternalWrap(err, "rpcapi: listening on %s", addr)
	}
	s.logger.Info().Str("addr", addr).Msg("host-facing RPC surface listening")
	return s.grpc.Serve(lis)
}

// drainGracePeriod bounds how long Stop waits for in-flight RPCs to
// finish on their own before forcing the listener closed.
const drainGracePeriod = 5 * time.Second

// Stop drains in-flight RPCs for up to drainGracePeriod, then force-stops
// the listener rather than blocking on GracefulStop indefinitely.
func (s *Server) Stop() {
	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(drainGracePeriod):
		s.logger.Warn().Dur("grace_period", drainGracePeriod).Msg("rpcapi: drain grace period elapsed, forcing stop")
		s.grpc.Stop()
		<-stopped
	}
}

func apiKeyInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if len(md.Get(types.APIKeyHeader)) == 0 || md.Get(types.APIKeyHeader)[0] == "" {
		return nil, status.Error(codes.InvalidArgument, "rpcapi: missing apikey header")
	}
	return handler(ctx, req)
}

func statusFromErr(err error) error {
	switch errs.KindOf(err) {
	case errs.InvalidArgument:
		return status.Error(codes.InvalidArgument, err.Error())
	case errs.Internal:
		return status.Error(codes.Internal, err.Error())
	case errs.Unavailable:
		return status.Error(codes.Unavailable, err.Error())
	case errs.Unimplemented:
		return status.Error(codes.Unimplemented, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}

// getRequest is the wire shape shared by all six typed Get operations.
type getRequest struct {
	RepoOwner string                       `json:"repo_owner"`
	RepoName  string                       `json:"repo_name"`
	Namespace string                       `json:"namespace"`
	Name      string                       `json:"name"`
	Context   map[string]value.ContextWire `json:"context"`
}

type resultValue struct {
	Kind   string  `json:"kind"`
	Bool   bool    `json:"bool,omitempty"`
	Int    int64   `json:"int,omitempty"`
	Double float64 `json:"double,omitempty"`
	String string  `json:"string,omitempty"`
	Bytes  []byte  `json:"bytes,omitempty"`
}

type getResponse struct {
	Value resultValue `json:"value"`
	Path  []int       `json:"path"`
}

type getJSONResponse struct {
	JSON json.RawMessage `json:"json"`
	Path []int           `json:"path"`
}

type emptyResponse struct{}

// evaluate looks up (req.Namespace, req.Name), requires its type to
// equal want or be unspecified (invariant I3), decodes the request
// context, and runs the feature evaluator. Every call, successful or
// not, is recorded against the evaluation metrics.
func (s *Server) evaluate(req *getRequest, want feature.Type) (val any, path []int, rec store.Record, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			metrics.EvaluationErrorsTotal.WithLabelValues(errs.KindOf(err).String()).Inc()
			return
		}
		metrics.EvaluationsTotal.WithLabelValues(req.Namespace, pathKey(path)).Inc()
		metrics.EvaluationDuration.WithLabelValues(req.Namespace).Observe(time.Since(start).Seconds())
	}()

	var ok bool
	rec, ok = s.st.Get(req.Namespace, req.Name)
	if !ok {
		err = errs.InvalidArgumentf("rpcapi: unknown flag %s/%s", req.Namespace, req.Name)
		return
	}
	if rec.Flag.Type != feature.Unspecified && rec.Flag.Type != want {
		err = errs.InvalidArgumentf(
			"rpcapi: flag %s/%s has type %s, requested %s", req.Namespace, req.Name, rec.Flag.Type, want)
		return
	}

	evalCtx := make(map[string]value.Context, len(req.Context))
	for k, w := range req.Context {
		v, cerr := value.ContextFromWire(w)
		if cerr != nil {
			err = errs.InvalidArgumentf("rpcapi: context key %q: %v", k, cerr)
			return
		}
		evalCtx[k] = v
	}

	res, eerr := feature.Evaluate(rec.Flag, evalCtx, rules.EvalContext{Repo: s.repoKey, Namespace: req.Namespace})
	if eerr != nil {
		err = eerr
		return
	}
	val, path = res.Value, res.Path
	return
}

// pathKey renders an evaluation path as a label value, e.g. "0.2".
func pathKey(path []int) string {
	if len(path) == 0 {
		return ""
	}
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

func (s *Server) recordEvaluation(req *getRequest, path []int) {
	s.pipeline.Push(distclient.EvaluationEvent{
		RepoOwner: s.repoKey.Owner,
		RepoName:  s.repoKey.Name,
		Namespace: req.Namespace,
		FlagName:  req.Name,
		Path:      path,
		Timestamp: time.Now().UnixMilli(),
	})
}

// recordRPC tags a completed host-facing RPC call with its method,
// outcome and duration.
func recordRPC(method string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RPCRequestsTotal.WithLabelValues(method, status).Inc()
	metrics.RPCRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (s *Server) getBool(_ context.Context, req *getRequest) (*getResponse, error) {
	start := time.Now()
	v, path, _, err := s.evaluate(req, feature.TypeBool)
	if err == nil {
		if b, ok := v.(bool); ok {
			s.recordEvaluation(req, path)
			recordRPC("GetBool", start, nil)
			return &getResponse{Value: resultValue{Kind: "bool", Bool: b}, Path: path}, nil
		}
		err = errs.Internalf("rpcapi: flag %s/%s did not evaluate to a bool", req.Namespace, req.Name)
	}
	recordRPC("GetBool", start, err)
	return nil, statusFromErr(err)
}

func (s *Server) getInt(_ context.Context, req *getRequest) (*getResponse, error) {
	start := time.Now()
	v, path, _, err := s.evaluate(req, feature.TypeInt)
	if err == nil {
		if i, ok := v.(int64); ok {
			s.recordEvaluation(req, path)
			recordRPC("GetInt", start, nil)
			return &getResponse{Value: resultValue{Kind: "int", Int: i}, Path: path}, nil
		}
		err = errs.Internalf("rpcapi: flag %s/%s did not evaluate to an int", req.Namespace, req.Name)
	}
	recordRPC("GetInt", start, err)
	return nil, statusFromErr(err)
}

func (s *Server) getFloat(_ context.Context, req *getRequest) (*getResponse, error) {
	start := time.Now()
	v, path, _, err := s.evaluate(req, feature.TypeFloat)
	if err == nil {
		if d, ok := v.(float64); ok {
			s.recordEvaluation(req, path)
			recordRPC("GetFloat", start, nil)
			return &getResponse{Value: resultValue{Kind: "double", Double: d}, Path: path}, nil
		}
		err = errs.Internalf("rpcapi: flag %s/%s did not evaluate to a float", req.Namespace, req.Name)
	}
	recordRPC("GetFloat", start, err)
	return nil, statusFromErr(err)
}

func (s *Server) getString(_ context.Context, req *getRequest) (*getResponse, error) {
	start := time.Now()
	v, path, _, err := s.evaluate(req, feature.TypeString)
	if err == nil {
		if str, ok := v.(string); ok {
			s.recordEvaluation(req, path)
			recordRPC("GetString", start, nil)
			return &getResponse{Value: resultValue{Kind: "string", String: str}, Path: path}, nil
		}
		err = errs.Internalf("rpcapi: flag %s/%s did not evaluate to a string", req.Namespace, req.Name)
	}
	recordRPC("GetString", start, err)
	return nil, statusFromErr(err)
}

func (s *Server) getProto(_ context.Context, req *getRequest) (*getResponse, error) {
	start := time.Now()
	v, path, _, err := s.evaluate(req, feature.TypeProto)
	if err == nil {
		if b, ok := v.([]byte); ok {
			s.recordEvaluation(req, path)
			recordRPC("GetProto", start, nil)
			return &getResponse{Value: resultValue{Kind: "bytes", Bytes: b}, Path: path}, nil
		}
		err = errs.Internalf("rpcapi: flag %s/%s did not evaluate to proto bytes", req.Namespace, req.Name)
	}
	recordRPC("GetProto", start, err)
	return nil, statusFromErr(err)
}

func (s *Server) getJSON(_ context.Context, req *getRequest) (*getJSONResponse, error) {
	start := time.Now()
	v, path, _, err := s.evaluate(req, feature.TypeJSON)
	if err == nil {
		if jv, ok := v.(value.JSON); ok {
			raw, merr := jv.MarshalJSON()
			if merr != nil {
				err = errs.InternalWrap(merr, "rpcapi: serialising json value")
			} else {
				s.recordEvaluation(req, path)
				recordRPC("GetJson", start, nil)
				return &getJSONResponse{JSON: raw, Path: path}, nil
			}
		} else {
			err = errs.Internalf("rpcapi: flag %s/%s did not evaluate to a json value", req.Namespace, req.Name)
		}
	}
	recordRPC("GetJson", start, err)
	return nil, statusFromErr(err)
}

func (s *Server) register(_ context.Context, _ *emptyResponse) (*emptyResponse, error) {
	metrics.RPCRequestsTotal.WithLabelValues("Register", "ok").Inc()
	return &emptyResponse{}, nil
}

func (s *Server) deregister(_ context.Context, _ *emptyResponse) (*emptyResponse, error) {
	metrics.RPCRequestsTotal.WithLabelValues("Deregister", "ok").Inc()
	return &emptyResponse{}, nil
}
