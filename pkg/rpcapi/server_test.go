package rpcapi

import (
	"context"
	"testing"

	"github.com/lekkodev/sidecar/pkg/distclient"
	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/feature"
	"github.com/lekkodev/sidecar/pkg/store"
	"github.com/lekkodev/sidecar/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type recordingPipeline struct {
	events []distclient.EvaluationEvent
}

func (r *recordingPipeline) Push(ev distclient.EvaluationEvent) {
	r.events = append(r.events, ev)
}

func newTestServer(namespaces []store.Namespace) (*Server, *recordingPipeline) {
	st := store.New(namespaces, "commit-1")
	rp := &recordingPipeline{}
	s := &Server{
		st:       st,
		pipeline: rp,
		repoKey:  types.RepositoryKey{Owner: "acme", Name: "flags"},
	}
	return s, rp
}

func boolFlag(name string, def bool) store.FlagRecord {
	v := any(def)
	return store.FlagRecord{Flag: feature.Flag{Name: name, Type: feature.TypeBool, Default: &v}}
}

func TestGetBoolReturnsDefaultAndRecordsMetric(t *testing.T) {
	s, rp := newTestServer([]store.Namespace{
		{Name: "default", Flags: []store.FlagRecord{boolFlag("on", true)}},
	})

	resp, err := s.getBool(context.Background(), &getRequest{Namespace: "default", Name: "on"})
	require.NoError(t, err)
	assert.True(t, resp.Value.Bool)
	assert.Equal(t, []int{}, resp.Path)
	require.Len(t, rp.events, 1)
	assert.Equal(t, "on", rp.events[0].FlagName)
	assert.Equal(t, "acme", rp.events[0].RepoOwner)
}

func TestGetBoolUnknownFlagIsInvalidArgument(t *testing.T) {
	s, _ := newTestServer(nil)
	_, err := s.getBool(context.Background(), &getRequest{Namespace: "default", Name: "missing"})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestEvaluateRejectsMismatchedType(t *testing.T) {
	s, _ := newTestServer([]store.Namespace{
		{Name: "default", Flags: []store.FlagRecord{boolFlag("on", true)}},
	})
	_, err := s.getString(context.Background(), &getRequest{Namespace: "default", Name: "on"})
	require.Error(t, err)
}

func TestEvaluateAcceptsUnspecifiedFlagTypeForAnyRequestedType(t *testing.T) {
	v := any("hello")
	st := store.New([]store.Namespace{
		{Name: "default", Flags: []store.FlagRecord{{Flag: feature.Flag{Name: "greeting", Type: feature.Unspecified, Default: &v}}}},
	}, "commit-1")
	rp := &recordingPipeline{}
	s := &Server{st: st, pipeline: rp, repoKey: types.RepositoryKey{Owner: "acme", Name: "flags"}}

	resp, err := s.getString(context.Background(), &getRequest{Namespace: "default", Name: "greeting"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Value.String)
}

func TestApiKeyInterceptorRejectsMissingHeader(t *testing.T) {
	called := false
	handler := func(ctx context.Context, req any) (any, error) {
		called = true
		return nil, nil
	}
	_, err := apiKeyInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	require.Error(t, err)
	assert.False(t, called)
}

func TestApiKeyInterceptorAllowsPresentHeader(t *testing.T) {
	called := false
	handler := func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(types.APIKeyHeader, "secret"))
	resp, err := apiKeyInterceptor(ctx, nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestStatusFromErrMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind errs.Kind
		code codes.Code
	}{
		{errs.InvalidArgumentf("x"), errs.InvalidArgument, codes.InvalidArgument},
		{errs.Internalf("x"), errs.Internal, codes.Internal},
		{errs.Unavailablef("x"), errs.Unavailable, codes.Unavailable},
		{errs.Unimplementedf("x"), errs.Unimplemented, codes.Unimplemented},
	}
	for _, c := range cases {
		st := statusFromErr(c.err)
		require.Error(t, st)
		assert.Equal(t, c.code, status.Code(st), c.kind.String())
	}
}
