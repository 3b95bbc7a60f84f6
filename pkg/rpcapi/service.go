package rpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName mirrors pkg/distclient's "lekko.distribution.v1.*" naming
// convention on the host-facing side of the surface.
const serviceName = "lekko.client.v1.ConfigurationService"

func runInterceptor(srv *Server, ctx context.Context, req any, interceptor grpc.UnaryServerInterceptor, method string, fn func(context.Context, any) (any, error)) (any, error) {
	if interceptor == nil {
		return fn(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
	return interceptor(ctx, req, info, fn)
}

func handleGetBool(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	s := srv.(*Server)
	req := new(getRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return runInterceptor(s, ctx, req, interceptor, "GetBool", func(ctx context.Context, req any) (any, error) {
		return s.getBool(ctx, req.(*getRequest))
	})
}

func handleGetInt(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	s := srv.(*Server)
	req := new(getRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return runInterceptor(s, ctx, req, interceptor, "GetInt", func(ctx context.Context, req any) (any, error) {
		return s.getInt(ctx, req.(*getRequest))
	})
}

func handleGetFloat(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	s := srv.(*Server)
	req := new(getRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return runInterceptor(s, ctx, req, interceptor, "GetFloat", func(ctx context.Context, req any) (any, error) {
		return s.getFloat(ctx, req.(*getRequest))
	})
}

func handleGetString(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	s := srv.(*Server)
	req := new(getRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return runInterceptor(s, ctx, req, interceptor, "GetString", func(ctx context.Context, req any) (any, error) {
		return s.getString(ctx, req.(*getRequest))
	})
}

func handleGetProto(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	s := srv.(*Server)
	req := new(getRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return runInterceptor(s, ctx, req, interceptor, "GetProto", func(ctx context.Context, req any) (any, error) {
		return s.getProto(ctx, req.(*getRequest))
	})
}

func handleGetJSON(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	s := srv.(*Server)
	req := new(getRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return runInterceptor(s, ctx, req, interceptor, "GetJson", func(ctx context.Context, req any) (any, error) {
		return s.getJSON(ctx, req.(*getRequest))
	})
}

func handleRegister(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	s := srv.(*Server)
	req := new(emptyResponse)
	if err := dec(req); err != nil {
		return nil, err
	}
	return runInterceptor(s, ctx, req, interceptor, "Register", func(ctx context.Context, req any) (any, error) {
		return s.register(ctx, req.(*emptyResponse))
	})
}

func handleDeregister(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	s := srv.(*Server)
	req := new(emptyResponse)
	if err := dec(req); err != nil {
		return nil, err
	}
	return runInterceptor(s, ctx, req, interceptor, "Deregister", func(ctx context.Context, req any) (any, error) {
		return s.deregister(ctx, req.(*emptyResponse))
	})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBool", Handler: handleGetBool},
		{MethodName: "GetInt", Handler: handleGetInt},
		{MethodName: "GetFloat", Handler: handleGetFloat},
		{MethodName: "GetString", Handler: handleGetString},
		{MethodName: "GetProto", Handler: handleGetProto},
		{MethodName: "GetJson", Handler: handleGetJSON},
		{MethodName: "Register", Handler: handleRegister},
		{MethodName: "Deregister", Handler: handleDeregister},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rpcapi.proto",
}
