package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the gRPC service path every method below is registered
// under, standing in for what protoc would normally generate from a
// "service Transport { ... }" .proto definition.
const serviceName = "aggregator.rpc.Transport"

// TransportServer is implemented by the cluster package's gRPC transport
// to handle inbound Barrier/Gather/Broadcast/RemoteCall calls.
type TransportServer interface {
	Barrier(context.Context, *BarrierRequest) (*BarrierResponse, error)
	Gather(context.Context, *GatherRequest) (*GatherResponse, error)
	Broadcast(context.Context, *BroadcastRequest) (*BroadcastResponse, error)
	RemoteCall(context.Context, *RemoteCallRequest) (*RemoteCallResponse, error)
}

func barrierHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(BarrierRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransportServer).Barrier(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Barrier"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TransportServer).Barrier(ctx, req.(*BarrierRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func gatherHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GatherRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransportServer).Gather(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Gather"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TransportServer).Gather(ctx, req.(*GatherRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func broadcastHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(BroadcastRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransportServer).Broadcast(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Broadcast"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TransportServer).Broadcast(ctx, req.(*BroadcastRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func remoteCallHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(RemoteCallRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransportServer).RemoteCall(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/RemoteCall"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TransportServer).RemoteCall(ctx, req.(*RemoteCallRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// serviceDesc is the hand-written stand-in for what protoc-gen-go-grpc
// would emit from a Transport service definition.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TransportServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Barrier", Handler: barrierHandler},
		{MethodName: "Gather", Handler: gatherHandler},
		{MethodName: "Broadcast", Handler: broadcastHandler},
		{MethodName: "RemoteCall", Handler: remoteCallHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aggregator/transport.proto",
}

// RegisterTransportServer registers srv's implementation of the four
// Transport RPCs on s.
func RegisterTransportServer(s *grpc.Server, srv TransportServer) {
	s.RegisterService(&serviceDesc, srv)
}

// TransportClient calls the four Transport RPCs against a single peer.
type TransportClient struct {
	cc *grpc.ClientConn
}

// NewTransportClient wraps an established connection to a single peer
// process.
func NewTransportClient(cc *grpc.ClientConn) *TransportClient {
	return &TransportClient{cc: cc}
}

func (c *TransportClient) callOpts() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(codecName)}
}

func (c *TransportClient) Barrier(ctx context.Context, req *BarrierRequest) (*BarrierResponse, error) {
	resp := new(BarrierResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Barrier", req, resp, c.callOpts()...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *TransportClient) Gather(ctx context.Context, req *GatherRequest) (*GatherResponse, error) {
	resp := new(GatherResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Gather", req, resp, c.callOpts()...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *TransportClient) Broadcast(ctx context.Context, req *BroadcastRequest) (*BroadcastResponse, error) {
	resp := new(BroadcastResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Broadcast", req, resp, c.callOpts()...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *TransportClient) RemoteCall(ctx context.Context, req *RemoteCallRequest) (*RemoteCallResponse, error) {
	resp := new(RemoteCallResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RemoteCall", req, resp, c.callOpts()...); err != nil {
		return nil, err
	}
	return resp, nil
}
