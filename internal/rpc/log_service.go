package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// logServiceName is the gRPC service path the Log RPC below is registered
// under, the client-streaming counterpart to serviceName's Transport
// service. Grounded on the teacher's LogService (core/s_log.go,
// cluster/s_log.go): one client-streaming RPC shipping leveled log lines
// to whichever process owns the log sink, acked once with a received
// count, rather than every process printing its own log lines locally.
const logServiceName = "aggregator.rpc.LogService"

// LogMessage is one leveled log line in flight to the log sink.
type LogMessage struct {
	Level   int32
	Source  string
	Message string
}

// LogAck closes a Log stream, reporting how many messages the sink
// received and when it closed the stream.
type LogAck struct {
	Time  int64
	Count int32
}

// LogServiceServer is implemented by whichever process owns the log sink
// (the leader process, in this module's topology).
type LogServiceServer interface {
	Log(LogService_LogServer) error
}

// LogService_LogServer is the server-side handle for one peer's in-flight
// Log stream.
type LogService_LogServer interface {
	Recv() (*LogMessage, error)
	SendAndClose(*LogAck) error
	grpc.ServerStream
}

type logServiceLogServer struct {
	grpc.ServerStream
}

func (x *logServiceLogServer) Recv() (*LogMessage, error) {
	m := new(LogMessage)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *logServiceLogServer) SendAndClose(m *LogAck) error {
	return x.ServerStream.SendMsg(m)
}

func logHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(LogServiceServer).Log(&logServiceLogServer{ServerStream: stream})
}

// logServiceDesc is the hand-written stand-in for what protoc-gen-go-grpc
// would emit from a LogService definition carrying one client-streaming
// Log RPC.
var logServiceDesc = grpc.ServiceDesc{
	ServiceName: logServiceName,
	HandlerType: (*LogServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Log",
			Handler:       logHandler,
			ClientStreams: true,
		},
	},
	Metadata: "aggregator/log_service.proto",
}

// RegisterLogServiceServer registers srv's implementation of Log on s.
func RegisterLogServiceServer(s *grpc.Server, srv LogServiceServer) {
	s.RegisterService(&logServiceDesc, srv)
}

// LogServiceClient ships log lines to the peer it was dialed against.
type LogServiceClient struct {
	cc *grpc.ClientConn
}

// NewLogServiceClient wraps an established connection to the process that
// owns the log sink.
func NewLogServiceClient(cc *grpc.ClientConn) *LogServiceClient {
	return &LogServiceClient{cc: cc}
}

// LogService_LogClient is the client-side handle for one in-flight Log
// stream.
type LogService_LogClient interface {
	Send(*LogMessage) error
	CloseAndRecv() (*LogAck, error)
	grpc.ClientStream
}

type logServiceLogClient struct {
	grpc.ClientStream
}

func (x *logServiceLogClient) Send(m *LogMessage) error {
	return x.ClientStream.SendMsg(m)
}

func (x *logServiceLogClient) CloseAndRecv() (*LogAck, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(LogAck)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Log opens a new client-streaming Log call against the peer c was
// constructed for.
func (c *LogServiceClient) Log(ctx context.Context) (LogService_LogClient, error) {
	stream, err := c.cc.NewStream(ctx, &logServiceDesc.Streams[0], "/"+logServiceName+"/Log", grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return &logServiceLogClient{ClientStream: stream}, nil
}
