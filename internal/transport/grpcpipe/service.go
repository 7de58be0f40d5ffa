package grpcpipe

import (
	"google.golang.org/grpc"
)

const (
	// ServiceName is the fully qualified service name.
	ServiceName = "jsbridge.Pipe"
	// ConnectMethod is the full method name of the bidirectional stream.
	ConnectMethod = "/" + ServiceName + "/Connect"
)

// pipeService is implemented by Server. Messages on the stream are
// wrapperspb.StringValue holding one encoded frame each.
type pipeService interface {
	connect(stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*pipeService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "jsbridge/pipe.proto",
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(pipeService).connect(stream)
}
