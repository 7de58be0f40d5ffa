// Package grpcpipe carries bridge frames over a bidirectional gRPC stream.
// The service is declared by hand: every stream message is a
// google.protobuf.StringValue holding one encoded frame, so no generated
// code is needed.
package grpcpipe
