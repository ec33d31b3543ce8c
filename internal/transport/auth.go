package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/distcgp/distcgp/internal/secret"
)

const joinTokenHeader = "distcgp-join-token"

// UnaryServerInterceptor rejects any RPC that doesn't present the run's
// shared join token, the network-facing analog of MPI's trusted-launch
// model (mpirun never needed this; a dialable gRPC service does).
func UnaryServerInterceptor(token *secret.JoinToken) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "transport: missing join token")
		}
		values := md.Get(joinTokenHeader)
		if len(values) != 1 || !token.Equal(values[0]) {
			return nil, status.Error(codes.Unauthenticated, "transport: invalid join token")
		}
		return handler(ctx, req)
	}
}

// WithJoinToken attaches the run's shared join token to an outgoing RPC
// context, for use on every client call this package makes.
func WithJoinToken(ctx context.Context, token *secret.JoinToken) context.Context {
	return metadata.AppendToOutgoingContext(ctx, joinTokenHeader, token.String())
}
