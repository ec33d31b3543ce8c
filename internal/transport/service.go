// Package transport implements the network half of the island model: a
// gRPC service standing in for the original's MPI point-to-point sends and
// MPI_Allgatherv/MPI_Barrier collectives, emulating the latter two over a
// designated rank-0 coordinator process. There is no protoc in this
// toolchain, so the service is wired by hand against a gob codec instead of
// generated *.pb.go bindings — the RPC methods and ServiceDesc below (with
// the codec registration in codec.go) are exactly what protoc-gen-go-grpc
// would have produced for three unary methods.
package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/distcgp/distcgp/internal/wire"
)

const serviceName = "distcgp.transport.Coordinator"

// DeliverMigrationRequest is a genuine push: the sender already holds the
// genomes and is handing them to the destination's process directly,
// mirroring genomeTransmissionBuffer::transmit.
type DeliverMigrationRequest struct {
	Batch wire.MigrationBatch
}

type DeliverMigrationResponse struct{}

type RankReportRequest struct {
	Report wire.RankReport
}

type RankMapResponse struct {
	Map wire.RankMap
}

type BarrierRequest struct {
	Rank uint32
}

type BarrierResponse struct{}

// CoordinatorServer is the interface a transport.Server implements.
type CoordinatorServer interface {
	DeliverMigration(context.Context, *DeliverMigrationRequest) (*DeliverMigrationResponse, error)
	SynchroniseRankMap(context.Context, *RankReportRequest) (*RankMapResponse, error)
	Barrier(context.Context, *BarrierRequest) (*BarrierResponse, error)
}

// CoordinatorClient is the interface a dialed connection to a peer's
// transport.Server exposes.
type CoordinatorClient interface {
	DeliverMigration(ctx context.Context, in *DeliverMigrationRequest, opts ...grpc.CallOption) (*DeliverMigrationResponse, error)
	SynchroniseRankMap(ctx context.Context, in *RankReportRequest, opts ...grpc.CallOption) (*RankMapResponse, error)
	Barrier(ctx context.Context, in *BarrierRequest, opts ...grpc.CallOption) (*BarrierResponse, error)
}

type coordinatorClient struct {
	cc grpc.ClientConnInterface
}

// NewCoordinatorClient wraps a dialed connection as a CoordinatorClient.
func NewCoordinatorClient(cc grpc.ClientConnInterface) CoordinatorClient {
	return &coordinatorClient{cc: cc}
}

func (c *coordinatorClient) DeliverMigration(ctx context.Context, in *DeliverMigrationRequest, opts ...grpc.CallOption) (*DeliverMigrationResponse, error) {
	out := new(DeliverMigrationResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/DeliverMigration", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) SynchroniseRankMap(ctx context.Context, in *RankReportRequest, opts ...grpc.CallOption) (*RankMapResponse, error) {
	out := new(RankMapResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/SynchroniseRankMap", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) Barrier(ctx context.Context, in *BarrierRequest, opts ...grpc.CallOption) (*BarrierResponse, error) {
	out := new(BarrierResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Barrier", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Coordinator_DeliverMigration_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeliverMigrationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).DeliverMigration(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/DeliverMigration"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).DeliverMigration(ctx, req.(*DeliverMigrationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Coordinator_SynchroniseRankMap_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RankReportRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).SynchroniseRankMap(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SynchroniseRankMap"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).SynchroniseRankMap(ctx, req.(*RankReportRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Coordinator_Barrier_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(BarrierRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Barrier(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Barrier"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).Barrier(ctx, req.(*BarrierRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var coordinatorServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "DeliverMigration", Handler: _Coordinator_DeliverMigration_Handler},
		{MethodName: "SynchroniseRankMap", Handler: _Coordinator_SynchroniseRankMap_Handler},
		{MethodName: "Barrier", Handler: _Coordinator_Barrier_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/service.go",
}

// RegisterCoordinatorServer registers srv's three RPCs on s.
func RegisterCoordinatorServer(s grpc.ServiceRegistrar, srv CoordinatorServer) {
	s.RegisterService(&coordinatorServiceDesc, srv)
}
