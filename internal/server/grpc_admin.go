package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/agreements/internal/model"
)

// ServiceName is the admin gRPC service. Its messages are protobuf
// well-known types, so it is registered by hand:
//
//	rpc Stats(google.protobuf.Empty) returns (google.protobuf.Struct)
//	rpc ListAgreements(google.protobuf.Struct) returns (google.protobuf.Struct)
//
// ListAgreements reads "search", "limit" and "offset" and answers with
// {"agreements": [...], "total": n}, using the JSON shapes of the HTTP API.
const ServiceName = "agreements.v1.AdminService"

const (
	statsMethod          = "/" + ServiceName + "/Stats"
	listAgreementsMethod = "/" + ServiceName + "/ListAgreements"
)

type adminServer interface {
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListAgreements(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*adminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Stats", Handler: adminStatsHandler},
		{MethodName: "ListAgreements", Handler: adminListAgreementsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agreements/v1/admin.proto",
}

// adminService implements adminServer on top of an AgreementServer.
type adminService struct {
	s *AgreementServer
}

func (a adminService) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats, err := a.s.stats(ctx)
	if err != nil {
		slog.Error("grpc stats failed", "err", err)
		return nil, status.Error(codes.Internal, "failed to count agreements")
	}
	return toStruct(stats)
}

func (a adminService) ListAgreements(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	limit := int(fields["limit"].GetNumberValue())
	offset := int(fields["offset"].GetNumberValue())
	if limit < 0 || offset < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit and offset must not be negative")
	}

	list, total, err := a.s.store.ListAgreements(ctx, model.AgreementFilter{
		Search: fields["search"].GetStringValue(),
		Limit:  pageLimit(limit),
		Offset: offset,
	})
	if err != nil {
		slog.Error("grpc list agreements failed", "err", err)
		return nil, status.Error(codes.Internal, "failed to list agreements")
	}
	if list == nil {
		list = []*model.Agreement{}
	}
	return toStruct(map[string]any{"agreements": list, "total": total})
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}

func adminStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(adminServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: statsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(adminServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func adminListAgreementsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(adminServer).ListAgreements(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listAgreementsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(adminServer).ListAgreements(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
