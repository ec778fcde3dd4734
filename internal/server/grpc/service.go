package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "aasindex.v1.IndexService"

// IndexService is the server side of the service. Every call takes and
// returns a Struct with the JSON form of its arguments and result.
type IndexService interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEndpoints(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEndpoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddEndpoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateEndpoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveEndpoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetContent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartScan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ScanEndpoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Watch(*structpb.Struct, grpc.ServerStream) error
}

type unaryCall func(IndexService, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(IndexService), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(IndexService).Watch(in, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IndexService)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", IndexService.Ping),
		unary("ListEndpoints", IndexService.ListEndpoints),
		unary("GetEndpoint", IndexService.GetEndpoint),
		unary("AddEndpoint", IndexService.AddEndpoint),
		unary("UpdateEndpoint", IndexService.UpdateEndpoint),
		unary("RemoveEndpoint", IndexService.RemoveEndpoint),
		unary("GetDocuments", IndexService.GetDocuments),
		unary("GetDocument", IndexService.GetDocument),
		unary("GetContent", IndexService.GetContent),
		unary("UpdateDocument", IndexService.UpdateDocument),
		unary("StartScan", IndexService.StartScan),
		unary("ScanEndpoint", IndexService.ScanEndpoint),
		unary("Reset", IndexService.Reset),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
}

// RegisterIndexService registers srv with s.
func RegisterIndexService(s grpc.ServiceRegistrar, srv IndexService) {
	s.RegisterService(&serviceDesc, srv)
}
