package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "classdocs.v1.ConversionService"

const (
	MethodSubmit     = "/" + ServiceName + "/Submit"
	MethodGetStatus  = "/" + ServiceName + "/GetStatus"
	MethodListJobs   = "/" + ServiceName + "/ListJobs"
	MethodExportJobs = "/" + ServiceName + "/ExportJobs"
)

// ConversionServiceServer is the server API for classdocs.v1.ConversionService.
// Messages are google.protobuf.Struct documents.
type ConversionServiceServer interface {
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterConversionServiceServer registers srv on s.
func RegisterConversionServiceServer(s grpc.ServiceRegistrar, srv ConversionServiceServer) {
	s.RegisterService(&ConversionServiceDesc, srv)
}

type structMethod func(ConversionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConversionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConversionServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ConversionServiceDesc is the grpc.ServiceDesc for classdocs.v1.ConversionService.
var ConversionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConversionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: unaryHandler(MethodSubmit, ConversionServiceServer.Submit)},
		{MethodName: "GetStatus", Handler: unaryHandler(MethodGetStatus, ConversionServiceServer.GetStatus)},
		{MethodName: "ListJobs", Handler: unaryHandler(MethodListJobs, ConversionServiceServer.ListJobs)},
		{MethodName: "ExportJobs", Handler: unaryHandler(MethodExportJobs, ConversionServiceServer.ExportJobs)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "classdocs/v1/conversion.proto",
}
