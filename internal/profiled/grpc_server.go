package profiled

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/generate"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "profiler.v1.SearchService"

// SearchServiceServer is the server API of profiler.v1.SearchService
type SearchServiceServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NextConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReportMeasurement(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(SearchServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SearchServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + name,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SearchServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SearchServiceDesc describes profiler.v1.SearchService for grpc.Server
var SearchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SearchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSession", Handler: unaryHandler("CreateSession", SearchServiceServer.CreateSession)},
		{MethodName: "NextConfig", Handler: unaryHandler("NextConfig", SearchServiceServer.NextConfig)},
		{MethodName: "ReportMeasurement", Handler: unaryHandler("ReportMeasurement", SearchServiceServer.ReportMeasurement)},
		{MethodName: "GetSession", Handler: unaryHandler("GetSession", SearchServiceServer.GetSession)},
		{MethodName: "DeleteSession", Handler: unaryHandler("DeleteSession", SearchServiceServer.DeleteSession)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "profiler/v1/search.proto",
}

// RegisterSearchServiceServer registers srv on a gRPC server
func RegisterSearchServiceServer(s grpc.ServiceRegistrar, srv SearchServiceServer) {
	s.RegisterService(&SearchServiceDesc, srv)
}

// SearchGRPCServer implements SearchServiceServer using a SessionStore backend.
type SearchGRPCServer struct {
	store *SessionStore
}

// NewSearchGRPCServer creates a new SearchGRPCServer with the provided SessionStore.
func NewSearchGRPCServer(store *SessionStore) *SearchGRPCServer {
	return &SearchGRPCServer{store: store}
}

// grpcError maps store and search errors to gRPC status errors
func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrSessionIDMissing),
		errors.Is(err, ErrInvalidProfile),
		errors.Is(err, ErrInvalidMeasurement):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, generate.ErrProtocolViolation):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func respond(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func decodeRequest(req *structpb.Struct, v any) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}
	if err := fromStruct(req, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func (s *SearchGRPCServer) CreateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in CreateSessionRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	if in.ProfileYAML == "" {
		return nil, status.Error(codes.InvalidArgument, "profile_yaml is required")
	}
	info, err := s.store.CreateFromYAML(in.ProfileYAML)
	if err != nil {
		return nil, grpcError(err)
	}
	return respond(SessionResponse{Session: info})
}

func (s *SearchGRPCServer) NextConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in SessionRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	p, ok, err := s.store.Next(in.SessionID)
	if err != nil {
		return nil, grpcError(err)
	}
	return respond(NextConfigResponse{Done: !ok, Proposal: p})
}

func (s *SearchGRPCServer) ReportMeasurement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in ReportMeasurementRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	summary, err := s.store.Report(in.SessionID, in.Measurements)
	if err != nil {
		return nil, grpcError(err)
	}
	return respond(ReportMeasurementResponse{Summary: summary})
}

func (s *SearchGRPCServer) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in SessionRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	info, err := s.store.Get(in.SessionID)
	if err != nil {
		return nil, grpcError(err)
	}
	return respond(SessionResponse{Session: info})
}

func (s *SearchGRPCServer) DeleteSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in SessionRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}
	if err := s.store.Delete(in.SessionID); err != nil {
		return nil, grpcError(err)
	}
	return respond(DeleteSessionResponse{Deleted: true})
}
