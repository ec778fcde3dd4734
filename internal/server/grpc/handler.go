package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/aasindex/internal/models"
)

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(statusResponse{Status: "OK"})
}

func (s *GRPCServer) ListEndpoints(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.provider.Endpoints(ctx)
	if err != nil {
		return nil, err
	}
	return toStruct(endpointsResponse{Endpoints: list})
}

func (s *GRPCServer) GetEndpoint(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req nameRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	e, err := s.provider.Endpoint(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return toStruct(e)
}

func (s *GRPCServer) AddEndpoint(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var e models.Endpoint
	if err := fromStruct(in, &e); err != nil {
		return nil, err
	}
	if err := s.provider.AddEndpoint(ctx, &e); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "endpoint added", "endpoint", e.Name)
	return toStruct(&e)
}

func (s *GRPCServer) UpdateEndpoint(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var e models.Endpoint
	if err := fromStruct(in, &e); err != nil {
		return nil, err
	}
	if err := s.provider.UpdateEndpoint(ctx, &e); err != nil {
		return nil, err
	}
	return toStruct(&e)
}

func (s *GRPCServer) RemoveEndpoint(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req nameRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if err := s.provider.RemoveEndpoint(ctx, req.Name); err != nil {
		return nil, err
	}
	return toStruct(statusResponse{Status: "removed"})
}

func (s *GRPCServer) GetDocuments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req documentsRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	page, err := s.provider.Documents(ctx, req.Cursor, req.Expression, req.Language)
	if err != nil {
		return nil, err
	}
	return toStruct(page)
}

func (s *GRPCServer) GetDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req documentRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	doc, err := s.provider.Document(ctx, req.Endpoint, req.ID)
	if err != nil {
		return nil, err
	}
	return toStruct(doc)
}

func (s *GRPCServer) GetContent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req documentRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	env, err := s.provider.Content(ctx, req.Endpoint, req.ID)
	if err != nil {
		return nil, err
	}
	return toStruct(env)
}

func (s *GRPCServer) UpdateDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var doc models.Document
	if err := fromStruct(in, &doc); err != nil {
		return nil, err
	}
	if doc.Content == nil {
		return nil, fmt.Errorf("%w: content is required", errBadRequest)
	}
	if err := s.provider.UpdateDocument(ctx, &doc); err != nil {
		return nil, err
	}
	return toStruct(statusResponse{Status: "updated"})
}

func (s *GRPCServer) StartScan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req nameRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if err := s.provider.StartEndpointScan(ctx, req.Name); err != nil {
		return nil, err
	}
	return toStruct(statusResponse{Status: "started"})
}

func (s *GRPCServer) ScanEndpoint(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req nameRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	stats, err := s.provider.ScanEndpoint(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return toStruct(stats)
}

func (s *GRPCServer) Reset(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.provider.Reset(ctx); err != nil {
		return nil, err
	}
	return toStruct(statusResponse{Status: "reset"})
}

// Watch streams notifications until the client goes away or the provider
// stops.
func (s *GRPCServer) Watch(_ *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	events, cancel := s.provider.Subscribe(s.WatchBuffer)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-events:
			if !ok {
				return nil
			}
			out, err := toStruct(n)
			if err != nil {
				return err
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		}
	}
}
