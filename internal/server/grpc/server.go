// Package grpc exposes the provider over gRPC.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/logging"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/dmitrijs2005/aasindex/internal/provider"
)

// Provider is the part of provider.Provider the server calls.
type Provider interface {
	Endpoints(ctx context.Context) ([]*models.Endpoint, error)
	Endpoint(ctx context.Context, name string) (*models.Endpoint, error)
	AddEndpoint(ctx context.Context, e *models.Endpoint) error
	UpdateEndpoint(ctx context.Context, e *models.Endpoint) error
	RemoveEndpoint(ctx context.Context, name string) error
	Documents(ctx context.Context, cursor models.Cursor, expression, language string) (*models.Page, error)
	Document(ctx context.Context, endpoint, id string) (*models.Document, error)
	Content(ctx context.Context, endpoint, id string) (*aas.Node, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	StartEndpointScan(ctx context.Context, name string) error
	ScanEndpoint(ctx context.Context, name string) (provider.ScanStats, error)
	Reset(ctx context.Context) error
	Subscribe(buffer int) (<-chan provider.Notification, func())
}

type GRPCServer struct {
	address  string
	provider Provider
	logger   logging.Logger
	// WatchBuffer is the notification buffer of each Watch stream.
	WatchBuffer int
}

func NewGRPCServer(address string, l logging.Logger, p Provider) *GRPCServer {
	return &GRPCServer{
		address:     address,
		provider:    p,
		logger:      l.With("module", "grpc_server"),
		WatchBuffer: 64,
	}
}

// NewServer returns a grpc.Server with the service and interceptors
// registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(s.unaryInterceptor),
		grpc.ChainStreamInterceptor(s.streamInterceptor),
	)
	srv := grpc.NewServer(opts...)
	RegisterIndexService(srv, s)
	return srv
}

// Run serves until ctx is canceled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is canceled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())
	return srv.Serve(lis)
}
