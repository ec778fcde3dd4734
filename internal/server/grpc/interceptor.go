package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/aasindex/internal/common"
)

var errBadRequest = errors.New("bad request")

// statusCode maps the error taxonomy onto gRPC codes.
func statusCode(err error) codes.Code {
	switch {
	case errors.Is(err, common.ErrEndpointNotFound), errors.Is(err, common.ErrDocumentNotFound):
		return codes.NotFound
	case errors.Is(err, common.ErrEndpointExists), errors.Is(err, common.ErrDocumentExists):
		return codes.AlreadyExists
	case errors.Is(err, common.ErrScanInProgress), errors.Is(err, common.ErrManualScanNotAllowed),
		errors.Is(err, common.ErrReadOnly):
		return codes.FailedPrecondition
	case errors.Is(err, common.ErrInvalidCursor), errors.Is(err, common.ErrInvalidExpression),
		errors.Is(err, common.ErrInvalidEndpoint), errors.Is(err, errBadRequest):
		return codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(statusCode(err), err.Error())
}

func (s *GRPCServer) unaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	err = toStatus(err)

	code := status.Code(err)
	switch code {
	case codes.OK:
		s.logger.Debug(ctx, "rpc", "method", info.FullMethod, "duration", time.Since(start))
	case codes.Internal:
		s.logger.Error(ctx, "rpc failed", "method", info.FullMethod, "code", code.String(), "error", err)
	default:
		s.logger.Info(ctx, "rpc rejected", "method", info.FullMethod, "code", code.String(), "error", err)
	}
	return resp, err
}

func (s *GRPCServer) streamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	s.logger.Debug(ss.Context(), "stream opened", "method", info.FullMethod)
	err := toStatus(handler(srv, ss))
	s.logger.Debug(ss.Context(), "stream closed", "method", info.FullMethod, "code", status.Code(err).String())
	return err
}
