package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/tms-reconciler/internal/common"
)

// RequestIDMetadataKey is the gRPC metadata key carrying the caller's request ID.
const RequestIDMetadataKey = "x-request-id"

// UnaryRequestID tags the context with the caller's x-request-id, or a fresh one,
// and echoes it back in the response header.
func UnaryRequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
				requestID = vals[0]
			}
		}
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, requestID))
		return handler(common.WithRequestID(ctx, requestID), req)
	}
}

// UnaryLogger logs every call at a level chosen by its status code.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("request_id", common.RequestIDFromContext(ctx)),
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		switch code {
		case codes.OK:
			logger.Info("gRPC request", fields...)
		case codes.Internal, codes.Unknown:
			logger.Error("gRPC request", append(fields, zap.Error(err))...)
		default:
			logger.Warn("gRPC request", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

// UnaryRecovery turns handler panics into Internal errors.
func UnaryRecovery(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", common.RequestIDFromContext(ctx)),
					zap.String("method", info.FullMethod),
					zap.Any("error", r),
					zap.Stack("stacktrace"),
				)
				err = common.InternalError("internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// NewGRPCServer builds a gRPC server with the reconciler's interceptor chain.
func NewGRPCServer(logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			UnaryRequestID(),
			UnaryRecovery(logger),
			UnaryLogger(logger),
		),
	}, opts...)
	return grpc.NewServer(opts...)
}
