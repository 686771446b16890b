package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/classdocs/internal/common"
)

// Metadata keys carrying caller identity.
const (
	OwnerMetadataKey     = "x-owner-id"
	RequestIDMetadataKey = "x-request-id"
)

// OwnerInterceptor copies the trusted owner id and request id from incoming
// metadata into the context.
func OwnerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		if v := firstValue(md, OwnerMetadataKey); v != "" {
			ctx = common.WithOwnerID(ctx, v)
		}
		reqID := firstValue(md, RequestIDMetadataKey)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		return handler(common.WithRequestID(ctx, reqID), req)
	}
}

// LoggingInterceptor logs each call and turns panics into Internal errors.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc.panic", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}
			logger.Info("grpc.call",
				"method", info.FullMethod,
				"code", status.Code(err).String(),
				"owner", common.OwnerIDFromContext(ctx),
				"req_id", common.RequestIDFromContext(ctx),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}()
		return handler(ctx, req)
	}
}

func firstValue(md metadata.MD, key string) string {
	for _, v := range md.Get(key) {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
