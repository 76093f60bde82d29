package rpc

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// NewLoggingInterceptor logs each unary call with its outcome. Failed calls
// are logged at Warn regardless of level.
func NewLoggingInterceptor(logger *slog.Logger, level slog.Level) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			if err != nil {
				logger.Warn("connect request failed",
					"procedure", req.Spec().Procedure,
					"code", connect.CodeOf(err).String(),
					"err", err)
				return resp, err
			}
			logger.Log(ctx, level, "connect request",
				"procedure", req.Spec().Procedure,
				"msg", req.Any(),
				"duration", time.Since(start))
			return resp, nil
		}
	}
}
