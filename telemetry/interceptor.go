package telemetry

import (
	"context"
	"time"

	"connectrpc.com/connect"
)

// NewRPCInterceptor records in-flight calls and call durations by procedure
// and result code.
func NewRPCInterceptor(clientName string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			rpcInFlight.WithLabelValues(clientName, procedure).Inc()
			defer rpcInFlight.WithLabelValues(clientName, procedure).Dec()

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			rpcDuration.WithLabelValues(clientName, procedure, code).Observe(time.Since(start).Seconds())

			return resp, err
		}
	}
}
