package tableapi

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// NewHandler serves a Service over connect using the JSON message codec.
func NewHandler(svc Service, opts ...connect.HandlerOption) http.Handler {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ListStreamsProcedure, connect.NewUnaryHandler(
		ListStreamsProcedure,
		func(ctx context.Context, req *connect.Request[ListStreamsRequest]) (*connect.Response[ListStreamsResponse], error) {
			resp, err := svc.ListStreams(ctx, req.Msg)
			if err != nil {
				return nil, err
			}
			return connect.NewResponse(resp), nil
		},
		opts...,
	))
	mux.Handle(GetCommitsProcedure, connect.NewUnaryHandler(
		GetCommitsProcedure,
		func(ctx context.Context, req *connect.Request[GetCommitsRequest]) (*connect.Response[GetCommitsResponse], error) {
			resp, err := svc.GetCommits(ctx, req.Msg)
			if err != nil {
				return nil, err
			}
			return connect.NewResponse(resp), nil
		},
		opts...,
	))
	return mux
}
