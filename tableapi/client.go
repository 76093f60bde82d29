package tableapi

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"mangrobe.dev/streamsource/rpc"
	"mangrobe.dev/streamsource/telemetry"
	"mangrobe.dev/streamsource/util/netu"
)

const (
	ListStreamsProcedure = "/mangrobe.api.InformationSchemaService/ListStreams"
	GetCommitsProcedure  = "/mangrobe.api.DataManipulationService/GetCommits"
)

// Service is the subset of the table service used by the connector.
type Service interface {
	ListStreams(ctx context.Context, req *ListStreamsRequest) (*ListStreamsResponse, error)
	GetCommits(ctx context.Context, req *GetCommitsRequest) (*GetCommitsResponse, error)
}

type Client struct {
	httpClient  *rpc.HTTPClient
	listStreams *connect.Client[ListStreamsRequest, ListStreamsResponse]
	getCommits  *connect.Client[GetCommitsRequest, GetCommitsResponse]
}

type NewClientParams struct {
	// Address of the table service, either host:port or a URL.
	Addr string
	// Name used to label HTTP client metrics.
	MetricName string
	// Attempts per call when the server is unavailable. Defaults to 3.
	MaxAttempts int
	// Delay before the first retry, growing linearly. Defaults to 100ms.
	InitialRetryDelay time.Duration
	Options           []connect.ClientOption
}

func NewClient(params NewClientParams) *Client {
	if params.MetricName == "" {
		params.MetricName = "tableapi"
	}
	if params.MaxAttempts == 0 {
		params.MaxAttempts = 3
	}

	httpClient := rpc.NewHTTPClient(params.MetricName,
		rpc.WithMaxAttempts(params.MaxAttempts),
		rpc.WithInitialRetryDelay(params.InitialRetryDelay))

	baseURL, err := netu.ResolveAddr(params.Addr)
	if err != nil {
		// Surfaces as a transport error on the first call
		baseURL = "http://" + params.Addr
	}

	opts := append([]connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(telemetry.NewRPCInterceptor(params.MetricName)),
	}, params.Options...)
	return &Client{
		httpClient:  httpClient,
		listStreams: connect.NewClient[ListStreamsRequest, ListStreamsResponse](httpClient, baseURL+ListStreamsProcedure, opts...),
		getCommits:  connect.NewClient[GetCommitsRequest, GetCommitsResponse](httpClient, baseURL+GetCommitsProcedure, opts...),
	}
}

func (c *Client) ListStreams(ctx context.Context, req *ListStreamsRequest) (*ListStreamsResponse, error) {
	resp, err := c.listStreams.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fmt.Errorf("tableapi ListStreams: %w", ErrorFrom(err))
	}
	return resp.Msg, nil
}

func (c *Client) GetCommits(ctx context.Context, req *GetCommitsRequest) (*GetCommitsResponse, error) {
	resp, err := c.getCommits.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fmt.Errorf("tableapi GetCommits: %w", ErrorFrom(err))
	}
	return resp.Msg, nil
}

// Close releases the client's pooled connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ Service = (*Client)(nil)
