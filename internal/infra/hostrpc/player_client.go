package hostrpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PlayerClient calls the player's control service.
type PlayerClient struct {
	token   string
	emit    *connect.Client[wrapperspb.StringValue, emptypb.Empty]
	status  *connect.Client[emptypb.Empty, structpb.Struct]
	enqueue *connect.Client[wrapperspb.StringValue, wrapperspb.Int32Value]
}

// NewPlayerClient creates a client for the player at baseURL.
func NewPlayerClient(httpClient connect.HTTPClient, baseURL, token string) *PlayerClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PlayerClient{
		token:   token,
		emit:    connect.NewClient[wrapperspb.StringValue, emptypb.Empty](httpClient, baseURL+PlayerEmitProcedure),
		status:  connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+PlayerStatusProcedure),
		enqueue: connect.NewClient[wrapperspb.StringValue, wrapperspb.Int32Value](httpClient, baseURL+PlayerEnqueueProcedure),
	}
}

// Emit delivers a host event to the player.
func (c *PlayerClient) Emit(ctx context.Context, event string) error {
	req := connect.NewRequest(wrapperspb.String(event))
	c.authorize(req.Header())
	if _, err := c.emit.CallUnary(ctx, req); err != nil {
		return errors.Wrapf(err, "failed to emit %s", event)
	}
	return nil
}

// Status returns the player status.
func (c *PlayerClient) Status(ctx context.Context) (map[string]any, error) {
	req := connect.NewRequest(&emptypb.Empty{})
	c.authorize(req.Header())
	resp, err := c.status.CallUnary(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get status")
	}
	return resp.Msg.AsMap(), nil
}

// Enqueue adds a file or directory to the player queue and returns the
// number of tracks added.
func (c *PlayerClient) Enqueue(ctx context.Context, path string) (int, error) {
	req := connect.NewRequest(wrapperspb.String(path))
	c.authorize(req.Header())
	resp, err := c.enqueue.CallUnary(ctx, req)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to enqueue %s", path)
	}
	return int(resp.Msg.GetValue()), nil
}

func (c *PlayerClient) authorize(h http.Header) {
	if c.token != "" {
		h.Set(TokenHeader, c.token)
	}
}
