package exchange

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls a PlanExchange service.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Inspect sends one plan envelope for inspection.
func (c *Client) Inspect(ctx context.Context, data []byte, opts ...grpc.CallOption) (*InspectResponse, error) {
	out := new(InspectResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Inspect", &InspectRequest{Plan: data}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Explain renders several plan envelopes.
func (c *Client) Explain(ctx context.Context, plans [][]byte, opts ...grpc.CallOption) ([]string, error) {
	out := new(ExplainResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Explain", &ExplainRequest{Plans: plans}, out, opts...); err != nil {
		return nil, err
	}
	return out.Explains, nil
}
