package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/lossgate/internal/decision"
)

// #region client-struct
// Client calls a remote lossgate.v1.Selector service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to a selector server at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection. Close is a
// no-op for connections the caller owns.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region select
// Select asks the server for the minimum expected-loss decision. The returned
// selection id is empty when the server does not record.
func (c *Client) Select(ctx context.Context, req Request) (decision.SelectionResult, string, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, selectMethod, req.toStruct(), out); err != nil {
		return decision.SelectionResult{}, "", fromStatus("select", err)
	}
	res, id, err := selectionFromStruct(out)
	if err != nil {
		return decision.SelectionResult{}, "", fmt.Errorf("decode select response: %w", err)
	}
	return res, id, nil
}

// #endregion select

// #region evaluate
// Evaluate asks the server for the expected-loss table only.
func (c *Client) Evaluate(ctx context.Context, req Request) ([]decision.ExpectedLoss, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, evaluateMethod, req.toStruct(), out); err != nil {
		return nil, fromStatus("evaluate", err)
	}
	table, err := tableFromStruct(out)
	if err != nil {
		return nil, fmt.Errorf("decode evaluate response: %w", err)
	}
	return table, nil
}

// #endregion evaluate
