package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// TransferClient is the client view of the transfer service.
type TransferClient interface {
	PrimeSend(ctx context.Context, in *PrimeRequest) (*Ack, error)
	SendFile(ctx context.Context, in *SendRequest) (*Ack, error)
	FinishTransfer(ctx context.Context, in *FinishRequest) (*Ack, error)
	LaunchTraining(ctx context.Context, in *TrainingRequest) (*TrainingReply, error)
	LaunchPrediction(ctx context.Context, in *PredictionRequest) (*PredictionReply, error)
}

type Client struct {
	cc grpc.ClientConnInterface
}

var _ TransferClient = (*Client)(nil)

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to addr with the JSON codec selected for every call.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)))
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return conn, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	return c.cc.Invoke(ctx, method, in, out, grpc.CallContentSubtype(CodecName))
}

func (c *Client) PrimeSend(ctx context.Context, in *PrimeRequest) (*Ack, error) {
	out := new(Ack)
	if err := c.invoke(ctx, MethodPrimeSend, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendFile(ctx context.Context, in *SendRequest) (*Ack, error) {
	out := new(Ack)
	if err := c.invoke(ctx, MethodSendFile, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FinishTransfer(ctx context.Context, in *FinishRequest) (*Ack, error) {
	out := new(Ack)
	if err := c.invoke(ctx, MethodFinishTransfer, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LaunchTraining(ctx context.Context, in *TrainingRequest) (*TrainingReply, error) {
	out := new(TrainingReply)
	if err := c.invoke(ctx, MethodLaunchTraining, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LaunchPrediction(ctx context.Context, in *PredictionRequest) (*PredictionReply, error) {
	out := new(PredictionReply)
	if err := c.invoke(ctx, MethodLaunchPrediction, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
