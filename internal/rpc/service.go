// Package rpc defines the transfer service exposed over gRPC: request and
// reply messages, the service descriptor and a typed client.
package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "parity.transfer.v1.Transfer"

const (
	MethodPrimeSend        = "/" + ServiceName + "/PrimeSend"
	MethodSendFile         = "/" + ServiceName + "/SendFile"
	MethodFinishTransfer   = "/" + ServiceName + "/FinishTransfer"
	MethodLaunchTraining   = "/" + ServiceName + "/LaunchTraining"
	MethodLaunchPrediction = "/" + ServiceName + "/LaunchPrediction"
)

// TransferServer is implemented by the server-side transfer service.
type TransferServer interface {
	PrimeSend(context.Context, *PrimeRequest) (*Ack, error)
	SendFile(context.Context, *SendRequest) (*Ack, error)
	FinishTransfer(context.Context, *FinishRequest) (*Ack, error)
	LaunchTraining(context.Context, *TrainingRequest) (*TrainingReply, error)
	LaunchPrediction(context.Context, *PredictionRequest) (*PredictionReply, error)
}

func RegisterTransferServer(s grpc.ServiceRegistrar, srv TransferServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary adapts a typed handler to the grpc.MethodDesc handler signature.
func unary[Req any, Resp any](method string, call func(TransferServer, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TransferServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TransferServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransferServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "PrimeSend",
			Handler:    unary(MethodPrimeSend, TransferServer.PrimeSend),
		},
		{
			MethodName: "SendFile",
			Handler:    unary(MethodSendFile, TransferServer.SendFile),
		},
		{
			MethodName: "FinishTransfer",
			Handler:    unary(MethodFinishTransfer, TransferServer.FinishTransfer),
		},
		{
			MethodName: "LaunchTraining",
			Handler:    unary(MethodLaunchTraining, TransferServer.LaunchTraining),
		},
		{
			MethodName: "LaunchPrediction",
			Handler:    unary(MethodLaunchPrediction, TransferServer.LaunchPrediction),
		},
	},
	Streams: []grpc.StreamDesc{},
}
