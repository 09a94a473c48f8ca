package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theblitlabs/parity-ml/internal/transfer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type echoServer struct {
	primed *PrimeRequest
	sent   *SendRequest
}

func (e *echoServer) PrimeSend(_ context.Context, in *PrimeRequest) (*Ack, error) {
	e.primed = in
	return &Ack{Message: AckOK, SessionID: "s-1"}, nil
}

func (e *echoServer) SendFile(_ context.Context, in *SendRequest) (*Ack, error) {
	e.sent = in
	return &Ack{Message: AckOK}, nil
}

func (e *echoServer) FinishTransfer(context.Context, *FinishRequest) (*Ack, error) {
	return nil, status.Error(codes.InvalidArgument, "mac mismatch")
}

func (e *echoServer) LaunchTraining(_ context.Context, in *TrainingRequest) (*TrainingReply, error) {
	return &TrainingReply{Accuracy: 0.75}, nil
}

func (e *echoServer) LaunchPrediction(context.Context, *PredictionRequest) (*PredictionReply, error) {
	return &PredictionReply{Prediction: "[1,0]"}, nil
}

func dialBufconn(t *testing.T, srv TransferServer, opts ...grpc.ServerOption) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(opts...)
	RegisterTransferServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := Dial(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func TestClientRoundTrip(t *testing.T) {
	srv := &echoServer{}
	client := dialBufconn(t, srv)
	ctx := context.Background()

	ack, err := client.PrimeSend(ctx, &PrimeRequest{Filename: "coefs.txt", Purpose: transfer.PurposeModelCoefficients})
	require.NoError(t, err)
	assert.True(t, ack.OK())
	assert.Equal(t, "s-1", ack.SessionID)
	assert.Equal(t, transfer.PurposeModelCoefficients, srv.primed.Purpose)

	content := []byte{0x00, 0xff, 0x10}
	_, err = client.SendFile(ctx, &SendRequest{SessionID: "s-1", Filename: "coefs.txt", Content: content, Digest: []byte{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, content, srv.sent.Content)
	assert.Equal(t, []byte{1, 2}, srv.sent.Digest)

	_, err = client.FinishTransfer(ctx, &FinishRequest{SessionID: "s-1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	training, err := client.LaunchTraining(ctx, &TrainingRequest{Flag: true})
	require.NoError(t, err)
	assert.Equal(t, 0.75, training.Accuracy)

	prediction, err := client.LaunchPrediction(ctx, &PredictionRequest{Flag: true})
	require.NoError(t, err)
	assert.Equal(t, "[1,0]", prediction.Prediction)
}

func TestInterceptorSeesFullMethod(t *testing.T) {
	var methods []string
	interceptor := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		methods = append(methods, info.FullMethod)
		return handler(ctx, req)
	}

	client := dialBufconn(t, &echoServer{}, grpc.UnaryInterceptor(interceptor))
	_, err := client.LaunchTraining(context.Background(), &TrainingRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{MethodLaunchTraining}, methods)
}

func TestAckOK(t *testing.T) {
	var nilAck *Ack
	assert.False(t, nilAck.OK())
	assert.False(t, (&Ack{Message: "digest mismatch"}).OK())
	assert.True(t, (&Ack{Message: AckOK}).OK())
}
