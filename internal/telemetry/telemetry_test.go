package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theblitlabs/parity-ml/internal/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	switch {
	case m.Counter != nil:
		return m.GetCounter().GetValue()
	case m.Gauge != nil:
		return m.GetGauge().GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestInitTelemetryDisabled(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestRecordChunk(t *testing.T) {
	accepted := value(t, chunkCounter.WithLabelValues("accepted"))
	rejected := value(t, chunkCounter.WithLabelValues("rejected"))
	bytes := value(t, chunkBytesCounter)

	RecordChunk(true, 1024)
	RecordChunk(false, 1024)

	assert.Equal(t, accepted+1, value(t, chunkCounter.WithLabelValues("accepted")))
	assert.Equal(t, rejected+1, value(t, chunkCounter.WithLabelValues("rejected")))
	assert.Equal(t, bytes+1024, value(t, chunkBytesCounter))
}

func TestRecordTraining(t *testing.T) {
	before := value(t, trainingCounter.WithLabelValues("train", "success"))
	RecordTraining(context.Background(), "train", "success", 50*time.Millisecond)
	RecordAccuracy(0.8)

	assert.Equal(t, before+1, value(t, trainingCounter.WithLabelValues("train", "success")))
	assert.Equal(t, 0.8, value(t, accuracyGauge))
}

func TestUnaryServerInterceptor(t *testing.T) {
	interceptor := UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Fail"}
	before := value(t, rpcCounter.WithLabelValues("/test/Fail", codes.NotFound.String()))

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "gone")
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Equal(t, before+1, value(t, rpcCounter.WithLabelValues("/test/Fail", codes.NotFound.String())))

	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/test/Ok"}, func(ctx context.Context, req interface{}) (interface{}, error) {
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)

	_, err = interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, errors.New("plain")
	})
	assert.Equal(t, codes.Unknown, status.Code(err))
}

func TestMetricsMiddleware(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/brew", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, value(t, requestCounter.WithLabelValues("GET", "/brew", "418")))

	rec = httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "http_request_count_total"))
}
