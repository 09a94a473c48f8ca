package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theblitlabs/parity-ml/internal/api/handlers"
	"github.com/theblitlabs/parity-ml/internal/auth"
	"github.com/theblitlabs/parity-ml/internal/catalog"
	"github.com/theblitlabs/parity-ml/internal/events"
	"github.com/theblitlabs/parity-ml/internal/integrity"
	"github.com/theblitlabs/parity-ml/internal/monitoring/health"
	"github.com/theblitlabs/parity-ml/internal/transfer"
)

type fixture struct {
	server   *httptest.Server
	sessions *transfer.Manager
	catalog  *catalog.MemoryCatalog
	checker  *health.HealthChecker
	hub      *events.Hub
}

func newFixture(t *testing.T, authority *auth.Authority) *fixture {
	t.Helper()
	f := &fixture{
		sessions: transfer.NewManager(integrity.Key("k"), time.Minute),
		catalog:  catalog.NewMemoryCatalog(),
		checker:  health.NewHealthChecker(0),
		hub:      events.NewHub(),
	}
	admin := handlers.NewAdminHandler(f.sessions, f.catalog, f.checker, nil)
	f.server = httptest.NewServer(NewRouter(admin, f.hub, authority, "/api"))
	t.Cleanup(f.server.Close)
	t.Cleanup(f.hub.Close)
	return f
}

func (f *fixture) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body struct {
		Status string `json:"status"`
		System struct {
			Goroutines int `json:"goroutines"`
		} `json:"system"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(health.StatusOK), body.Status)
	assert.Positive(t, body.System.Goroutines)

	f.checker.Register("database", func(context.Context) error { return errors.New("down") })
	f.checker.CheckAll(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/health", "").StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.get(t, "/health", "")

	resp := f.get(t, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionsAndArtifacts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	id, err := f.sessions.Prime("train.csv", transfer.PurposeTraining)
	require.NoError(t, err)

	resp := f.get(t, "/api/sessions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var infos []transfer.Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.Equal(t, transfer.PurposeTraining, infos[0].Purpose)

	resp = f.get(t, "/api/artifacts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var artifacts []catalog.Artifact
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&artifacts))
	assert.Empty(t, artifacts)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/artifacts/model/latest", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/artifacts/weights/latest", "").StatusCode)

	require.NoError(t, f.catalog.Record(ctx, &catalog.Artifact{
		SessionID: uuid.New(),
		Filename:  "coefs.txt",
		Purpose:   transfer.PurposeModelCoefficients,
		Size:      42,
		Location:  "/data/coefs.txt",
		CreatedAt: time.Now(),
	}))

	resp = f.get(t, "/api/artifacts/model/latest", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest catalog.Artifact
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&latest))
	assert.Equal(t, "coefs.txt", latest.Filename)
	assert.Equal(t, int64(42), latest.Size)
}

func TestAPIRequiresToken(t *testing.T) {
	authority, err := auth.NewAuthority("admin-secret")
	require.NoError(t, err)
	f := newFixture(t, authority)

	assert.Equal(t, http.StatusUnauthorized, f.get(t, "/api/sessions", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, f.get(t, "/api/sessions", "bogus").StatusCode)
	assert.Equal(t, http.StatusOK, f.get(t, "/health", "").StatusCode)

	token, err := authority.Issue("operator", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, f.get(t, "/api/sessions", token).StatusCode)
}

func TestEventStreamThroughMiddleware(t *testing.T) {
	authority, err := auth.NewAuthority("admin-secret")
	require.NoError(t, err)
	f := newFixture(t, authority)

	token, err := authority.Issue("operator", time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/events?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return f.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	f.hub.Publish(events.TypeTransferFinished, map[string]string{"filename": "train.csv"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.TypeTransferFinished, ev.Type)
}
