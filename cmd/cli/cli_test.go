package cli

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theblitlabs/parity-ml/internal/auth"
	"github.com/theblitlabs/parity-ml/internal/catalog"
	"github.com/theblitlabs/parity-ml/internal/config"
	"github.com/theblitlabs/parity-ml/internal/integrity"
	"github.com/theblitlabs/parity-ml/internal/server"
	"github.com/theblitlabs/parity-ml/internal/storage"
	"github.com/theblitlabs/parity-ml/internal/transfer"
)

const records = `male,age,currentSmoker,cigsPerDay,BPMeds,prevalentStroke,prevalentHyp,diabetes,totChol,sysBP,diaBP,BMI,heartRate,glucose,TenYearCHD
0,39,0,0,0,0,0,0,195,106,70,26.97,80,77,1
1,46,1,20,1,1,1,1,250,121,81,28.73,95,NA,0
1,48,1,10,0.5,1,1,1,245,127.5,80,27.34,85,103,1
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeConfig(t *testing.T, dir, serverAddr string) string {
	t.Helper()
	return writeFile(t, dir, "config.yaml", fmt.Sprintf(`
client:
  server_addr: %q
  timeout: 10s
auth:
  secret: cli-secret
  subject: cli-test
transfer:
  mac_key: cli-mac-key
`, serverAddr))
}

func TestRunNormalize(t *testing.T) {
	path := writeFile(t, t.TempDir(), "data.csv", records)

	var out bytes.Buffer
	require.NoError(t, RunNormalize(path, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "male,age,"))
	assert.Equal(t, "0,0,0,0,0,0,0,0,0,0,0,0,0,0,1", lines[1])
	assert.Contains(t, lines[2], "NA")
}

func TestRunNormalizeMissingFile(t *testing.T) {
	assert.Error(t, RunNormalize(filepath.Join(t.TempDir(), "nope.csv"), &bytes.Buffer{}))
}

func TestRunToken(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "127.0.0.1:1")

	var out bytes.Buffer
	require.NoError(t, RunToken(cfgPath, "", 0, &out))

	authority, err := auth.NewAuthority("cli-secret")
	require.NoError(t, err)
	claims, err := authority.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "cli-test", claims.Subject)
}

func TestRunUploadRejectsExtensionOffline(t *testing.T) {
	err := RunUpload(context.Background(), "does-not-exist.yaml", "model", "model.dat")
	assert.ErrorIs(t, err, transfer.ErrInvalidFilename)

	err = RunUpload(context.Background(), "does-not-exist.yaml", "weights", "coefs.txt")
	assert.ErrorIs(t, err, transfer.ErrInvalidPurpose)
}

func TestUploadTrainPredictOverTCP(t *testing.T) {
	dir := t.TempDir()

	authority, err := auth.NewAuthority("cli-secret")
	require.NoError(t, err)
	store, err := storage.NewFSStoreWithFs(afero.NewMemMapFs(), "/srv")
	require.NoError(t, err)

	sessions := transfer.NewManager(integrity.Key("cli-mac-key"), time.Minute)
	svc := server.NewTransferService(sessions, store, catalog.NewMemoryCatalog(), nil, nil)
	grpcServer, err := server.NewGRPCServer(config.TLSConfig{}, authority, svc)
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	cfgPath := writeConfig(t, dir, lis.Addr().String())
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, RunTrain(ctx, cfgPath, &out))
	assert.Equal(t, server.MsgTrainingMissing+"\n", out.String())

	require.NoError(t, RunUpload(ctx, cfgPath, "training", writeFile(t, dir, "train.csv", records)))

	out.Reset()
	require.NoError(t, RunTrain(ctx, cfgPath, &out))
	assert.Equal(t, "accuracy: 1.0000\n", out.String())

	require.NoError(t, RunUpload(ctx, cfgPath, "prediction", writeFile(t, dir, "test.csv", records)))
	require.NoError(t, RunUpload(ctx, cfgPath, "model", writeFile(t, dir, "coefs.txt", strings.Repeat("0\n", 14))))

	out.Reset()
	require.NoError(t, RunPredict(ctx, cfgPath, &out))
	assert.Equal(t, "[1,1,1]\n", out.String())
}
