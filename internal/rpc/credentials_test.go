package rpc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theblitlabs/parity-ml/internal/config"
	"github.com/theblitlabs/parity-ml/internal/transfer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type testPKI struct {
	caCert *x509.Certificate
	caKey  *ecdsa.PrivateKey
	dir    string
}

func newTestPKI(t *testing.T) *testPKI {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "parity-test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	p := &testPKI{caCert: cert, caKey: key, dir: t.TempDir()}
	writePEM(t, filepath.Join(p.dir, "ca.pem"), "CERTIFICATE", der)
	return p
}

func writePEM(t *testing.T, path, kind string, der []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: kind, Bytes: der}), 0o600))
}

// issue writes a leaf key pair signed by the CA and returns its paths.
func (p *testPKI) issue(t *testing.T, name string, serial int64, usage x509.ExtKeyUsage) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: name},
		DNSNames:     []string{name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{usage},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, p.caCert, &key.PublicKey, p.caKey)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath := filepath.Join(p.dir, name+".pem")
	keyPath := filepath.Join(p.dir, name+"-key.pem")
	writePEM(t, certPath, "CERTIFICATE", der)
	writePEM(t, keyPath, "EC PRIVATE KEY", keyDER)
	return certPath, keyPath
}

func TestCredentialsInsecureWhenDisabled(t *testing.T) {
	server, err := ServerCredentials(config.TLSConfig{})
	require.NoError(t, err)
	assert.Equal(t, "insecure", server.Info().SecurityProtocol)

	client, err := ClientCredentials(config.TLSConfig{})
	require.NoError(t, err)
	assert.Equal(t, "insecure", client.Info().SecurityProtocol)
}

func TestCredentialsErrors(t *testing.T) {
	_, err := ServerCredentials(config.TLSConfig{CertFile: "missing.pem", KeyFile: "missing-key.pem"})
	assert.Error(t, err)

	pki := newTestPKI(t)
	cert, key := pki.issue(t, "localhost", 2, x509.ExtKeyUsageServerAuth)
	bogus := filepath.Join(pki.dir, "bogus.pem")
	require.NoError(t, os.WriteFile(bogus, []byte("not a certificate"), 0o600))

	_, err = ServerCredentials(config.TLSConfig{CertFile: cert, KeyFile: key, CAFile: bogus})
	assert.ErrorIs(t, err, ErrInvalidCA)
}

func TestMutualTLSRoundTrip(t *testing.T) {
	pki := newTestPKI(t)
	ca := filepath.Join(pki.dir, "ca.pem")
	serverCert, serverKey := pki.issue(t, "localhost", 2, x509.ExtKeyUsageServerAuth)
	clientCert, clientKey := pki.issue(t, "uploader", 3, x509.ExtKeyUsageClientAuth)

	serverCreds, err := ServerCredentials(config.TLSConfig{CertFile: serverCert, KeyFile: serverKey, CAFile: ca})
	require.NoError(t, err)
	clientCreds, err := ClientCredentials(config.TLSConfig{CertFile: clientCert, KeyFile: clientKey, CAFile: ca, ServerName: "localhost"})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.Creds(serverCreds))
	RegisterTransferServer(s, &echoServer{})
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := Dial(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(clientCreds),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ack, err := NewClient(conn).PrimeSend(context.Background(), &PrimeRequest{Filename: "train.csv", Purpose: transfer.PurposeTraining})
	require.NoError(t, err)
	assert.True(t, ack.OK())
}
