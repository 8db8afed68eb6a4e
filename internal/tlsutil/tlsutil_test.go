package tlsutil

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientTLSConfig(t *testing.T) {
	t.Parallel()

	cfg := ClientTLSConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.ElementsMatch(t, aeadSuites, cfg.CipherSuites)

	cfg.CipherSuites[0] = 0
	assert.NotEqual(t, uint16(0), ClientTLSConfig().CipherSuites[0], "callers must get their own copy")
}

func TestNewClientSharesTransport(t *testing.T) {
	t.Parallel()

	a := NewClient(5 * time.Second)
	b := NewClient(0)
	assert.Equal(t, 5*time.Second, a.Timeout)
	assert.Same(t, a.Transport, b.Transport)
	assert.Equal(t, 16, SharedTransport().MaxIdleConnsPerHost)
}

func TestServerTLSConfig(t *testing.T) {
	t.Parallel()

	cfg := ServerTLSConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Equal(t, []tls.CurveID{tls.X25519, tls.CurveP256}, cfg.CurvePreferences)
}
