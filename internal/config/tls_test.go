// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSelfSignedPair(t *testing.T) (certFile, keyFile string) {
	t.Helper()
	dir := t.TempDir()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	certFile = filepath.Join(dir, "server.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(certFile, certPEM, 0600))

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	keyFile = filepath.Join(dir, "server.key")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0600))

	return certFile, keyFile
}

func TestLoadTLSConfigDisabled(t *testing.T) {
	cfg := &Config{}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
}

func TestLoadTLSConfig(t *testing.T) {
	certFile, keyFile := writeSelfSignedPair(t)

	cfg := &Config{
		TLS: TLSConfig{
			Enabled:  true,
			CertFile: certFile,
			KeyFile:  keyFile,
		},
	}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)
	assert.Len(t, tlsCfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsCfg.MinVersion)
}

func TestLoadTLSConfigMinVersion13(t *testing.T) {
	certFile, keyFile := writeSelfSignedPair(t)

	cfg := &Config{
		TLS: TLSConfig{
			Enabled:    true,
			CertFile:   certFile,
			KeyFile:    keyFile,
			MinVersion: "1.3",
		},
	}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), tlsCfg.MinVersion)
}

func TestLoadTLSConfigBadVersion(t *testing.T) {
	certFile, keyFile := writeSelfSignedPair(t)

	cfg := &Config{
		TLS: TLSConfig{
			Enabled:    true,
			CertFile:   certFile,
			KeyFile:    keyFile,
			MinVersion: "1.0",
		},
	}
	_, err := cfg.LoadTLSConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported TLS version")
}

func TestLoadTLSConfigMissingFiles(t *testing.T) {
	cfg := &Config{
		TLS: TLSConfig{
			Enabled:  true,
			CertFile: "/nonexistent/server.crt",
			KeyFile:  "/nonexistent/server.key",
		},
	}
	_, err := cfg.LoadTLSConfig()
	assert.Error(t, err)
}
