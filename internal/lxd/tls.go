package lxd

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"nathanbeddoewebdev/lxdm/internal/config"
)

// buildTLSConfig loads the client identity shared by HTTP requests and
// exec WebSocket connections.
func buildTLSConfig(r config.Remote) (*tls.Config, error) {
	conf := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: r.InsecureSkipVerify, //nolint:gosec // remotes commonly use self-signed certificates
	}

	if r.ClientCert != "" || r.ClientKey != "" {
		if r.ClientCert == "" || r.ClientKey == "" {
			return nil, fmt.Errorf("lxd: client certificate and key must both be set")
		}
		cert, err := tls.LoadX509KeyPair(r.ClientCert, r.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("lxd: failed to load client certificate: %w", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}

	if r.ServerCert != "" {
		data, err := os.ReadFile(r.ServerCert)
		if err != nil {
			return nil, fmt.Errorf("lxd: failed to read server certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("lxd: no certificates found in %s", r.ServerCert)
		}
		conf.RootCAs = pool
	}

	return conf, nil
}
