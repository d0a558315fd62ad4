// Package tlsutil provides TLS helpers for the scimgate HTTP server.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/scimgate/scimgate/internal/common/config"
)

// NewTLSConfig builds the listener's *tls.Config. The server
// certificate is loaded eagerly so a bad keypair fails at startup, not
// on the first connection. Setting CAFile enables client certificate
// verification for IdPs that provision over mTLS.
func NewTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server keypair: %w", err)
	}

	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", cfg.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", cfg.CAFile)
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.VerifyClientCertIfGiven
	}

	return tlsCfg, nil
}

// ListenAndServe starts the server with TLS when enabled and falls back
// to plain HTTP otherwise.
func ListenAndServe(server *http.Server, cfg config.TLSConfig, log *zap.Logger) error {
	if !cfg.Enabled {
		return server.ListenAndServe()
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return fmt.Errorf("tls.enabled requires tls.cert_file and tls.key_file")
	}

	tlsCfg, err := NewTLSConfig(cfg)
	if err != nil {
		return err
	}
	server.TLSConfig = tlsCfg

	log.Info("Listening with TLS",
		zap.String("addr", server.Addr),
		zap.Bool("client_certs", cfg.CAFile != ""))

	return server.ListenAndServeTLS("", "")
}
