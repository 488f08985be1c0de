package server

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// CertLoader holds the TLS certificate the listener presents. Reload swaps
// in a new pair; a pair that fails to load leaves the old one in place.
type CertLoader struct {
	certFile string
	keyFile  string
	logger   *slog.Logger
	cert     atomic.Pointer[tls.Certificate]
}

// NewCertLoader loads the key pair.
func NewCertLoader(certFile, keyFile string, logger *slog.Logger) (*CertLoader, error) {
	loader := &CertLoader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger,
	}
	if err := loader.Reload(); err != nil {
		return nil, err
	}
	return loader, nil
}

// GetCertificate is a callback for tls.Config.GetCertificate.
func (l *CertLoader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return l.cert.Load(), nil
}

// Files returns the certificate and key paths.
func (l *CertLoader) Files() []string {
	return []string{l.certFile, l.keyFile}
}

// Reload re-reads the key pair from disk.
func (l *CertLoader) Reload() error {
	cert, err := tls.LoadX509KeyPair(l.certFile, l.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}
	l.cert.Store(&cert)
	l.logger.Info("loaded tls certificate", "cert", l.certFile, "key", l.keyFile)
	return nil
}
