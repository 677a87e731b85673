// Package identity provisions the TLS identity the secure WebSocket listener
// serves. A fresh key pair and self-signed certificate are generated on every
// start and bound to the host's current local address; nothing is cached
// between runs and the private key never leaves process memory.
package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"time"
)

// DefaultHorizon is how long a generated certificate stays valid.
const DefaultHorizon = 365 * 24 * time.Hour

// clockSkew backdates NotBefore so clients with a slightly slow clock accept
// the certificate right away.
const clockSkew = time.Minute

// Identity is the process-scoped TLS identity.
type Identity struct {
	Address     net.IP // detected local address the certificate is bound to
	Interface   string // interface the address was found on
	Certificate tls.Certificate
	Leaf        *x509.Certificate
	NotBefore   time.Time
	NotAfter    time.Time
}

// Provisioner generates identities.
type Provisioner struct {
	horizon    time.Duration
	interfaces InterfaceLister
	now        func() time.Time
	logger     *slog.Logger
}

// NewProvisioner creates a provisioner. A non-positive horizon uses DefaultHorizon.
func NewProvisioner(horizon time.Duration, logger *slog.Logger) *Provisioner {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		horizon:    horizon,
		interfaces: SystemInterfaces,
		now:        time.Now,
		logger:     logger,
	}
}

// WithInterfaces replaces the interface source, used by tests and by hosts
// that want to pin the advertised interface.
func (p *Provisioner) WithInterfaces(lister InterfaceLister) *Provisioner {
	p.interfaces = lister
	return p
}

// Provision detects the local address and issues a new self-signed
// certificate for it.
func (p *Provisioner) Provision() (*Identity, error) {
	ifaces, err := p.interfaces()
	if err != nil {
		return nil, err
	}
	addr, ifaceName, err := SelectAddress(ifaces)
	if err != nil {
		return nil, err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := p.now()
	notBefore := now.Add(-clockSkew)
	notAfter := now.Add(p.horizon)

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   addr.String(),
			Organization: []string{"oscbridge ephemeral"},
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{addr, net.IPv4(127, 0, 0, 1)},
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}

	p.logger.Info("tls_identity_provisioned",
		"address", addr.String(),
		"interface", ifaceName,
		"not_after", notAfter.Format(time.RFC3339),
		"serial", leaf.SerialNumber.Text(16),
	)

	return &Identity{
		Address:   addr,
		Interface: ifaceName,
		Certificate: tls.Certificate{
			Certificate: [][]byte{der},
			PrivateKey:  key,
			Leaf:        leaf,
		},
		Leaf:      leaf,
		NotBefore: notBefore,
		NotAfter:  notAfter,
	}, nil
}

// TLSConfig returns a server TLS configuration serving this identity.
func (id *Identity) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{id.Certificate},
	}
}

// CertificatePEM returns the PEM encoded certificate. The private key is
// deliberately not exposed in encoded form.
func (id *Identity) CertificatePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Leaf.Raw})
}

// CertPool returns a pool trusting only this identity, for local clients.
func (id *Identity) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(id.Leaf)
	return pool
}

// ExportCertificate writes the public certificate to path so clients can
// trust it for this run.
func (id *Identity) ExportCertificate(path string) error {
	if err := os.WriteFile(path, id.CertificatePEM(), 0o644); err != nil {
		return fmt.Errorf("failed to export certificate to %s: %w", path, err)
	}
	return nil
}
