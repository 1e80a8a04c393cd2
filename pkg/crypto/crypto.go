// Package crypto generates ephemeral TLS server certificates. Clients of
// pollcat never verify peers, so a throwaway self-signed certificate is
// enough for any listener that wants to speak TLS.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// SelfSignedCertificate creates an ECDSA P256 certificate signed by its own
// key, valid for localhost and the loopback addresses.
func SelfSignedCertificate() (tls.Certificate, error) {
	var out tls.Certificate

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return out, fmt.Errorf("ecdsa.GenerateKey(P256): %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return out, fmt.Errorf("generating serial number: %w", err)
	}

	cn := rand.Text()[:8]
	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return out, fmt.Errorf("x509.CreateCertificate(): %w", err)
	}

	out = tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
	return out, nil
}

// ServerConfig returns a TLS server configuration using a fresh
// self-signed certificate.
func ServerConfig() (*tls.Config, error) {
	cert, err := SelfSignedCertificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
