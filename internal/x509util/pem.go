package x509util

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
)

// WriteCertPEM writes a certificate as PEM to a writer.
func WriteCertPEM(w io.Writer, cert *x509.Certificate) error {
	return pem.Encode(w, &pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	})
}

// SaveCertPEM saves a certificate to a PEM file.
func SaveCertPEM(path string, cert *x509.Certificate) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create certificate file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := WriteCertPEM(f, cert); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	return nil
}

// LoadCertPEM loads a certificate from a PEM file.
func LoadCertPEM(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate found in %s", path)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return cert, nil
}

// SaveKeyPEM saves a PKCS#8 private key DER blob to a PEM file with 0600
// permissions. The caller retains ownership of the DER buffer and is
// responsible for wiping it.
func SaveKeyPEM(path string, pkcs8DER []byte) error {
	block := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: pkcs8DER,
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := pem.Encode(f, block); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	return nil
}

// Wipe overwrites a byte slice with zeros. Used to clear private key
// material from memory on every exit path.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
