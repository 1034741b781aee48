package x509util

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

// CertificateBuilder builds X.509 certificate templates.
type CertificateBuilder struct {
	template *x509.Certificate
}

// NewCertificateBuilder creates a new certificate builder.
func NewCertificateBuilder() *CertificateBuilder {
	return &CertificateBuilder{
		template: &x509.Certificate{
			NotBefore:             time.Now(),
			NotAfter:              time.Now().AddDate(1, 0, 0),
			BasicConstraintsValid: true,
		},
	}
}

// Subject sets the certificate subject.
func (b *CertificateBuilder) Subject(name pkix.Name) *CertificateBuilder {
	b.template.Subject = name
	return b
}

// DNSNames sets the DNS SANs.
func (b *CertificateBuilder) DNSNames(names ...string) *CertificateBuilder {
	b.template.DNSNames = names
	return b
}

// Validity sets the certificate validity period.
func (b *CertificateBuilder) Validity(notBefore, notAfter time.Time) *CertificateBuilder {
	b.template.NotBefore = notBefore
	b.template.NotAfter = notAfter
	return b
}

// ValidForDays sets the validity in days from now.
func (b *CertificateBuilder) ValidForDays(days int) *CertificateBuilder {
	b.template.NotBefore = time.Now()
	b.template.NotAfter = b.template.NotBefore.AddDate(0, 0, days)
	return b
}

// SerialNumber sets the certificate serial number.
func (b *CertificateBuilder) SerialNumber(sn *big.Int) *CertificateBuilder {
	b.template.SerialNumber = sn
	return b
}

// CA marks this as a CA certificate.
func (b *CertificateBuilder) CA() *CertificateBuilder {
	b.template.IsCA = true
	b.template.MaxPathLen = 0
	b.template.MaxPathLenZero = true
	b.template.BasicConstraintsValid = true
	b.template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	return b
}

// ServerClient configures the certificate for both TLS server and TLS
// client authentication.
func (b *CertificateBuilder) ServerClient() *CertificateBuilder {
	b.template.IsCA = false
	b.template.BasicConstraintsValid = true
	b.template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	b.template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	return b
}

// ClientOnly configures the certificate for TLS client authentication only.
func (b *CertificateBuilder) ClientOnly() *CertificateBuilder {
	b.template.IsCA = false
	b.template.BasicConstraintsValid = true
	b.template.KeyUsage = x509.KeyUsageDigitalSignature
	b.template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	return b
}

// Build returns the certificate template.
func (b *CertificateBuilder) Build() (*x509.Certificate, error) {
	if b.template.SerialNumber == nil {
		return nil, fmt.Errorf("serial number is required")
	}
	if b.template.Subject.CommonName == "" {
		return nil, fmt.Errorf("subject common name is required")
	}
	if !b.template.NotAfter.After(b.template.NotBefore) {
		return nil, fmt.Errorf("certificate validity period is empty")
	}
	return b.template, nil
}

// SubjectKeyID computes the subject key identifier from a public key.
// Uses the first 20 bytes of the SHA-256 hash of the PKIX encoding.
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	pubBytes, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	hash := sha256.Sum256(pubBytes)
	return hash[:20], nil
}
