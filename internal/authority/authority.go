// Package authority implements the root certificate authority and leaf
// certificate issuance for one generation run.
//
// The authority is created once per run and lives only in memory. It owns
// every serial number it issues; after the stores are assembled the signing
// key is discarded via Discard.
package authority

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math/big"
	"time"

	"github.com/trustforge/trustforge/internal/x509util"
)

// serialBase is the first serial number handed out by an authority.
const serialBase = 0x1000

// minKeySize is the smallest RSA modulus the backend accepts.
const minKeySize = 2048

// KeyGenerationError reports a key pair the crypto backend could not produce.
type KeyGenerationError struct {
	Bits int
	Err  error
}

func (e *KeyGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to generate %d-bit key: %v", e.Bits, e.Err)
	}
	return fmt.Sprintf("unsupported key size: %d bits", e.Bits)
}

func (e *KeyGenerationError) Unwrap() error { return e.Err }

// SigningError reports a signature the authority's key could not produce.
type SigningError struct {
	Subject string
	Err     error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("failed to sign certificate for %q: %v", e.Subject, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Config holds the parameters for creating an authority.
type Config struct {
	// SubjectDN is the authority's distinguished name,
	// e.g. "CN=Root CA, O=Example".
	SubjectDN string

	// DNSName is the subject-alternative DNS name recorded on the root
	// certificate for the authority-issuing context.
	DNSName string

	// KeySize is the RSA modulus size in bits.
	KeySize int

	// ValidityDays is the root certificate validity in days.
	ValidityDays int
}

// Authority holds the root signing key and self-signed root certificate.
type Authority struct {
	cert   *x509.Certificate
	key    *rsa.PrivateKey
	serial uint64
}

// Initialize creates a new authority with a self-signed root certificate.
// The certificate's subject and issuer are identical.
func Initialize(cfg Config) (*Authority, error) {
	subject, err := x509util.ParseDN(cfg.SubjectDN)
	if err != nil {
		return nil, err
	}

	if cfg.KeySize < minKeySize {
		return nil, &KeyGenerationError{Bits: cfg.KeySize}
	}

	key, err := rsa.GenerateKey(rand.Reader, cfg.KeySize)
	if err != nil {
		return nil, &KeyGenerationError{Bits: cfg.KeySize, Err: err}
	}

	a := &Authority{key: key, serial: serialBase}

	builder := x509util.NewCertificateBuilder().
		Subject(subject).
		SerialNumber(a.IssueSerial()).
		CA().
		ValidForDays(cfg.ValidityDays)
	if cfg.DNSName != "" {
		builder = builder.DNSNames(cfg.DNSName)
	}

	template, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build root template: %w", err)
	}

	skid, err := x509util.SubjectKeyID(key.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to compute subject key ID: %w", err)
	}
	template.SubjectKeyId = skid

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, &SigningError{Subject: subject.CommonName, Err: err}
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse root certificate: %w", err)
	}
	a.cert = cert

	return a, nil
}

// Certificate returns the self-signed root certificate.
func (a *Authority) Certificate() *x509.Certificate {
	return a.cert
}

// IssueSerial returns the next serial number. Serials are strictly
// increasing, start at 0x1000, and are never reused within a run.
func (a *Authority) IssueSerial() *big.Int {
	serial := new(big.Int).SetUint64(a.serial)
	a.serial++
	return serial
}

// Key returns the root private key, nil once discarded. The caller must
// not retain it beyond the run.
func (a *Authority) Key() *rsa.PrivateKey {
	return a.key
}

// NotBefore returns the start of the authority's validity window.
func (a *Authority) NotBefore() time.Time { return a.cert.NotBefore }

// NotAfter returns the end of the authority's validity window.
func (a *Authority) NotAfter() time.Time { return a.cert.NotAfter }

// Discard drops the root signing key. The authority's public certificate
// remains usable; further issuance fails.
func (a *Authority) Discard() {
	a.key = nil
}

// signer returns the root key for issuance.
func (a *Authority) signer() (*rsa.PrivateKey, error) {
	if a.key == nil {
		return nil, fmt.Errorf("authority key has been discarded")
	}
	return a.key, nil
}
