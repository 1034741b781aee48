package authority

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/trustforge/trustforge/internal/x509util"
)

// ExtensionProfile selects the permitted uses of an issued certificate.
type ExtensionProfile string

const (
	// ServerClientAuth certificates may be presented both as a TLS server
	// and as a TLS client.
	ServerClientAuth ExtensionProfile = "server-client"

	// ClientAuthOnly certificates may only authenticate as a TLS client.
	ClientAuthOnly ExtensionProfile = "client-only"
)

// Request holds the immutable parameters for one leaf certificate. A
// request is consumed exactly once by Issue.
type Request struct {
	// SubjectDN is the leaf's distinguished name.
	SubjectDN string

	// DNSName is the single subject-alternative DNS name, copied verbatim
	// into the certificate.
	DNSName string

	// KeySize is the RSA modulus size in bits.
	KeySize int
}

// Issued is a signed leaf certificate together with its private key.
type Issued struct {
	// Certificate is the signed leaf certificate.
	Certificate *x509.Certificate

	// Key is the leaf private key.
	Key *rsa.PrivateKey

	// Profile is the extension profile the certificate carries.
	Profile ExtensionProfile

	// Issuer is the root certificate of the issuing authority.
	Issuer *x509.Certificate
}

// Issue produces a signed leaf certificate for the request. The signature
// and validity window derive from the authority: the leaf's window is
// clamped to lie within the authority's.
func Issue(a *Authority, req Request, profile ExtensionProfile) (*Issued, error) {
	subject, err := x509util.ParseDN(req.SubjectDN)
	if err != nil {
		return nil, err
	}

	signer, err := a.signer()
	if err != nil {
		return nil, &SigningError{Subject: subject.CommonName, Err: err}
	}

	if req.KeySize < minKeySize {
		return nil, &KeyGenerationError{Bits: req.KeySize}
	}

	key, err := rsa.GenerateKey(rand.Reader, req.KeySize)
	if err != nil {
		return nil, &KeyGenerationError{Bits: req.KeySize, Err: err}
	}

	notBefore := time.Now()
	if notBefore.Before(a.NotBefore()) {
		notBefore = a.NotBefore()
	}
	notAfter := a.NotAfter()

	builder := x509util.NewCertificateBuilder().
		Subject(subject).
		SerialNumber(a.IssueSerial()).
		Validity(notBefore, notAfter)

	switch profile {
	case ServerClientAuth:
		builder = builder.ServerClient()
	case ClientAuthOnly:
		builder = builder.ClientOnly()
	default:
		return nil, fmt.Errorf("unknown extension profile: %s", profile)
	}

	if req.DNSName != "" {
		builder = builder.DNSNames(req.DNSName)
	}

	template, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build leaf template: %w", err)
	}

	skid, err := x509util.SubjectKeyID(key.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to compute subject key ID: %w", err)
	}
	template.SubjectKeyId = skid
	template.AuthorityKeyId = a.cert.SubjectKeyId

	certDER, err := x509.CreateCertificate(rand.Reader, template, a.cert, key.Public(), signer)
	if err != nil {
		return nil, &SigningError{Subject: subject.CommonName, Err: err}
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse leaf certificate: %w", err)
	}

	return &Issued{
		Certificate: cert,
		Key:         key,
		Profile:     profile,
		Issuer:      a.cert,
	}, nil
}
