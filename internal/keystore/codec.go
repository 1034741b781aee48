package keystore

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"time"

	jks "github.com/pavlo-v-chernykh/keystore-go/v4"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/trustforge/trustforge/internal/format"
	"github.com/trustforge/trustforge/internal/x509util"
)

// codec encodes an assembled store into its on-disk representation.
type codec interface {
	Encode(s *Store) ([]byte, error)
}

func codecFor(t format.StoreType) (codec, error) {
	switch t {
	case format.StoreJKS:
		return jksCodec{}, nil
	case format.StorePKCS12:
		return pkcs12Codec{}, nil
	default:
		return nil, fmt.Errorf("no codec for store type %q", t)
	}
}

// jksCodec encodes stores in the Java KeyStore format. Aliases and
// per-entry passwords are preserved natively.
type jksCodec struct{}

func (jksCodec) Encode(s *Store) ([]byte, error) {
	ks := jks.New()
	now := time.Now()

	for _, e := range s.entries {
		if e.Material.Key != nil {
			der, err := x509.MarshalPKCS8PrivateKey(e.Material.Key)
			if err != nil {
				return nil, fmt.Errorf("entry %q: failed to marshal private key: %w", e.Alias, err)
			}

			chain := make([]jks.Certificate, 0, 1+len(e.Material.CAChain))
			chain = append(chain, jks.Certificate{Type: "X509", Content: e.Material.Certificate.Raw})
			for _, ca := range e.Material.CAChain {
				chain = append(chain, jks.Certificate{Type: "X509", Content: ca.Raw})
			}

			err = ks.SetPrivateKeyEntry(e.Alias, jks.PrivateKeyEntry{
				CreationTime:     now,
				PrivateKey:       der,
				CertificateChain: chain,
			}, []byte(e.Password))
			x509util.Wipe(der)
			if err != nil {
				return nil, fmt.Errorf("entry %q: %w", e.Alias, err)
			}
			continue
		}

		err := ks.SetTrustedCertificateEntry(e.Alias, jks.TrustedCertificateEntry{
			CreationTime: now,
			Certificate:  jks.Certificate{Type: "X509", Content: e.Material.Certificate.Raw},
		})
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Alias, err)
		}
	}

	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(s.Password)); err != nil {
		return nil, fmt.Errorf("failed to encode keystore: %w", err)
	}
	return buf.Bytes(), nil
}

// pkcs12Codec encodes stores in PKCS#12. A keystore carries exactly one key
// entry; its trusted-certificate aliases travel as additional CA
// certificates, and the store password doubles as the key passphrase, which
// is how PKCS#12 consumers import the bundle.
type pkcs12Codec struct{}

func (pkcs12Codec) Encode(s *Store) ([]byte, error) {
	if s.Kind == KindTruststore {
		entries := make([]pkcs12.TrustStoreEntry, 0, len(s.entries))
		for _, e := range s.entries {
			entries = append(entries, pkcs12.TrustStoreEntry{
				Cert:         e.Material.Certificate,
				FriendlyName: e.Alias,
			})
		}

		blob, err := pkcs12.Modern.EncodeTrustStoreEntries(entries, s.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to encode truststore: %w", err)
		}
		return blob, nil
	}

	var keyed *Entry
	var extra []*x509.Certificate
	for i := range s.entries {
		e := &s.entries[i]
		if e.Material.Key != nil {
			if keyed != nil {
				return nil, fmt.Errorf("PKCS#12 keystore supports a single key entry, got %q and %q", keyed.Alias, e.Alias)
			}
			keyed = e
			continue
		}
		extra = append(extra, e.Material.Certificate)
	}
	if keyed == nil {
		return nil, fmt.Errorf("PKCS#12 keystore has no key entry")
	}

	// The root can arrive both via the identity's chain and as a trusted
	// entry; emit each CA certificate once.
	var caCerts []*x509.Certificate
	seen := make(map[string]struct{})
	for _, cert := range append(append([]*x509.Certificate{}, keyed.Material.CAChain...), extra...) {
		if _, dup := seen[string(cert.Raw)]; dup {
			continue
		}
		seen[string(cert.Raw)] = struct{}{}
		caCerts = append(caCerts, cert)
	}

	blob, err := pkcs12.Modern.Encode(keyed.Material.Key, keyed.Material.Certificate, caCerts, s.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to encode keystore: %w", err)
	}
	return blob, nil
}
