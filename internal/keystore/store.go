// Package keystore assembles certificate and key material into encoded
// stores (JKS or PKCS#12) plus optional alias/password manifests.
//
// A store is assembled from an ordered list of entries. Each insertion is
// logically an import: a duplicate alias fails the build, it is never a
// silent overwrite.
package keystore

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/trustforge/trustforge/internal/format"
)

// Kind distinguishes identity stores from trust stores.
type Kind string

const (
	// KindKeystore holds a private key plus its certificate chain, used to
	// prove one's own identity.
	KindKeystore Kind = "keystore"

	// KindTruststore holds only public certificates, used to decide which
	// peers to trust.
	KindTruststore Kind = "truststore"
)

// DuplicateAliasError reports an alias inserted twice into the same store.
type DuplicateAliasError struct {
	Alias string
	Store string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("duplicate alias %q in store %q", e.Alias, e.Store)
}

// Material is the payload of one store entry: either a private key with its
// certificate chain, or a bare trusted certificate.
type Material struct {
	// Certificate is the entry's certificate. Always set.
	Certificate *x509.Certificate

	// CAChain holds issuer certificates imported alongside a key entry.
	CAChain []*x509.Certificate

	// Key is the private key for keystore entries, nil for bare
	// trusted certificates.
	Key *rsa.PrivateKey
}

// KeyMaterial builds the payload for a private key plus certificate chain.
func KeyMaterial(cert *x509.Certificate, key *rsa.PrivateKey, chain ...*x509.Certificate) Material {
	return Material{Certificate: cert, CAChain: chain, Key: key}
}

// CertMaterial builds the payload for a bare trusted certificate.
func CertMaterial(cert *x509.Certificate) Material {
	return Material{Certificate: cert}
}

// Entry is one (alias, material, password) triple.
type Entry struct {
	// Alias is the unique name the entry is addressable under.
	Alias string

	// Material is the entry payload.
	Material Material

	// Password protects the entry's private key. Ignored for bare
	// certificates under PKCS#12; recorded in the manifest either way.
	Password string
}

// Store is an assembled material store, ready to encode.
type Store struct {
	// Name identifies the store in errors and manifests, e.g. "primary/keystore.jks".
	Name string

	// Kind is keystore or truststore.
	Kind Kind

	// Type is the encoding family.
	Type format.StoreType

	// Password protects the store as a whole.
	Password string

	entries []Entry
}

// Assemble builds a store from an ordered list of entries, enforcing alias
// uniqueness and kind consistency.
func Assemble(name string, kind Kind, storeType format.StoreType, password string, entries []Entry) (*Store, error) {
	if kind != KindKeystore && kind != KindTruststore {
		return nil, fmt.Errorf("store %q: unknown kind %q", name, kind)
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Alias == "" {
			return nil, fmt.Errorf("store %q: entry with empty alias", name)
		}
		if _, dup := seen[e.Alias]; dup {
			return nil, &DuplicateAliasError{Alias: e.Alias, Store: name}
		}
		seen[e.Alias] = struct{}{}

		if e.Material.Certificate == nil {
			return nil, fmt.Errorf("store %q: entry %q has no certificate", name, e.Alias)
		}
		if kind == KindTruststore && e.Material.Key != nil {
			return nil, fmt.Errorf("store %q: truststore entry %q must not carry a private key", name, e.Alias)
		}
	}

	if kind == KindKeystore {
		keyed := 0
		for _, e := range entries {
			if e.Material.Key != nil {
				keyed++
			}
		}
		if keyed == 0 {
			return nil, fmt.Errorf("store %q: keystore has no key entry", name)
		}
	}

	return &Store{
		Name:     name,
		Kind:     kind,
		Type:     storeType,
		Password: password,
		entries:  entries,
	}, nil
}

// Entries returns the ordered entries of the store.
func (s *Store) Entries() []Entry {
	return s.entries
}

// Aliases returns the aliases in insertion order.
func (s *Store) Aliases() []string {
	aliases := make([]string, len(s.entries))
	for i, e := range s.entries {
		aliases[i] = e.Alias
	}
	return aliases
}

// Encode produces the encoded store blob.
func (s *Store) Encode() ([]byte, error) {
	codec, err := codecFor(s.Type)
	if err != nil {
		return nil, fmt.Errorf("store %q: %w", s.Name, err)
	}

	blob, err := codec.Encode(s)
	if err != nil {
		return nil, fmt.Errorf("store %q: %w", s.Name, err)
	}
	return blob, nil
}

// WriteFile encodes the store and writes it to path. The store is encoded
// in memory first so a failed build leaves no partial file behind.
func (s *Store) WriteFile(path string) error {
	blob, err := s.Encode()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, blob, 0600); err != nil {
		return fmt.Errorf("store %q: failed to write %s: %w", s.Name, path, err)
	}
	return nil
}
