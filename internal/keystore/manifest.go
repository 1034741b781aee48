package keystore

import (
	"fmt"
	"os"
	"strings"

	"github.com/trustforge/trustforge/internal/format"
)

// Manifest renders the alias/password manifest that accompanies a store
// under the classic convention. Java-properties style:
//
//	aliases=root-ca,primary
//	keystore.password=changeit
//	root-ca.password=changeit
//	primary.password=changeit
func (s *Store) Manifest() []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "aliases=%s\n", strings.Join(s.Aliases(), ","))
	fmt.Fprintf(&b, "keystore.password=%s\n", s.Password)
	for _, e := range s.entries {
		fmt.Fprintf(&b, "%s.password=%s\n", e.Alias, s.effectivePassword(e))
	}

	return []byte(b.String())
}

// effectivePassword returns the password that actually opens an entry.
// PKCS#12 seals key material under the store password regardless of the
// requested entry password, so the manifest must record the store password
// there; JKS honors per-entry passwords natively.
func (s *Store) effectivePassword(e Entry) string {
	if e.Password == "" {
		return s.Password
	}
	if s.Type == format.StorePKCS12 && e.Material.Key != nil {
		return s.Password
	}
	return e.Password
}

// WriteManifest writes the manifest to path with 0600 permissions.
func (s *Store) WriteManifest(path string) error {
	if err := os.WriteFile(path, s.Manifest(), 0600); err != nil {
		return fmt.Errorf("store %q: failed to write manifest %s: %w", s.Name, path, err)
	}
	return nil
}
