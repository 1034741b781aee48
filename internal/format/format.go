// Package format encodes the two supported output conventions.
//
// A Profile is resolved once at the start of a run and queried by every
// other component. It decides store file names, whether alias/password
// manifests accompany each store, and the store type and key algorithm used
// by the secrets vault.
package format

import (
	"fmt"
)

// Edition selects the deployment edition.
type Edition string

const (
	// EditionCommunity is the base deployment without the analytics client.
	EditionCommunity Edition = "community"

	// EditionEnterprise additionally provisions the analytics client with
	// copies of the search-service stores.
	EditionEnterprise Edition = "enterprise"
)

// IsValid reports whether the edition is recognized.
func (e Edition) IsValid() bool {
	return e == EditionCommunity || e == EditionEnterprise
}

// StoreType identifies the on-disk encoding family of a material store.
type StoreType string

const (
	// StoreJKS is the Java KeyStore encoding.
	StoreJKS StoreType = "jks"

	// StorePKCS12 is the PKCS#12 encoding.
	StorePKCS12 StoreType = "pkcs12"

	// StoreJCEKSEquivalent labels the secrets container of the classic
	// convention.
	StoreJCEKSEquivalent StoreType = "jceks"
)

// KeyAlgorithm identifies the symmetric algorithm of the secrets vault key.
type KeyAlgorithm string

const (
	// KeyDESede is a 192-bit triple-DES key (classic convention).
	KeyDESede KeyAlgorithm = "desede"

	// KeyAES256 is a 256-bit AES key (current convention).
	KeyAES256 KeyAlgorithm = "aes-256"
)

// KeyLength returns the key length in bytes.
func (a KeyAlgorithm) KeyLength() int {
	switch a {
	case KeyDESede:
		return 24
	case KeyAES256:
		return 32
	default:
		return 0
	}
}

// StoreNames holds the file names of one participant's stores.
type StoreNames struct {
	Keystore   string
	Truststore string
}

// Profile is the resolved output convention for one run.
type Profile struct {
	// Name is "classic" or "current".
	Name string

	// ManifestRequired controls whether each store is accompanied by a
	// manifest file listing aliases and passwords.
	ManifestRequired bool

	// KeystoreType is the default encoding for identity stores.
	KeystoreType StoreType

	// TruststoreType is the default encoding for trust stores.
	TruststoreType StoreType

	// SecretsStoreType labels the container kind of the secrets vault.
	SecretsStoreType StoreType

	// SecretsKeyAlgorithm is the symmetric algorithm of the vault key.
	SecretsKeyAlgorithm KeyAlgorithm

	// Primary holds the file names of the primary-server stores.
	Primary StoreNames

	// Search holds the file names of the search-service stores. These
	// differ between conventions (dot-separated vs hyphen-separated) and
	// downstream consumers expect the exact names.
	Search StoreNames

	// BrowserBundle is the file name of the combined browser store. The
	// bundle is PKCS#12 under both conventions so browsers can import it.
	BrowserBundle string

	// SecretsStore is the file name of the secrets vault container.
	SecretsStore string
}

// Resolve returns the profile for the given convention name.
func Resolve(name string) (*Profile, error) {
	switch name {
	case "classic":
		return &Profile{
			Name:                "classic",
			ManifestRequired:    true,
			KeystoreType:        StoreJKS,
			TruststoreType:      StoreJKS,
			SecretsStoreType:    StoreJCEKSEquivalent,
			SecretsKeyAlgorithm: KeyDESede,
			Primary: StoreNames{
				Keystore:   "keystore.jks",
				Truststore: "truststore.jks",
			},
			Search: StoreNames{
				Keystore:   "search.keystore.jks",
				Truststore: "search.truststore.jks",
			},
			BrowserBundle: "browser.p12",
			SecretsStore:  "secrets.store",
		}, nil

	case "current":
		return &Profile{
			Name:                "current",
			ManifestRequired:    false,
			KeystoreType:        StorePKCS12,
			TruststoreType:      StorePKCS12,
			SecretsStoreType:    StorePKCS12,
			SecretsKeyAlgorithm: KeyAES256,
			Primary: StoreNames{
				Keystore:   "keystore.p12",
				Truststore: "truststore.p12",
			},
			Search: StoreNames{
				Keystore:   "search-keystore.p12",
				Truststore: "search-truststore.p12",
			},
			BrowserBundle: "browser.p12",
			SecretsStore:  "secrets.store",
		}, nil

	default:
		return nil, fmt.Errorf("unknown format profile: %s (expected 'classic' or 'current')", name)
	}
}

// ManifestName returns the manifest file name accompanying a store file.
func ManifestName(storeFile string) string {
	base := storeFile
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			base = base[:i]
			break
		}
	}
	return base + ".properties"
}
