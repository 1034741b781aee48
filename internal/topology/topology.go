// Package topology declares which certificates land in which participant's
// stores and drives the generation pipeline that realizes that map.
package topology

import (
	"path/filepath"

	"github.com/trustforge/trustforge/internal/format"
	"github.com/trustforge/trustforge/internal/keystore"
)

// Stable aliases. These are fixed identifiers downstream consumers address
// entries by, not free text chosen per run.
const (
	AliasRoot    = "root-ca"
	AliasPrimary = "primary"
	AliasSearch  = "search"
	AliasBrowser = "browser"
)

// Output subdirectories.
const (
	DirPrimary   = "primary"
	DirSearch    = "search"
	DirAnalytics = "analytics"
	DirClient    = "client"
	DirSecrets   = "secrets"
	DirCerts     = "certs"
)

// Source identifies where an entry's material comes from.
type Source string

const (
	// SourceRootCert is the authority's public certificate.
	SourceRootCert Source = "root-cert"

	// SourcePrimaryCert / SourceSearchCert are bare leaf certificates.
	SourcePrimaryCert Source = "primary-cert"
	SourceSearchCert  Source = "search-cert"

	// SourcePrimaryIdentity, SourceSearchIdentity and SourceBrowserIdentity
	// are leaf certificates together with their private keys and the
	// authority chain.
	SourcePrimaryIdentity Source = "primary-identity"
	SourceSearchIdentity  Source = "search-identity"
	SourceBrowserIdentity Source = "browser-identity"
)

// EntrySpec is one required (alias, source) pair within a store.
type EntrySpec struct {
	Alias  string
	Source Source
}

// StoreSpec is one required store: where it goes, how it is encoded, and
// the ordered entries it must contain. A spec with CopyOf set is realized
// as a verbatim byte copy of an earlier store's files instead of a fresh
// assembly.
type StoreSpec struct {
	// Path is the store file path relative to the output root.
	Path string

	// Kind is keystore or truststore.
	Kind keystore.Kind

	// Type is the encoding family.
	Type format.StoreType

	// Entries is the ordered list of required entries.
	Entries []EntrySpec

	// CopyOf, when set, names the relative path of the store this one
	// must be a byte-identical copy of.
	CopyOf string
}

// Plan returns the full, ordered store map for one run. The table is fixed:
// it depends only on the format profile (file names, encodings) and the
// edition (analytics copies).
func Plan(p *format.Profile, edition format.Edition) []StoreSpec {
	plan := []StoreSpec{
		{
			Path: filepath.Join(DirPrimary, p.Primary.Truststore),
			Kind: keystore.KindTruststore,
			Type: p.TruststoreType,
			Entries: []EntrySpec{
				{Alias: AliasRoot, Source: SourceRootCert},
				{Alias: AliasSearch, Source: SourceSearchCert},
			},
		},
		{
			Path: filepath.Join(DirPrimary, p.Primary.Keystore),
			Kind: keystore.KindKeystore,
			Type: p.KeystoreType,
			Entries: []EntrySpec{
				// Root certificate rides along under its own alias for
				// legacy trust resolution.
				{Alias: AliasRoot, Source: SourceRootCert},
				{Alias: AliasPrimary, Source: SourcePrimaryIdentity},
			},
		},
		{
			Path: filepath.Join(DirSearch, p.Search.Truststore),
			Kind: keystore.KindTruststore,
			Type: p.TruststoreType,
			Entries: []EntrySpec{
				{Alias: AliasRoot, Source: SourceRootCert},
				{Alias: AliasPrimary, Source: SourcePrimaryCert},
				{Alias: AliasSearch, Source: SourceSearchCert},
			},
		},
		{
			Path: filepath.Join(DirSearch, p.Search.Keystore),
			Kind: keystore.KindKeystore,
			Type: p.KeystoreType,
			Entries: []EntrySpec{
				{Alias: AliasRoot, Source: SourceRootCert},
				{Alias: AliasSearch, Source: SourceSearchIdentity},
			},
		},
	}

	if edition == format.EditionEnterprise {
		plan = append(plan,
			StoreSpec{
				Path:   filepath.Join(DirAnalytics, p.Search.Truststore),
				Kind:   keystore.KindTruststore,
				Type:   p.TruststoreType,
				CopyOf: filepath.Join(DirSearch, p.Search.Truststore),
			},
			StoreSpec{
				Path:   filepath.Join(DirAnalytics, p.Search.Keystore),
				Kind:   keystore.KindKeystore,
				Type:   p.KeystoreType,
				CopyOf: filepath.Join(DirSearch, p.Search.Keystore),
			},
		)
	}

	// Browser bundle: one combined store for client-certificate
	// authentication, no separate truststore. PKCS#12 under both
	// conventions so browsers can import it.
	plan = append(plan, StoreSpec{
		Path: filepath.Join(DirClient, p.BrowserBundle),
		Kind: keystore.KindKeystore,
		Type: format.StorePKCS12,
		Entries: []EntrySpec{
			{Alias: AliasBrowser, Source: SourceBrowserIdentity},
			{Alias: AliasRoot, Source: SourceRootCert},
		},
	})

	return plan
}
