package topology

import (
	"testing"

	"github.com/trustforge/trustforge/internal/format"
	"github.com/trustforge/trustforge/internal/keystore"
)

// =============================================================================
// Store Plan Unit Tests
// =============================================================================

func planProfile(t *testing.T, name string) *format.Profile {
	t.Helper()

	p, err := format.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve(%s) error = %v", name, err)
	}
	return p
}

func findSpec(t *testing.T, plan []StoreSpec, path string) StoreSpec {
	t.Helper()

	for _, spec := range plan {
		if spec.Path == path {
			return spec
		}
	}
	t.Fatalf("plan has no store %q", path)
	return StoreSpec{}
}

func assertEntries(t *testing.T, spec StoreSpec, want []EntrySpec) {
	t.Helper()

	if len(spec.Entries) != len(want) {
		t.Fatalf("store %q entries = %+v, want %+v", spec.Path, spec.Entries, want)
	}
	for i := range want {
		if spec.Entries[i] != want[i] {
			t.Errorf("store %q entry %d = %+v, want %+v", spec.Path, i, spec.Entries[i], want[i])
		}
	}
}

func TestU_Plan_Community(t *testing.T) {
	plan := Plan(planProfile(t, "current"), format.EditionCommunity)

	if len(plan) != 5 {
		t.Fatalf("plan has %d stores, want 5", len(plan))
	}

	primaryTrust := findSpec(t, plan, "primary/truststore.p12")
	if primaryTrust.Kind != keystore.KindTruststore {
		t.Errorf("primary truststore kind = %s", primaryTrust.Kind)
	}
	assertEntries(t, primaryTrust, []EntrySpec{
		{Alias: AliasRoot, Source: SourceRootCert},
		{Alias: AliasSearch, Source: SourceSearchCert},
	})

	primaryKey := findSpec(t, plan, "primary/keystore.p12")
	if primaryKey.Kind != keystore.KindKeystore {
		t.Errorf("primary keystore kind = %s", primaryKey.Kind)
	}
	assertEntries(t, primaryKey, []EntrySpec{
		{Alias: AliasRoot, Source: SourceRootCert},
		{Alias: AliasPrimary, Source: SourcePrimaryIdentity},
	})

	searchTrust := findSpec(t, plan, "search/search-truststore.p12")
	assertEntries(t, searchTrust, []EntrySpec{
		{Alias: AliasRoot, Source: SourceRootCert},
		{Alias: AliasPrimary, Source: SourcePrimaryCert},
		{Alias: AliasSearch, Source: SourceSearchCert},
	})

	searchKey := findSpec(t, plan, "search/search-keystore.p12")
	assertEntries(t, searchKey, []EntrySpec{
		{Alias: AliasRoot, Source: SourceRootCert},
		{Alias: AliasSearch, Source: SourceSearchIdentity},
	})

	browser := findSpec(t, plan, "client/browser.p12")
	if browser.Type != format.StorePKCS12 {
		t.Errorf("browser bundle type = %s, want pkcs12", browser.Type)
	}
	assertEntries(t, browser, []EntrySpec{
		{Alias: AliasBrowser, Source: SourceBrowserIdentity},
		{Alias: AliasRoot, Source: SourceRootCert},
	})
}

func TestU_Plan_Enterprise(t *testing.T) {
	plan := Plan(planProfile(t, "current"), format.EditionEnterprise)

	if len(plan) != 7 {
		t.Fatalf("plan has %d stores, want 7", len(plan))
	}

	analyticsTrust := findSpec(t, plan, "analytics/search-truststore.p12")
	if analyticsTrust.CopyOf != "search/search-truststore.p12" {
		t.Errorf("analytics truststore CopyOf = %q", analyticsTrust.CopyOf)
	}
	analyticsKey := findSpec(t, plan, "analytics/search-keystore.p12")
	if analyticsKey.CopyOf != "search/search-keystore.p12" {
		t.Errorf("analytics keystore CopyOf = %q", analyticsKey.CopyOf)
	}
}

func TestU_Plan_ClassicNames(t *testing.T) {
	plan := Plan(planProfile(t, "classic"), format.EditionCommunity)

	wantPaths := []string{
		"primary/truststore.jks",
		"primary/keystore.jks",
		"search/search.truststore.jks",
		"search/search.keystore.jks",
		"client/browser.p12",
	}
	for _, path := range wantPaths {
		findSpec(t, plan, path)
	}

	// Browser bundle stays PKCS#12 under the classic convention too.
	browser := findSpec(t, plan, "client/browser.p12")
	if browser.Type != format.StorePKCS12 {
		t.Errorf("browser bundle type = %s, want pkcs12", browser.Type)
	}
}

func TestU_Plan_StoreTypeOverride(t *testing.T) {
	p := planProfile(t, "classic")
	p.TruststoreType = format.StorePKCS12

	plan := Plan(p, format.EditionCommunity)

	if got := findSpec(t, plan, "primary/truststore.jks").Type; got != format.StorePKCS12 {
		t.Errorf("truststore type = %s, want pkcs12 override", got)
	}
	if got := findSpec(t, plan, "primary/keystore.jks").Type; got != format.StoreJKS {
		t.Errorf("keystore type = %s, want jks", got)
	}
}
