package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/trustforge/trustforge/internal/format"
)

// =============================================================================
// Configuration Unit Tests
// =============================================================================

func TestU_Default_IsValid(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() should validate, got %v", err)
	}
	if cfg.Edition != format.EditionCommunity {
		t.Errorf("default edition = %s, want community", cfg.Edition)
	}
	if cfg.FormatProfile != "current" {
		t.Errorf("default profile = %s, want current", cfg.FormatProfile)
	}
	if cfg.Passwords.Keystore != "changeit" {
		t.Errorf("default keystore password = %s", cfg.Passwords.Keystore)
	}
}

func TestU_FromBytes_MergesOverDefaults(t *testing.T) {
	cfg, err := FromBytes([]byte(`
edition: enterprise
formatProfile: classic
passwords:
  keystore: secret1
dns:
  primary: node1.example.com
`))
	if err != nil {
		t.Fatalf("FromBytes() error = %v", err)
	}

	if cfg.Edition != format.EditionEnterprise {
		t.Errorf("edition = %s, want enterprise", cfg.Edition)
	}
	if cfg.FormatProfile != "classic" {
		t.Errorf("profile = %s, want classic", cfg.FormatProfile)
	}
	if cfg.Passwords.Keystore != "secret1" {
		t.Errorf("keystore password = %s, want secret1", cfg.Passwords.Keystore)
	}
	// Untouched fields keep their defaults.
	if cfg.Passwords.Truststore != "changeit" {
		t.Errorf("truststore password = %s, want default", cfg.Passwords.Truststore)
	}
	if cfg.DNS.Primary != "node1.example.com" {
		t.Errorf("dns.primary = %s", cfg.DNS.Primary)
	}
	if cfg.DNS.Search != "search.local" {
		t.Errorf("dns.search = %s, want default", cfg.DNS.Search)
	}
}

func TestU_FromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"[Unit] FromBytes: unknown edition", "edition: trial"},
		{"[Unit] FromBytes: unknown format profile", "formatProfile: legacy"},
		{"[Unit] FromBytes: non-positive key size", "keySize: 0"},
		{"[Unit] FromBytes: non-positive validity", "validityDays: -1"},
		{"[Unit] FromBytes: unknown keystore type", "keystoreType: bks"},
		{"[Unit] FromBytes: empty subject", "subjects:\n  primary: \"\""},
		{"[Unit] FromBytes: empty dns", "dns:\n  search: \"\""},
		{"[Unit] FromBytes: malformed yaml", ": ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromBytes([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestU_Load_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustforge.yaml")
	if err := os.WriteFile(path, []byte("formatProfile: classic\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FormatProfile != "classic" {
		t.Errorf("profile = %s, want classic", cfg.FormatProfile)
	}
}

func TestU_Load_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestU_ResolveProfile_Overrides(t *testing.T) {
	cfg := Default()
	cfg.FormatProfile = "classic"
	cfg.TruststoreType = string(format.StorePKCS12)

	profile, err := cfg.ResolveProfile()
	if err != nil {
		t.Fatalf("ResolveProfile() error = %v", err)
	}
	if profile.KeystoreType != format.StoreJKS {
		t.Errorf("keystore type = %s, want jks", profile.KeystoreType)
	}
	if profile.TruststoreType != format.StorePKCS12 {
		t.Errorf("truststore type = %s, want pkcs12 override", profile.TruststoreType)
	}
}

func TestU_LeafKeyPassword(t *testing.T) {
	cfg := Default()
	if got := cfg.LeafKeyPassword(); got != "changeit" {
		t.Errorf("LeafKeyPassword() = %s, want keystore password", got)
	}

	cfg.Passwords.Key = "leafpw"
	if got := cfg.LeafKeyPassword(); got != "leafpw" {
		t.Errorf("LeafKeyPassword() = %s, want dedicated password", got)
	}
}
