// Package config loads and validates the generation run configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/trustforge/trustforge/internal/format"
)

// Passwords holds the store and key passwords for a run.
type Passwords struct {
	// Keystore protects every identity store.
	Keystore string `yaml:"keystore"`

	// Truststore protects every trust store.
	Truststore string `yaml:"truststore"`

	// SecretsStore protects the secrets vault container.
	SecretsStore string `yaml:"secretsStore"`

	// SecretsKey protects the vault key inside the container.
	SecretsKey string `yaml:"secretsKey"`

	// Key optionally protects leaf private keys with a passphrase distinct
	// from the keystore password. Empty means reuse the keystore password.
	Key string `yaml:"key,omitempty"`
}

// Subjects holds the distinguished names of every certificate.
type Subjects struct {
	Authority string `yaml:"authority"`
	Primary   string `yaml:"primary"`
	Search    string `yaml:"search"`
	Browser   string `yaml:"browser"`
}

// DNS holds the subject-alternative DNS names.
type DNS struct {
	Authority string `yaml:"authority"`
	Primary   string `yaml:"primary"`
	Search    string `yaml:"search"`
}

// Config is the full configuration surface of the orchestrator.
type Config struct {
	// Edition enables or disables the analytics-client store copies.
	Edition format.Edition `yaml:"edition"`

	// FormatProfile selects the output convention, "classic" or "current".
	FormatProfile string `yaml:"formatProfile"`

	// KeySize is the RSA modulus size in bits for every generated key.
	KeySize int `yaml:"keySize"`

	// KeystoreType optionally overrides the profile's identity-store
	// encoding ("jks" or "pkcs12").
	KeystoreType string `yaml:"keystoreType,omitempty"`

	// TruststoreType optionally overrides the profile's trust-store
	// encoding.
	TruststoreType string `yaml:"truststoreType,omitempty"`

	// ValidityDays is the authority certificate validity in days. Leaf
	// windows are derived from the authority's.
	ValidityDays int `yaml:"validityDays"`

	Passwords Passwords `yaml:"passwords"`
	Subjects  Subjects  `yaml:"subjects"`
	DNS       DNS       `yaml:"dns"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Edition:       format.EditionCommunity,
		FormatProfile: "current",
		KeySize:       2048,
		ValidityDays:  3650,
		Passwords: Passwords{
			Keystore:     "changeit",
			Truststore:   "changeit",
			SecretsStore: "changeit",
			SecretsKey:   "changeit",
		},
		Subjects: Subjects{
			Authority: "CN=Trustforge Root CA, O=Trustforge",
			Primary:   "CN=Primary Server, O=Trustforge",
			Search:    "CN=Search Service, O=Trustforge",
			Browser:   "CN=Browser Client, O=Trustforge",
		},
		DNS: DNS{
			Authority: "ca.local",
			Primary:   "primary.local",
			Search:    "search.local",
		},
	}
}

// Load reads a YAML configuration file and merges it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return FromBytes(data)
}

// FromBytes parses YAML configuration bytes over the defaults.
func FromBytes(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	if !c.Edition.IsValid() {
		return fmt.Errorf("invalid edition: %s (expected 'community' or 'enterprise')", c.Edition)
	}
	if _, err := format.Resolve(c.FormatProfile); err != nil {
		return err
	}
	if c.KeySize <= 0 {
		return fmt.Errorf("keySize must be positive, got %d", c.KeySize)
	}
	if c.ValidityDays <= 0 {
		return fmt.Errorf("validityDays must be positive, got %d", c.ValidityDays)
	}

	switch c.KeystoreType {
	case "", string(format.StoreJKS), string(format.StorePKCS12):
	default:
		return fmt.Errorf("invalid keystoreType: %s", c.KeystoreType)
	}
	switch c.TruststoreType {
	case "", string(format.StoreJKS), string(format.StorePKCS12):
	default:
		return fmt.Errorf("invalid truststoreType: %s", c.TruststoreType)
	}

	for name, dn := range map[string]string{
		"subjects.authority": c.Subjects.Authority,
		"subjects.primary":   c.Subjects.Primary,
		"subjects.search":    c.Subjects.Search,
		"subjects.browser":   c.Subjects.Browser,
	} {
		if dn == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if c.DNS.Primary == "" || c.DNS.Search == "" {
		return fmt.Errorf("dns.primary and dns.search are required")
	}

	return nil
}

// ResolveProfile resolves the format profile with any store-type overrides
// applied.
func (c *Config) ResolveProfile() (*format.Profile, error) {
	profile, err := format.Resolve(c.FormatProfile)
	if err != nil {
		return nil, err
	}

	if c.KeystoreType != "" {
		profile.KeystoreType = format.StoreType(c.KeystoreType)
	}
	if c.TruststoreType != "" {
		profile.TruststoreType = format.StoreType(c.TruststoreType)
	}
	return profile, nil
}

// LeafKeyPassword returns the passphrase protecting leaf private keys:
// the dedicated key password when configured, the keystore password
// otherwise.
func (c *Config) LeafKeyPassword() string {
	if c.Passwords.Key != "" {
		return c.Passwords.Key
	}
	return c.Passwords.Keystore
}
