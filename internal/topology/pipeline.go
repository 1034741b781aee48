package topology

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/trustforge/trustforge/internal/audit"
	"github.com/trustforge/trustforge/internal/authority"
	"github.com/trustforge/trustforge/internal/config"
	"github.com/trustforge/trustforge/internal/format"
	"github.com/trustforge/trustforge/internal/keystore"
	"github.com/trustforge/trustforge/internal/vault"
	"github.com/trustforge/trustforge/internal/x509util"
)

// AlreadyInitializedError reports a non-empty output directory.
type AlreadyInitializedError struct {
	Dir string
}

func (e *AlreadyInitializedError) Error() string {
	return fmt.Sprintf("output directory %s is not empty", e.Dir)
}

// Stage names, surfaced in errors and audit events.
const (
	StageAuthority = "authority"
	StagePrimary   = "primary"
	StageSearch    = "search"
	StageBrowser   = "browser"
	StageStores    = "stores"
)

// StageError wraps a failure with the pipeline stage it occurred in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline drives one generation run. The five stages run strictly in
// order; each stage's method consumes the previous stage's typed result,
// so a store can never be assembled before its source material exists.
type Pipeline struct {
	cfg     *config.Config
	profile *format.Profile
	outDir  string
}

// AuthorityReady is the result of the first stage.
type AuthorityReady struct {
	Authority *authority.Authority
}

// PrimaryIssued is the result of the second stage.
type PrimaryIssued struct {
	AuthorityReady
	Primary *authority.Issued
}

// SearchServiceIssued is the result of the third stage.
type SearchServiceIssued struct {
	PrimaryIssued
	Search *authority.Issued
}

// BrowserIssued is the result of the fourth stage.
type BrowserIssued struct {
	SearchServiceIssued
	Browser *authority.Issued
}

// StoresAssembled is the final result: every store written to disk.
type StoresAssembled struct {
	// Stores maps each written store path (relative to the output root)
	// to its aliases in insertion order.
	Stores map[string][]string
}

// New creates a pipeline for the given configuration and output directory.
func New(cfg *config.Config, outDir string) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	profile, err := cfg.ResolveProfile()
	if err != nil {
		return nil, err
	}

	return &Pipeline{cfg: cfg, profile: profile, outDir: outDir}, nil
}

// Profile returns the resolved format profile.
func (p *Pipeline) Profile() *format.Profile {
	return p.profile
}

// Run executes all five stages. Any failure aborts the run immediately;
// the root signing key is discarded on every exit path.
func (p *Pipeline) Run() (*StoresAssembled, error) {
	if err := p.checkOutputDir(); err != nil {
		return nil, err
	}

	ready, err := p.InitAuthority()
	if err != nil {
		return nil, stageErr(StageAuthority, err)
	}
	defer ready.Authority.Discard()

	primary, err := p.IssuePrimary(ready)
	if err != nil {
		return nil, stageErr(StagePrimary, err)
	}

	search, err := p.IssueSearch(primary)
	if err != nil {
		return nil, stageErr(StageSearch, err)
	}

	browser, err := p.IssueBrowser(search)
	if err != nil {
		return nil, stageErr(StageBrowser, err)
	}

	assembled, err := p.AssembleStores(browser)
	if err != nil {
		return nil, stageErr(StageStores, err)
	}

	return assembled, nil
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// checkOutputDir enforces the empty-output-directory precondition. The
// directory is created when absent.
func (p *Pipeline) checkOutputDir() error {
	f, err := os.Open(p.outDir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(p.outDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open output directory: %w", err)
	}
	defer func() { _ = f.Close() }()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}
	return &AlreadyInitializedError{Dir: p.outDir}
}

// InitAuthority creates the root authority and emits its certificate to
// the working certificates directory.
func (p *Pipeline) InitAuthority() (*AuthorityReady, error) {
	a, err := authority.Initialize(authority.Config{
		SubjectDN:    p.cfg.Subjects.Authority,
		DNSName:      p.cfg.DNS.Authority,
		KeySize:      p.cfg.KeySize,
		ValidityDays: p.cfg.ValidityDays,
	})
	if err != nil {
		return nil, err
	}

	if err := p.emitCert("root-ca", a.Certificate(), a.Key()); err != nil {
		return nil, err
	}

	if err := audit.LogAuthorityCreated(a.Certificate().Subject.String(),
		fmt.Sprintf("rsa-%d", p.cfg.KeySize)); err != nil {
		return nil, err
	}

	return &AuthorityReady{Authority: a}, nil
}

// IssuePrimary issues the primary server identity.
func (p *Pipeline) IssuePrimary(prev *AuthorityReady) (*PrimaryIssued, error) {
	issued, err := p.issue(prev.Authority, "primary", authority.Request{
		SubjectDN: p.cfg.Subjects.Primary,
		DNSName:   p.cfg.DNS.Primary,
		KeySize:   p.cfg.KeySize,
	}, authority.ServerClientAuth)
	if err != nil {
		return nil, err
	}
	return &PrimaryIssued{AuthorityReady: *prev, Primary: issued}, nil
}

// IssueSearch issues the search service identity.
func (p *Pipeline) IssueSearch(prev *PrimaryIssued) (*SearchServiceIssued, error) {
	issued, err := p.issue(prev.Authority, "search", authority.Request{
		SubjectDN: p.cfg.Subjects.Search,
		DNSName:   p.cfg.DNS.Search,
		KeySize:   p.cfg.KeySize,
	}, authority.ServerClientAuth)
	if err != nil {
		return nil, err
	}
	return &SearchServiceIssued{PrimaryIssued: *prev, Search: issued}, nil
}

// IssueBrowser issues the browser identity, client authentication only.
func (p *Pipeline) IssueBrowser(prev *SearchServiceIssued) (*BrowserIssued, error) {
	issued, err := p.issue(prev.Authority, "browser", authority.Request{
		SubjectDN: p.cfg.Subjects.Browser,
		KeySize:   p.cfg.KeySize,
	}, authority.ClientAuthOnly)
	if err != nil {
		return nil, err
	}
	return &BrowserIssued{SearchServiceIssued: *prev, Browser: issued}, nil
}

func (p *Pipeline) issue(a *authority.Authority, name string, req authority.Request, profile authority.ExtensionProfile) (*authority.Issued, error) {
	issued, err := authority.Issue(a, req, profile)
	if err != nil {
		return nil, err
	}

	if err := p.emitCert(name, issued.Certificate, issued.Key); err != nil {
		return nil, err
	}

	if err := audit.LogCertIssued(
		fmt.Sprintf("0x%X", issued.Certificate.SerialNumber),
		issued.Certificate.Subject.String(),
		string(profile),
	); err != nil {
		return nil, err
	}

	return issued, nil
}

// emitCert writes a certificate (and key, when present) as individual PEM
// files into the working certificates directory.
func (p *Pipeline) emitCert(name string, cert *x509.Certificate, key any) error {
	dir := filepath.Join(p.outDir, DirCerts)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create certificates directory: %w", err)
	}

	if err := x509util.SaveCertPEM(filepath.Join(dir, name+".pem"), cert); err != nil {
		return err
	}

	if key != nil {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return fmt.Errorf("failed to marshal %s key: %w", name, err)
		}
		defer x509util.Wipe(der)

		if err := x509util.SaveKeyPEM(filepath.Join(dir, name+".key"), der); err != nil {
			return err
		}
	}

	return nil
}

// AssembleStores realizes the trust map: every participant store, the
// analytics copies, the browser bundle, the secrets vault, and the run
// summary.
func (p *Pipeline) AssembleStores(prev *BrowserIssued) (*StoresAssembled, error) {
	result := &StoresAssembled{Stores: make(map[string][]string)}

	for _, spec := range Plan(p.profile, p.cfg.Edition) {
		if spec.CopyOf != "" {
			if err := p.copyStore(spec, result); err != nil {
				return nil, err
			}
			continue
		}

		entries, err := p.materialize(prev, spec)
		if err != nil {
			return nil, err
		}

		store, err := keystore.Assemble(spec.Path, spec.Kind, spec.Type, p.storePassword(spec.Kind), entries)
		if err != nil {
			return nil, err
		}

		path := filepath.Join(p.outDir, spec.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		if err := store.WriteFile(path); err != nil {
			return nil, err
		}

		if p.profile.ManifestRequired {
			if err := store.WriteManifest(filepath.Join(p.outDir, format.ManifestName(spec.Path))); err != nil {
				return nil, err
			}
		}

		if err := audit.LogStoreAssembled(spec.Path, strings.Join(store.Aliases(), ",")); err != nil {
			return nil, err
		}
		result.Stores[spec.Path] = store.Aliases()
	}

	if err := p.sealVault(result); err != nil {
		return nil, err
	}

	if err := p.writeSummary(prev, result); err != nil {
		return nil, err
	}

	return result, nil
}

func (p *Pipeline) storePassword(kind keystore.Kind) string {
	if kind == keystore.KindTruststore {
		return p.cfg.Passwords.Truststore
	}
	return p.cfg.Passwords.Keystore
}

// materialize resolves a store spec's sources against the issued material.
func (p *Pipeline) materialize(m *BrowserIssued, spec StoreSpec) ([]keystore.Entry, error) {
	root := m.Authority.Certificate()
	keyPassword := p.cfg.LeafKeyPassword()

	entries := make([]keystore.Entry, 0, len(spec.Entries))
	for _, es := range spec.Entries {
		var material keystore.Material
		password := p.storePassword(spec.Kind)

		switch es.Source {
		case SourceRootCert:
			material = keystore.CertMaterial(root)
		case SourcePrimaryCert:
			material = keystore.CertMaterial(m.Primary.Certificate)
		case SourceSearchCert:
			material = keystore.CertMaterial(m.Search.Certificate)
		case SourcePrimaryIdentity:
			material = keystore.KeyMaterial(m.Primary.Certificate, m.Primary.Key, root)
			password = keyPassword
		case SourceSearchIdentity:
			material = keystore.KeyMaterial(m.Search.Certificate, m.Search.Key, root)
			password = keyPassword
		case SourceBrowserIdentity:
			material = keystore.KeyMaterial(m.Browser.Certificate, m.Browser.Key, root)
			password = keyPassword
		default:
			return nil, fmt.Errorf("store %q: unknown source %q", spec.Path, es.Source)
		}

		entries = append(entries, keystore.Entry{Alias: es.Alias, Material: material, Password: password})
	}
	return entries, nil
}

// copyStore realizes an analytics spec as a verbatim byte copy of the
// already-written search store, manifest included.
func (p *Pipeline) copyStore(spec StoreSpec, result *StoresAssembled) error {
	aliases, ok := result.Stores[spec.CopyOf]
	if !ok {
		return fmt.Errorf("store %q: copy source %q has not been assembled", spec.Path, spec.CopyOf)
	}

	dst := filepath.Join(p.outDir, spec.Path)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	if err := copyFile(filepath.Join(p.outDir, spec.CopyOf), dst); err != nil {
		return fmt.Errorf("store %q: %w", spec.Path, err)
	}

	if p.profile.ManifestRequired {
		src := filepath.Join(p.outDir, format.ManifestName(spec.CopyOf))
		if err := copyFile(src, filepath.Join(p.outDir, format.ManifestName(spec.Path))); err != nil {
			return fmt.Errorf("store %q: %w", spec.Path, err)
		}
	}

	if err := audit.LogStoreAssembled(spec.Path, strings.Join(aliases, ",")); err != nil {
		return err
	}
	result.Stores[spec.Path] = aliases
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0600)
}

// sealVault generates and seals the metadata-protection key.
func (p *Pipeline) sealVault(result *StoresAssembled) error {
	v, err := vault.Generate(p.profile)
	if err != nil {
		return err
	}

	dir := filepath.Join(p.outDir, DirSecrets)
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.Discard()
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}

	relPath := filepath.Join(DirSecrets, p.profile.SecretsStore)
	if err := v.Seal(filepath.Join(p.outDir, relPath), p.cfg.Passwords.SecretsStore, p.cfg.Passwords.SecretsKey); err != nil {
		return err
	}

	if p.profile.ManifestRequired {
		manifest := fmt.Sprintf("aliases=%s\nkeystore.password=%s\n%s.password=%s\n",
			vault.KeyAlias, p.cfg.Passwords.SecretsStore, vault.KeyAlias, p.cfg.Passwords.SecretsKey)
		if err := os.WriteFile(filepath.Join(p.outDir, format.ManifestName(relPath)), []byte(manifest), 0600); err != nil {
			return fmt.Errorf("failed to write vault manifest: %w", err)
		}
	}

	if err := audit.LogVaultSealed(relPath, string(p.profile.SecretsKeyAlgorithm)); err != nil {
		return err
	}
	result.Stores[relPath] = []string{vault.KeyAlias}
	return nil
}

// summary is the machine-readable run inventory written to trustgraph.yaml.
type summary struct {
	Profile string         `yaml:"profile"`
	Edition string         `yaml:"edition"`
	Stores  []summaryStore `yaml:"stores"`
}

type summaryStore struct {
	Path         string            `yaml:"path"`
	Aliases      []string          `yaml:"aliases"`
	Fingerprints map[string]string `yaml:"fingerprints,omitempty"`
}

func (p *Pipeline) writeSummary(m *BrowserIssued, result *StoresAssembled) error {
	fingerprints := map[string]string{
		AliasRoot:    fingerprint(m.Authority.Certificate()),
		AliasPrimary: fingerprint(m.Primary.Certificate),
		AliasSearch:  fingerprint(m.Search.Certificate),
		AliasBrowser: fingerprint(m.Browser.Certificate),
	}

	s := summary{
		Profile: p.profile.Name,
		Edition: string(p.cfg.Edition),
	}
	for _, spec := range Plan(p.profile, p.cfg.Edition) {
		aliases := result.Stores[spec.Path]
		fps := make(map[string]string, len(aliases))
		for _, alias := range aliases {
			if fp, ok := fingerprints[alias]; ok {
				fps[alias] = fp
			}
		}
		s.Stores = append(s.Stores, summaryStore{Path: spec.Path, Aliases: aliases, Fingerprints: fps})
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.outDir, "trustgraph.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}

func fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}
