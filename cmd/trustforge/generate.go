package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/trustforge/trustforge/internal/audit"
	"github.com/trustforge/trustforge/internal/cli"
	"github.com/trustforge/trustforge/internal/config"
	"github.com/trustforge/trustforge/internal/format"
	"github.com/trustforge/trustforge/internal/topology"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the trust chain and material stores",
	Long: `Generate the full trust chain and per-participant material stores.

The run is strictly ordered: the root authority is created first, then the
primary, search-service and browser identities are issued against it, then
every store is assembled. Any failure aborts the run. The output directory
must be empty.

Output layout:
  {out}/
    primary/     keystore + truststore (+ manifests under classic)
    search/      keystore + truststore under format-specific names
    analytics/   byte-identical copies of the search stores (enterprise)
    client/      combined browser bundle (PKCS#12)
    secrets/     sealed metadata-protection key
    certs/       every certificate and key as individual PEM files
    trustgraph.yaml

Examples:
  # Current convention, community edition
  trustforge generate --out ./tls

  # Enterprise, classic convention, custom names
  trustforge generate --out ./tls --format classic --edition enterprise \
    --primary-dns repo.local --search-dns search.local`,
	RunE: runGenerate,
}

var (
	genOut        string
	genConfigPath string
	genEdition    string
	genFormat     string
	genKeySize    int
	genPrimaryDNS string
	genSearchDNS  string
)

func init() {
	generateCmd.Flags().StringVar(&genOut, "out", "", "Output directory (required, must be empty)")
	generateCmd.Flags().StringVar(&genConfigPath, "config", "", "YAML configuration file")
	generateCmd.Flags().StringVar(&genEdition, "edition", "", "Deployment edition: community or enterprise")
	generateCmd.Flags().StringVar(&genFormat, "format", "", "Format profile: classic or current")
	generateCmd.Flags().IntVar(&genKeySize, "key-size", 0, "RSA key size in bits")
	generateCmd.Flags().StringVar(&genPrimaryDNS, "primary-dns", "", "Primary server DNS name")
	generateCmd.Flags().StringVar(&genSearchDNS, "search-dns", "", "Search service DNS name")
	_ = generateCmd.MarkFlagRequired("out")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadGenerateConfig()
	if err != nil {
		return err
	}

	pipeline, err := topology.New(cfg, genOut)
	if err != nil {
		return err
	}

	profile := pipeline.Profile()
	cli.Infof("format profile: %s, edition: %s", profile.Name, cfg.Edition)

	result, err := pipeline.Run()
	if err != nil {
		_ = audit.LogRunFailed(genOut, stageOf(err), err.Error())

		var initErr *topology.AlreadyInitializedError
		if errors.As(err, &initErr) {
			return fmt.Errorf("%w (remove its contents or choose another directory)", initErr)
		}
		return err
	}

	paths := make([]string, 0, len(result.Stores))
	for path := range result.Stores {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		cli.Infof("wrote %s", path)
	}

	if err := audit.LogRunCompleted(genOut, profile.Name, string(cfg.Edition)); err != nil {
		return err
	}

	cli.Successf("trust chain generated in %s", genOut)
	return nil
}

// loadGenerateConfig merges the config file (or defaults) with flag
// overrides.
func loadGenerateConfig() (*config.Config, error) {
	cfg := config.Default()
	if genConfigPath != "" {
		loaded, err := config.Load(genConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if genEdition != "" {
		cfg.Edition = format.Edition(genEdition)
	}
	if genFormat != "" {
		cfg.FormatProfile = genFormat
	}
	if genKeySize != 0 {
		cfg.KeySize = genKeySize
	}
	if genPrimaryDNS != "" {
		cfg.DNS.Primary = genPrimaryDNS
	}
	if genSearchDNS != "" {
		cfg.DNS.Search = genSearchDNS
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stageOf extracts the pipeline stage from a run error for the audit log.
func stageOf(err error) string {
	var stageErr *topology.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return "precondition"
}
