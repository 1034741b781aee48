// Command trustforge generates the mutual-TLS trust material for a
// deployment: one self-signed root authority, leaf certificates for the
// primary server, search service and browser, and the per-participant
// keystores and truststores assembled from them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trustforge/trustforge/internal/audit"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var auditLogPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trustforge",
	Short: "trustforge - mutual-TLS trust chain generator",
	Long: `trustforge builds a closed chain of trust for mutual TLS between a
primary server, its search service, an optional analytics client, and an
end-user browser.

One run mints a self-signed root authority, issues a leaf certificate per
participant, and assembles the keystores and truststores each participant
needs, under either the classic (JKS + manifests) or the current (PKCS#12)
output convention. A deployment-wide metadata-protection key is sealed into
its own secrets vault.

Examples:
  # Generate with defaults (current convention, community edition)
  trustforge generate --out ./tls

  # Enterprise deployment with explicit DNS names
  trustforge generate --out ./tls --edition enterprise \
    --primary-dns repo.local --search-dns search.local

  # Classic convention from a config file
  trustforge generate --out ./tls --config trustforge.yaml --format classic

  # Inspect a generated output tree
  trustforge inspect --dir ./tls`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Check for audit log path from environment if not set via flag
		if auditLogPath == "" {
			auditLogPath = os.Getenv("TRUSTFORGE_AUDIT_LOG")
		}

		if auditLogPath != "" {
			if err := audit.InitFile(auditLogPath); err != nil {
				return fmt.Errorf("failed to initialize audit log: %w", err)
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return audit.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file (or set TRUSTFORGE_AUDIT_LOG env var)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(auditCmd)
}
