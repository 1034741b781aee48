package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trustforge/trustforge/internal/cli"
	"github.com/trustforge/trustforge/internal/topology"
	"github.com/trustforge/trustforge/internal/x509util"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect a generated output tree",
	Long: `Inspect a generated output tree.

Reads the run summary and the working certificates directory, prints each
certificate, and verifies that every leaf certificate chains to the root
authority.

Examples:
  trustforge inspect --dir ./tls`,
	RunE: runInspect,
}

var inspectDir string

func init() {
	inspectCmd.Flags().StringVar(&inspectDir, "dir", "", "Generated output directory (required)")
	_ = inspectCmd.MarkFlagRequired("dir")
}

func runInspect(cmd *cobra.Command, args []string) error {
	root, err := x509util.LoadCertPEM(filepath.Join(inspectDir, topology.DirCerts, "root-ca.pem"))
	if err != nil {
		return fmt.Errorf("failed to load root certificate: %w", err)
	}
	cli.PrintCertSummary(os.Stdout, "Root authority", root)

	for _, leaf := range []struct{ label, file string }{
		{"Primary server", "primary.pem"},
		{"Search service", "search.pem"},
		{"Browser client", "browser.pem"},
	} {
		cert, err := x509util.LoadCertPEM(filepath.Join(inspectDir, topology.DirCerts, leaf.file))
		if err != nil {
			return fmt.Errorf("failed to load %s certificate: %w", leaf.label, err)
		}
		cli.PrintCertSummary(os.Stdout, leaf.label, cert)

		if err := cert.CheckSignatureFrom(root); err != nil {
			return fmt.Errorf("%s certificate does not verify against the root: %w", leaf.label, err)
		}
	}
	cli.Successf("all leaf certificates verify against the root authority")

	return printSummary(filepath.Join(inspectDir, "trustgraph.yaml"))
}

// printSummary lists the stores and aliases recorded in the run summary.
func printSummary(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read run summary: %w", err)
	}

	var s struct {
		Profile string `yaml:"profile"`
		Edition string `yaml:"edition"`
		Stores  []struct {
			Path    string   `yaml:"path"`
			Aliases []string `yaml:"aliases"`
		} `yaml:"stores"`
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse run summary: %w", err)
	}

	fmt.Printf("Profile: %s, edition: %s\n", s.Profile, s.Edition)
	for _, store := range s.Stores {
		fmt.Printf("  %-40s %v\n", store.Path, store.Aliases)
	}
	return nil
}
