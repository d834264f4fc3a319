// Package main provides the ucmctl CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/ucm/pkg/portable"
	"github.com/orneryd/ucm/pkg/ucm"
	"github.com/orneryd/ucm/pkg/ucmconfig"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ucmctl",
		Short: "ucmctl - verification tool for Unified Content Model documents",
		Long: `ucmctl drives the UCM engine's validation, fingerprint, and
portable-document round-trip over a document stored on disk as JSON. It is
not a server and does not parse the UCL operation language; it exists to
exercise and verify an already-produced PortableDocument file.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ucmctl v%s (%s)\n", version, commit)
		},
	})

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Run the validation pipeline over a portable document",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	rootCmd.AddCommand(validateCmd)

	fingerprintCmd := &cobra.Command{
		Use:   "fingerprint [file]",
		Short: "Print a portable document's canonical fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE:  runFingerprint,
	}
	rootCmd.AddCommand(fingerprintCmd)

	roundtripCmd := &cobra.Command{
		Use:   "snapshot-roundtrip [file]",
		Short: "Decode, re-encode, and confirm a portable document's fingerprint is unchanged",
		Args:  cobra.ExactArgs(1),
		RunE:  runRoundtrip,
	}
	rootCmd.AddCommand(roundtripCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadPortable(path string) (*portable.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc portable.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &doc, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	wire, err := loadPortable(args[0])
	if err != nil {
		return err
	}
	doc, err := wire.ToDocument()
	if err != nil {
		return fmt.Errorf("document fails invariants: %w", err)
	}

	cfg := ucmconfig.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	pipeline := ucm.NewValidationPipeline()
	result := pipeline.Validate(doc, cfg.Bounds())
	for _, d := range result.Diagnostics {
		fmt.Printf("[%s] %s: %s\n", d.Severity, d.Code, d.Message)
	}
	if !result.Valid {
		return fmt.Errorf("document is invalid")
	}
	fmt.Println("document is valid")
	return nil
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	wire, err := loadPortable(args[0])
	if err != nil {
		return err
	}
	doc, err := wire.ToDocument()
	if err != nil {
		return fmt.Errorf("document fails invariants: %w", err)
	}
	fmt.Println(ucm.Fingerprint(doc))
	return nil
}

func runRoundtrip(cmd *cobra.Command, args []string) error {
	wire, err := loadPortable(args[0])
	if err != nil {
		return err
	}
	doc, err := wire.ToDocument()
	if err != nil {
		return fmt.Errorf("document fails invariants: %w", err)
	}
	before := ucm.Fingerprint(doc)

	reencoded, err := portable.FromDocument(doc)
	if err != nil {
		return fmt.Errorf("re-encoding document: %w", err)
	}
	rebuilt, err := reencoded.ToDocument()
	if err != nil {
		return fmt.Errorf("rebuilt document fails invariants: %w", err)
	}
	after := ucm.Fingerprint(rebuilt)

	if before != after {
		return fmt.Errorf("round-trip changed the fingerprint: %s != %s", before, after)
	}
	fmt.Printf("round-trip stable: %s\n", before)
	return nil
}
