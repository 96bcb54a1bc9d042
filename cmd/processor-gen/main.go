package main

import (
	"fmt"
	"os"

	"github.com/longcipher/sui-indexer/internal/codegen"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	name        string
	packageID   string
	events      []string
	output      string
	packageName string
	importPath  string
	force       bool
	dryRun      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "processor-gen",
	Short: "Generate event processors from Move event declarations",
	Long: `processor-gen creates a processor package for sui-indexer from Move event
declarations. It generates typed event models, a registered processor that
decodes them into attributes, tests and a README.`,
	Version: version,
	Example: `  # Generate a lending protocol processor
  processor-gen --name Lending \
    --package-id 0xd899cf7d2b5db716bd2cf55599fb0d5ee38a3061e7b6bb6eebf73fa5bc4c81ca \
    --event "pool::DepositEvent(amount: u64, owner: address, coin_type: 0x1::ascii::String)" \
    --event "pool::BorrowEvent(amount: u64, owner: address)"

  # Preview generation without writing files
  processor-gen --name Lending --package-id 0x2 --event "pool::Paused" --dry-run`,
	RunE:         runGenerate,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&name, "name", "n", "", "processor name (required, e.g., 'Lending' or 'lending_pool')")
	rootCmd.Flags().StringVar(&packageID, "package-id", "", "Move package id the events belong to (required)")
	rootCmd.Flags().StringArrayVarP(&events, "event", "e", []string{},
		"event declaration 'module::Struct(field: type, ...)' (required, can be specified multiple times)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: ./processors/<name_lowercase>)")
	rootCmd.Flags().StringVarP(&packageName, "package", "p", "", "Go package name (default: derived from name)")
	rootCmd.Flags().StringVarP(&importPath, "import", "i", "", "Go import path (default: auto-detected from go.mod)")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing files")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be generated without writing files")

	_ = rootCmd.MarkFlagRequired("name")
	_ = rootCmd.MarkFlagRequired("package-id")
	_ = rootCmd.MarkFlagRequired("event")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	gen := &codegen.Generator{
		Name:       codegen.ToPascalCase(name),
		Package:    packageName,
		PackageID:  packageID,
		Events:     events,
		OutputDir:  output,
		ImportPath: importPath,
		Force:      force,
		DryRun:     dryRun,
	}

	files, err := gen.Generate()
	if err != nil {
		return err
	}

	if !dryRun {
		gen.PrintSummary(files)
	} else {
		fmt.Println("\nDry run complete. No files were created.")
	}

	return nil
}
