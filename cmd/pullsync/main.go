// Package main provides the CLI entry point for the Pullsync runtime.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pullsync/runtime/internal/config"
	"github.com/pullsync/runtime/internal/database"
	"github.com/pullsync/runtime/internal/logger"
	"github.com/pullsync/runtime/internal/runtime"
	"github.com/pullsync/runtime/internal/store"
	"github.com/pullsync/runtime/pkg/pull"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitValidationError = 1
	ExitParseError      = 2
	ExitRuntimeError    = 3
)

var (
	// Global flags
	verbose bool
	quiet   bool

	// Run command flags
	startTime     string
	ignoreDeleted bool
	maxItems      int
	updateFields  []string
	dryRun        bool

	// Build information (set via ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitRuntimeError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pullsync",
	Short: "Pullsync - Incremental SaaS record puller",
	Long: `Pullsync pulls tickets, articles, and issues from SaaS support systems
incrementally, anonymizes personal data in transit, and upserts the
results into a relational store.

Examples:
  # Validate a configuration file
  pullsync validate pull.yaml

  # Run a pull
  pullsync run pull.yaml

  # Re-pull the last two days regardless of the stored watermark
  pullsync run --start-time 2026-08-27T00:00:00Z pull.yaml`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Configure logger level based on flags
		if verbose {
			logger.SetLevel(slog.LevelDebug)
		} else if quiet {
			logger.SetLevel(slog.LevelError)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Validate a pull configuration file",
	Long: `Validate a pull configuration file against the schema.

Supports both YAML and JSON formats.

Exit codes:
  0 - Configuration is valid
  1 - Validation errors (schema violations)
  2 - Parse errors (invalid YAML/JSON syntax)`,
	Args: cobra.ExactArgs(1),
	Run:  runValidate,
}

var runCmd = &cobra.Command{
	Use:   "run <config-file>",
	Short: "Run a pull from configuration file",
	Long: `Run an incremental pull defined in the configuration file.

The configuration file is first validated against the schema.
If validation fails, the pull will not start.

Exit codes:
  0 - Pull completed (individual sources may still have failed; see output)
  1 - Validation errors
  2 - Parse errors
  3 - Runtime errors (target store unreachable, watermark unreadable)`,
	Args: cobra.ExactArgs(1),
	Run:  runPull,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version, commit hash, and build date information.",
	Run:   runVersion,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")

	// Run command flags
	runCmd.Flags().StringVar(&startTime, "start-time", "", "Override the window start (RFC 3339); skips the stored watermark")
	runCmd.Flags().BoolVar(&ignoreDeleted, "ignore-deleted", false, "Skip upstream deletion handling")
	runCmd.Flags().IntVar(&maxItems, "max-items", 0, "Cap items pulled per source (0 = unlimited)")
	runCmd.Flags().StringSliceVar(&updateFields, "update-fields", nil, "Restrict which fields capable adapters re-pull")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Pull and transform without writing or advancing the watermark")

	// Add commands
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func runValidate(_ *cobra.Command, args []string) {
	configPath := args[0]

	if !quiet {
		fmt.Printf("Validating configuration: %s\n", configPath)
	}

	result := config.ParseConfig(configPath)

	if len(result.ParseErrors) > 0 {
		printParseErrors(result.ParseErrors)
		os.Exit(ExitParseError)
	}
	if len(result.ValidationErrors) > 0 {
		printValidationErrors(result.ValidationErrors)
		os.Exit(ExitValidationError)
	}

	if !quiet {
		fmt.Println("✓ Configuration is valid")

		if verbose {
			if retrieverList, ok := result.Data["Retrievers"].([]interface{}); ok {
				fmt.Printf("  Sources: %d\n", len(retrieverList))
				for _, raw := range retrieverList {
					if entry, ok := raw.(map[string]interface{}); ok {
						fmt.Printf("    %v (%v)\n", entry["source_name"], entry["type"])
					}
				}
			}
		}
	}

	os.Exit(ExitSuccess)
}

func runPull(_ *cobra.Command, args []string) {
	configPath := args[0]

	if !quiet {
		fmt.Printf("Loading pull configuration: %s\n", configPath)
	}

	result := config.ParseConfig(configPath)

	if len(result.ParseErrors) > 0 {
		printParseErrors(result.ParseErrors)
		os.Exit(ExitParseError)
	}
	if len(result.ValidationErrors) > 0 {
		printValidationErrors(result.ValidationErrors)
		os.Exit(ExitValidationError)
	}

	cfg, err := config.Convert(result.Data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to convert configuration: %v\n", err)
		os.Exit(ExitRuntimeError)
	}

	opts, err := buildOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(ExitValidationError)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, database.Config{
		Driver: cfg.Target.Driver,
		DSN:    cfg.Target.DSN,
	}, cfg.Target.Table)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to open target store: %v\n", err)
		os.Exit(ExitRuntimeError)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to prepare target schema: %v\n", err)
		os.Exit(ExitRuntimeError)
	}

	if !quiet {
		if opts.DryRun {
			fmt.Println("Executing pull (dry-run mode - nothing will be written)...")
		} else {
			fmt.Println("Executing pull...")
		}
	}

	runResult, err := runtime.New(cfg, st, opts).Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Pull aborted: %v\n", err)
		os.Exit(ExitRuntimeError)
	}

	printRunResult(runResult)
	os.Exit(ExitSuccess)
}

// buildOptions converts run command flags into pipeline options.
func buildOptions() (runtime.Options, error) {
	opts := runtime.Options{
		IgnoreDeleted: ignoreDeleted,
		MaxItems:      maxItems,
		UpdateFields:  updateFields,
		DryRun:        dryRun,
	}
	if startTime != "" {
		t, err := time.Parse(time.RFC3339, startTime)
		if err != nil {
			return opts, fmt.Errorf("invalid --start-time %q: expected RFC 3339 timestamp", startTime)
		}
		opts.StartTime = &t
	}
	return opts, nil
}

func runVersion(_ *cobra.Command, _ []string) {
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// printParseErrors prints parse errors to stderr.
func printParseErrors(errs []config.ParseError) {
	fmt.Fprintf(os.Stderr, "✗ Parse errors:\n")
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  %s\n", e.Error())
	}
}

// printValidationErrors prints validation errors to stderr.
func printValidationErrors(errs []config.ValidationError) {
	fmt.Fprintf(os.Stderr, "✗ Validation errors:\n")
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  %s\n", e.Error())
	}
}

// printRunResult prints the per-source summary of a completed run.
func printRunResult(result *pull.RunResult) {
	if quiet {
		return
	}

	fmt.Printf("\nPull completed in %s (since %s, generation %d)\n",
		result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond),
		result.Since.Format(time.RFC3339),
		result.DataUpdateID)

	for _, src := range result.Sources {
		mark := "✓"
		if src.Status == pull.StatusFailed || src.Status == pull.StatusPartial {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %-20s %-8s %d written, %d failed",
			mark, src.Source, src.Status, src.Succeeded, src.Failed)
		if src.Filtered > 0 {
			line += fmt.Sprintf(", %d filtered", src.Filtered)
		}
		if src.Deleted > 0 {
			line += fmt.Sprintf(", %d marked deleted", src.Deleted)
		}
		if src.Error != nil {
			line += " (" + src.Error.Message + ")"
		}
		fmt.Println(line)
	}

	summary := fmt.Sprintf("Total: %d written, %d failed", result.Succeeded, result.Failed)
	if !result.WatermarkCommitted {
		summary += " - watermark NOT advanced"
	}
	fmt.Println(summary)
}
