package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"linkreg/internal/checker"
	"linkreg/internal/config"
	"linkreg/internal/db"
	"linkreg/internal/generator"
	"linkreg/internal/importer"
	"linkreg/internal/logging"
	"linkreg/internal/rst"
)

var (
	dbPath     string
	policyPath string
	logLevel   string

	// Build information (injected by GoReleaser)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// FileImportStats tracks statistics for a single file import
type FileImportStats struct {
	Filename        string
	Imported        int // Total processed
	NewEntries      int // Newly inserted
	ExistingEntries int // Already existed
	Skipped         int
	Errors          []string
	Duration        time.Duration
}

// TotalStats tracks overall import statistics
type TotalStats struct {
	FilesProcessed  int
	FilesSkipped    int
	EntriesImported int // Total processed
	NewEntries      int // Newly inserted entries
	ExistingEntries int // Entries that already existed
	EntriesSkipped  int
	TotalErrors     []string
	FileStats       []FileImportStats
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "linkreg",
		Short: "Maintain reStructuredText link-registry files",
		Long:  "A tool for importing, validating and regenerating reST link-registry files: hyperlink targets and substitution definitions shared across documentation pages.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Initialize(logLevel)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "linkreg.db", "path to SQLite database file")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "path to validation policy file (defaults to the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; silent when unset)")

	// Import command
	importCmd := &cobra.Command{
		Use:   "import <file.rst>...",
		Short: "Import link-registry entries from reST files",
		Long:  "Import hyperlink targets and substitution definitions from the given reST files. Comment headers become sections; entries are tagged with their section and target scheme. Invalid entries are skipped and reported.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	rootCmd.AddCommand(importCmd)

	// Check command
	checkCmd := &cobra.Command{
		Use:   "check <file.rst>...",
		Short: "Validate link-registry files",
		Long:  "Validate the given reST files without touching the database: duplicate labels under case-insensitive comparison, empty or scheme-less targets, and malformed lines.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}
	rootCmd.AddCommand(checkCmd)

	// Generate command
	var format string

	generateCmd := &cobra.Command{
		Use:   "generate <output>",
		Short: "Regenerate a registry file from the database",
		Long:  "Regenerate a link-registry file from the database, sections and entries in their stored order. The csv and xlsx formats produce a flat report instead.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, format)
		},
	}
	generateCmd.Flags().StringVar(&format, "format", "rst", "Output format (rst, csv, xlsx)")
	rootCmd.AddCommand(generateCmd)

	// Merge command
	mergeCmd := newMergeCmd()
	rootCmd.AddCommand(mergeCmd)

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("linkreg version %s\n", version)
			fmt.Printf("commit: %s\n", commit)
			fmt.Printf("built at: %s\n", date)
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	policy, err := config.Load(policyPath)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	// Open database
	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	fmt.Printf("Found %d file(s) to import\n", len(args))

	// Track overall statistics
	totalStats := TotalStats{
		TotalErrors: make([]string, 0),
		FileStats:   make([]FileImportStats, 0),
	}

	// Import each registry file
	for _, path := range args {
		// Count entries for display
		entryCount, err := importer.CountEntryLines(path)
		if err != nil {
			fmt.Printf("\nImporting %s...\n", path)
		} else {
			fmt.Printf("\nImporting %s (%d entries)...\n", path, entryCount)
		}

		fileStartTime := time.Now()

		stats, err := importer.ImportFile(database, path, policy)
		if err != nil {
			fmt.Printf("Error importing %s: %v\n", path, err)
			totalStats.FilesSkipped++
			totalStats.TotalErrors = append(totalStats.TotalErrors, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		fileDuration := time.Since(fileStartTime)
		totalStats.FilesProcessed++
		totalStats.EntriesImported += stats.Imported
		totalStats.NewEntries += stats.NewEntries
		totalStats.ExistingEntries += stats.ExistingEntries
		totalStats.EntriesSkipped += stats.Skipped
		totalStats.TotalErrors = append(totalStats.TotalErrors, stats.Errors...)

		totalStats.FileStats = append(totalStats.FileStats, FileImportStats{
			Filename:        filepath.Base(path),
			Imported:        stats.Imported,
			NewEntries:      stats.NewEntries,
			ExistingEntries: stats.ExistingEntries,
			Skipped:         stats.Skipped,
			Errors:          stats.Errors,
			Duration:        fileDuration,
		})
	}

	// Print comprehensive summary report
	totalDuration := time.Since(startTime)
	printSummaryReport(&totalStats, totalDuration, len(args))

	return nil
}

func printSummaryReport(stats *TotalStats, totalDuration time.Duration, totalFiles int) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("IMPORT SUMMARY REPORT")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf("\nOverall Statistics:\n")
	fmt.Printf("  Total Files:           %d\n", totalFiles)
	fmt.Printf("  Files Processed:       %d\n", stats.FilesProcessed)
	fmt.Printf("  Files Skipped:         %d\n", stats.FilesSkipped)
	fmt.Printf("  Entries Processed:     %d\n", stats.EntriesImported)
	if stats.ExistingEntries > 0 {
		fmt.Printf("    - New Entries:       %d\n", stats.NewEntries)
		fmt.Printf("    - Existing Entries:  %d (already in database)\n", stats.ExistingEntries)
	} else {
		fmt.Printf("  New Entries:           %d\n", stats.NewEntries)
	}
	fmt.Printf("  Entries Skipped:       %d\n", stats.EntriesSkipped)
	fmt.Printf("  Total Runtime:         %v\n", totalDuration.Round(time.Millisecond))

	if len(stats.FileStats) > 0 {
		fmt.Printf("\nPer-File Breakdown:\n")
		for _, fileStat := range stats.FileStats {
			fmt.Printf("  %s:\n", fileStat.Filename)
			if fileStat.ExistingEntries > 0 {
				fmt.Printf("    Processed: %d (New: %d, Existing: %d), Skipped: %d, Duration: %v\n",
					fileStat.Imported, fileStat.NewEntries, fileStat.ExistingEntries, fileStat.Skipped, fileStat.Duration.Round(time.Millisecond))
			} else {
				fmt.Printf("    Imported: %d, Skipped: %d, Duration: %v\n",
					fileStat.Imported, fileStat.Skipped, fileStat.Duration.Round(time.Millisecond))
			}
			if len(fileStat.Errors) > 0 {
				fmt.Printf("    Errors: %d\n", len(fileStat.Errors))
			}
		}
	}

	if len(stats.TotalErrors) > 0 {
		fmt.Printf("\nErrors Encountered: %d\n", len(stats.TotalErrors))

		// Create error report file
		timestamp := time.Now().Format("20060102_150405")
		reportFilename := fmt.Sprintf("import_errors_%s.txt", timestamp)

		file, err := os.Create(reportFilename)
		if err != nil {
			fmt.Printf("    Failed to create error report file: %v\n", err)
			// Fallback to printing first 10
			limit := len(stats.TotalErrors)
			if limit > 10 {
				limit = 10
			}
			for _, errStr := range stats.TotalErrors[:limit] {
				fmt.Printf("    - %s\n", errStr)
			}
			if len(stats.TotalErrors) > limit {
				fmt.Printf("    ... and %d more errors\n", len(stats.TotalErrors)-limit)
			}
		} else {
			defer file.Close()

			fmt.Fprintf(file, "IMPORT ERROR REPORT\n")
			fmt.Fprintf(file, "Generated: %s\n", time.Now().Format(time.RFC1123))
			fmt.Fprintf(file, "Total Errors: %d\n\n", len(stats.TotalErrors))

			for _, errStr := range stats.TotalErrors {
				fmt.Fprintf(file, "- %s\n", errStr)
			}

			fmt.Printf("    --> Full error list saved to: %s\n", reportFilename)

			// Still print a few for immediate feedback
			limit := 5
			if len(stats.TotalErrors) < limit {
				limit = len(stats.TotalErrors)
			}
			for i := 0; i < limit; i++ {
				fmt.Printf("    - %s\n", stats.TotalErrors[i])
			}
			if len(stats.TotalErrors) > limit {
				fmt.Printf("    ... (%d more errors in report file)\n", len(stats.TotalErrors)-limit)
			}
		}
	}

	fmt.Println(strings.Repeat("=", 80))
}

func runCheck(cmd *cobra.Command, args []string) error {
	policy, err := config.Load(policyPath)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	total := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		doc, err := rst.Parse(path, string(data))
		if err != nil {
			return err
		}

		findings := checker.Check(doc, policy)
		for _, f := range findings {
			fmt.Printf("%s:%s\n", path, f)
		}
		total += len(findings)
	}

	if total > 0 {
		return fmt.Errorf("%d problem(s) found", total)
	}
	fmt.Printf("Checked %d file(s): no problems found\n", len(args))
	return nil
}

func runGenerate(cmd *cobra.Command, args []string, format string) error {
	outputPath := args[0]

	// Ensure output directory exists
	outputDir := filepath.Dir(outputPath)
	if outputDir != "" && outputDir != "." {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Open database
	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	return generator.GenerateRegistry(database, outputPath, format)
}
