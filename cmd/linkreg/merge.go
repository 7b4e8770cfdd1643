package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"linkreg/internal/rst"
)

var (
	basePath     string
	incomingPath string
)

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge an incoming registry file into a base file",
		Long:  "Append hyperlink targets and substitution definitions from the incoming file to the base file. Incoming labels or substitution names that collide with the base under case-insensitive comparison are written to a conflicts file instead of the merged output.",
		RunE:  runMerge,
	}

	cmd.Flags().StringVar(&basePath, "base", "", "Path to the base registry file")
	cmd.Flags().StringVar(&incomingPath, "incoming", "", "Path to the incoming registry file")
	cmd.MarkFlagRequired("base")
	cmd.MarkFlagRequired("incoming")

	return cmd
}

// mergeStats tracks what happened to each incoming definition
type mergeStats struct {
	processed int
	merged    int
	conflicts int
}

// mergeDocuments appends the incoming document's entries and substitution
// definitions to base. An incoming definition lands in the base section of
// the same title, or a new section when none matches. Labels and
// substitution names that collide with the base under the canonical key
// are routed into the returned conflicts document instead.
func mergeDocuments(baseDoc, incomingDoc *rst.Document) (*rst.Document, mergeStats) {
	var stats mergeStats
	conflictsDoc := &rst.Document{}

	existingLabels := make(map[string]bool)
	existingSubs := make(map[string]bool)
	for _, s := range baseDoc.Sections {
		for _, e := range s.Entries {
			existingLabels[rst.Key(e.Label)] = true
		}
		for _, sub := range s.Substitutions {
			existingSubs[rst.Key(sub.Name)] = true
		}
	}

	// Index base sections by title so incoming definitions land in a
	// matching section when one exists.
	baseSections := make(map[string]*rst.Section)
	for _, s := range baseDoc.Sections {
		if _, ok := baseSections[s.Title]; !ok {
			baseSections[s.Title] = s
		}
	}
	baseSection := func(title string) *rst.Section {
		s, ok := baseSections[title]
		if !ok {
			s = &rst.Section{Title: title}
			baseSections[title] = s
			baseDoc.Sections = append(baseDoc.Sections, s)
		}
		return s
	}

	for _, incoming := range incomingDoc.Sections {
		var conflictSection *rst.Section
		conflict := func() *rst.Section {
			if conflictSection == nil {
				conflictSection = &rst.Section{Title: incoming.Title}
				conflictsDoc.Sections = append(conflictsDoc.Sections, conflictSection)
			}
			return conflictSection
		}

		for _, e := range incoming.Entries {
			stats.processed++
			key := rst.Key(e.Label)
			if existingLabels[key] {
				s := conflict()
				s.Entries = append(s.Entries, e)
				stats.conflicts++
				continue
			}
			s := baseSection(incoming.Title)
			s.Entries = append(s.Entries, e)
			existingLabels[key] = true
			stats.merged++
		}

		for _, sub := range incoming.Substitutions {
			stats.processed++
			key := rst.Key(sub.Name)
			if existingSubs[key] {
				s := conflict()
				s.Substitutions = append(s.Substitutions, sub)
				stats.conflicts++
				continue
			}
			s := baseSection(incoming.Title)
			s.Substitutions = append(s.Substitutions, sub)
			existingSubs[key] = true
			stats.merged++
		}
	}

	return conflictsDoc, stats
}

func runMerge(cmd *cobra.Command, args []string) error {
	// 1. Load the base registry
	fmt.Println("Loading base registry...")
	baseData, err := os.ReadFile(basePath)
	if err != nil {
		return fmt.Errorf("failed to read base file: %w", err)
	}
	baseDoc, err := rst.Parse(basePath, string(baseData))
	if err != nil {
		return fmt.Errorf("failed to parse base file: %w", err)
	}
	fmt.Printf("Loaded %d existing entries.\n", len(baseDoc.Entries()))

	// 2. Load the incoming registry
	fmt.Println("Processing incoming registry...")
	incomingData, err := os.ReadFile(incomingPath)
	if err != nil {
		return fmt.Errorf("failed to read incoming file: %w", err)
	}
	incomingDoc, err := rst.Parse(incomingPath, string(incomingData))
	if err != nil {
		return fmt.Errorf("failed to parse incoming file: %w", err)
	}

	conflictsDoc, stats := mergeDocuments(baseDoc, incomingDoc)

	// Create output filenames
	timestamp := time.Now().Format("20060102-150405")
	baseDir := filepath.Dir(basePath)
	baseName := filepath.Base(basePath)

	mergedFilename := fmt.Sprintf("merged-%s-%s", timestamp, baseName)
	mergedPath := filepath.Join(baseDir, mergedFilename)

	conflictsFilename := fmt.Sprintf("conflicts-%s.rst", timestamp)
	conflictsPath := filepath.Join(baseDir, conflictsFilename)
	conflictsDoc.Name = conflictsPath

	// 3. Write the merged output
	mergedFile, err := os.Create(mergedPath)
	if err != nil {
		return fmt.Errorf("failed to create merged file: %w", err)
	}
	defer mergedFile.Close()

	if err := baseDoc.Write(mergedFile); err != nil {
		return fmt.Errorf("failed to write merged file: %w", err)
	}

	// 4. Write the conflicts file only when there is something to review
	if stats.conflicts > 0 {
		conflictsFile, err := os.Create(conflictsPath)
		if err != nil {
			return fmt.Errorf("failed to create conflicts file: %w", err)
		}
		defer conflictsFile.Close()

		if err := conflictsDoc.Write(conflictsFile); err != nil {
			return fmt.Errorf("failed to write conflicts file: %w", err)
		}
	}

	fmt.Printf("Processing complete!\n")
	fmt.Printf("  - Processed: %d\n", stats.processed)
	fmt.Printf("  - Merged:    %d (saved to %s)\n", stats.merged, mergedFilename)
	if stats.conflicts > 0 {
		fmt.Printf("  - Conflicts: %d (saved to %s)\n", stats.conflicts, conflictsFilename)
	} else {
		fmt.Printf("  - Conflicts: 0\n")
	}

	return nil
}
