// Package generator regenerates link-registry files from the database.
package generator

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"linkreg/internal/db"
	"linkreg/internal/models"
	"linkreg/internal/rst"
	"linkreg/internal/tagger"
)

// Supported output formats
const (
	FormatRST  = "rst"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// GenerateRegistry writes the full registry to outputPath in the given
// format. Sections and entries come out in their stored order, so a
// registry imported from one file regenerates with the same grouping.
func GenerateRegistry(database *db.DB, outputPath, format string) error {
	entries, err := database.GetAllEntries()
	if err != nil {
		return fmt.Errorf("failed to get entries: %w", err)
	}
	subs, err := database.GetAllSubstitutions()
	if err != nil {
		return fmt.Errorf("failed to get substitutions: %w", err)
	}
	sections, err := database.GetAllSections()
	if err != nil {
		return fmt.Errorf("failed to get sections: %w", err)
	}

	switch format {
	case FormatRST, "":
		err = writeRST(entries, subs, sections, outputPath)
	case FormatCSV:
		err = writeCSV(entries, outputPath)
	case FormatXLSX:
		err = writeXLSX(entries, outputPath)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Generated registry with %d entries (format: %s)\n", len(entries), displayFormat(format))
	return nil
}

func displayFormat(format string) string {
	if format == "" {
		return FormatRST
	}
	return format
}

// writeRST reassembles a document from the stored sections, entries and
// substitutions and serializes it. Every stored section reappears in
// position order, entry-less comment headers included.
func writeRST(entries []models.Entry, subs []models.Substitution, sections []models.Section, path string) error {
	doc := &rst.Document{Name: path}
	byTitle := make(map[string]*rst.Section)
	section := func(title string) *rst.Section {
		if s, ok := byTitle[title]; ok {
			return s
		}
		s := &rst.Section{Title: title}
		byTitle[title] = s
		doc.Sections = append(doc.Sections, s)
		return s
	}

	// Entries preceding any header sort first, so their untitled section
	// must be created ahead of the titled ones.
	for _, e := range entries {
		if e.Section == "" {
			section("")
			break
		}
	}
	for _, sub := range subs {
		if sub.Section == "" {
			section("")
			break
		}
	}
	for _, s := range sections {
		section(s.Title)
	}

	for _, e := range entries {
		s := section(e.Section)
		s.Entries = append(s.Entries, rst.Entry{
			Label:  e.Label,
			Target: e.Target,
			Quoted: e.Quoted,
		})
	}
	for _, sub := range subs {
		s := section(sub.Section)
		s.Substitutions = append(s.Substitutions, rst.Substitution{
			Name: sub.Name,
			Text: sub.Text,
		})
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	return doc.Write(file)
}

// writeCSV writes the registry entries to a CSV report
func writeCSV(entries []models.Entry, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{"label", "target", "section", "scheme", "tags"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range entries {
		record := []string{
			e.Label,
			e.Target,
			e.Section,
			schemeOf(e.Target),
			strings.Join(e.Tags, " "),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}

// writeXLSX writes the registry entries to an Excel report
func writeXLSX(entries []models.Entry, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Registry"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}

	headers := []string{"Label", "Target", "Section", "Scheme", "Tags"}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell: %w", err)
		}
	}

	for row, e := range entries {
		values := []string{e.Label, e.Target, e.Section, schemeOf(e.Target), strings.Join(e.Tags, " ")}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("failed to compute cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("failed to set cell: %w", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save excel file: %w", err)
	}
	return nil
}

// schemeOf extracts the URL scheme of a target, empty when absent
func schemeOf(target string) string {
	tag := tagger.SchemeTag(target)
	return strings.TrimPrefix(tag, "scheme:")
}
