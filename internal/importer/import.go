// Package importer loads link-registry files into the database.
package importer

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"linkreg/internal/checker"
	"linkreg/internal/config"
	dbpkg "linkreg/internal/db"
	"linkreg/internal/logging"
	"linkreg/internal/rst"
	"linkreg/internal/tagger"
)

// Type aliases to ensure types are accessible
type EntryData = dbpkg.EntryData
type TagAssociation = dbpkg.TagAssociation

// ImportStats tracks statistics for a file import
type ImportStats struct {
	Imported        int // Total entries processed (new + existing)
	NewEntries      int // Newly inserted entries
	ExistingEntries int // Entries that already existed
	Skipped         int
	Substitutions   int
	Errors          []string
	StartTime       time.Time
}

// ImportFile imports link-registry entries from a reST file into the
// database. Each comment header opens a section; entries are tagged with
// their section and target scheme. Entries that fail validation are
// skipped and recorded, not fatal. Labels are not case sensitive: when a
// file defines the same label twice, the first definition wins and later
// ones are skipped and recorded. The whole file loads in one transaction
// with pre-loaded ID maps and bulk inserts.
func ImportFile(db *dbpkg.DB, path string, policy *config.Policy) (*ImportStats, error) {
	stats := &ImportStats{
		StartTime: time.Now(),
		Errors:    make([]string, 0),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	doc, err := rst.Parse(path, string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	logging.Debug("parsed registry file",
		zap.String("path", path),
		zap.Int("sections", len(doc.Sections)),
		zap.Int("malformed", len(doc.Malformed)),
	)

	for _, m := range doc.Malformed {
		stats.Skipped++
		stats.Errors = append(stats.Errors, fmt.Sprintf("line %d: unrecognized line %q", m.Line, m.Text))
	}

	tx, err := db.BeginTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Pre-load all existing entry IDs into memory
	existingEntryMap, err := dbpkg.LoadAllEntryIDs(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing entry IDs: %w", err)
	}

	// Pre-load all existing tag IDs into memory
	existingTagMap, err := dbpkg.LoadAllTagIDs(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing tag IDs: %w", err)
	}

	sectionPos, err := dbpkg.NextSectionPositionTx(tx)
	if err != nil {
		return nil, err
	}

	getTagID := func(name string) (int64, error) {
		if tagID, exists := existingTagMap[name]; exists {
			return tagID, nil
		}
		tagID, err := dbpkg.GetOrCreateTagTx(tx, name)
		if err != nil {
			return 0, fmt.Errorf("failed to create tag %s: %w", name, err)
		}
		existingTagMap[name] = tagID
		return tagID, nil
	}

	position := 0
	seenInFile := make(map[string]int) // label key -> line of first definition
	for _, section := range doc.Sections {
		var sectionID int64
		if section.Title != "" {
			sectionID, err = dbpkg.GetOrCreateSectionTx(tx, section.Title, sectionPos)
			if err != nil {
				return nil, err
			}
			sectionPos++
		}

		batch := make([]EntryData, 0, len(section.Entries))
		for _, e := range section.Entries {
			if err := checker.ValidateLabel(e.Label, policy); err != nil {
				stats.Skipped++
				stats.Errors = append(stats.Errors, fmt.Sprintf("line %d: skipped invalid label %q: %v", e.Line, e.Label, err))
				continue
			}
			if err := checker.ValidateTarget(e.Target, policy); err != nil {
				stats.Skipped++
				stats.Errors = append(stats.Errors, fmt.Sprintf("line %d: skipped entry %q: %v", e.Line, e.Label, err))
				continue
			}
			key := rst.Key(e.Label)
			if first, ok := seenInFile[key]; ok {
				stats.Skipped++
				stats.Errors = append(stats.Errors, fmt.Sprintf("line %d: skipped duplicate label %q (first defined on line %d)", e.Line, e.Label, first))
				continue
			}
			seenInFile[key] = e.Line
			batch = append(batch, EntryData{
				Key:       key,
				Label:     e.Label,
				Target:    e.Target,
				Quoted:    e.Quoted,
				SectionID: sectionID,
				Position:  position,
			})
			position++
		}

		insertResult, err := db.BulkInsertEntries(tx, batch, existingEntryMap)
		if err != nil {
			return nil, fmt.Errorf("failed to bulk insert entries: %w", err)
		}

		// Update existingEntryMap with newly inserted entries
		for key, id := range insertResult.EntryMap {
			existingEntryMap[key] = id
		}

		stats.Imported += len(batch)
		stats.NewEntries += insertResult.NewCount
		stats.ExistingEntries += insertResult.ExistingCount

		// Prepare tag associations: one section tag plus one scheme tag per entry
		associations := make([]TagAssociation, 0, len(batch)*2)

		var sectionTagID int64
		if sectionTag := tagger.SectionTag(section.Title); sectionTag != "" {
			sectionTagID, err = getTagID(sectionTag)
			if err != nil {
				return nil, err
			}
		}

		for _, e := range batch {
			entryID, ok := insertResult.EntryMap[e.Key]
			if !ok {
				// Should not happen, but skip if it does
				continue
			}
			if sectionTagID != 0 {
				associations = append(associations, TagAssociation{
					EntryID: entryID,
					TagID:   sectionTagID,
				})
			}
			if schemeTag := tagger.SchemeTag(e.Target); schemeTag != "" {
				tagID, err := getTagID(schemeTag)
				if err != nil {
					return nil, err
				}
				associations = append(associations, TagAssociation{
					EntryID: entryID,
					TagID:   tagID,
				})
			}
		}

		if len(associations) > 0 {
			if err := db.BulkAddTagsToEntries(tx, associations); err != nil {
				return nil, fmt.Errorf("failed to bulk add tags: %w", err)
			}
		}

		for n, sub := range section.Substitutions {
			if err := dbpkg.UpsertSubstitutionTx(tx, sub.Name, sub.Text, sectionID, n); err != nil {
				return nil, err
			}
			stats.Substitutions++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Info("imported registry file",
		zap.String("path", path),
		zap.Int("imported", stats.Imported),
		zap.Int("new", stats.NewEntries),
		zap.Int("existing", stats.ExistingEntries),
		zap.Int("skipped", stats.Skipped),
	)

	return stats, nil
}

// CountEntryLines counts the hyperlink target lines in a registry file
func CountEntryLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	doc, err := rst.Parse(path, string(data))
	if err != nil {
		return 0, err
	}
	return len(doc.Entries()), nil
}
