package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"linkreg/internal/models"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// EntryData represents a link-registry entry to be inserted
type EntryData struct {
	Key       string // canonical label key (case-folded)
	Label     string // original spelling
	Target    string
	Quoted    bool
	SectionID int64
	Position  int
}

// TagAssociation represents a tag to be associated with an entry
type TagAssociation struct {
	EntryID int64
	TagID   int64
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	// Optimize SQLite for bulk inserts
	if err := db.optimizeForBulkInsert(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to optimize database: %w", err)
	}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// optimizeForBulkInsert sets SQLite pragmas for better bulk insert performance
func (db *DB) optimizeForBulkInsert() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous = NORMAL", // Faster than FULL, still safe
		"PRAGMA cache_size = -64000",  // 64MB cache (negative = KB)
		"PRAGMA temp_store = MEMORY",  // Store temp tables in memory
		"PRAGMA foreign_keys = ON",    // Keep foreign keys enabled
	}

	for _, pragma := range pragmas {
		if _, err := db.conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the database tables if they don't exist
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT UNIQUE NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label_key TEXT UNIQUE NOT NULL,
		label TEXT NOT NULL,
		target TEXT NOT NULL,
		quoted INTEGER NOT NULL DEFAULT 0,
		section_id INTEGER,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (section_id) REFERENCES sections(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_label_key ON entries(label_key);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entry_tags (
		entry_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		PRIMARY KEY (entry_id, tag_id),
		FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_entry_tags_entry_id ON entry_tags(entry_id);
	CREATE INDEX IF NOT EXISTS idx_entry_tags_tag_id ON entry_tags(tag_id);

	CREATE TABLE IF NOT EXISTS substitutions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		text TEXT NOT NULL,
		section_id INTEGER,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (section_id) REFERENCES sections(id) ON DELETE SET NULL
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// BeginTransaction starts a new transaction
func (db *DB) BeginTransaction() (*sql.Tx, error) {
	return db.conn.Begin()
}

// GetOrCreateSectionTx gets a section ID by title, creating the section at
// the given position if it doesn't exist
func GetOrCreateSectionTx(tx *sql.Tx, title string, position int) (int64, error) {
	var sectionID int64
	err := tx.QueryRow(
		"SELECT id FROM sections WHERE title = ?",
		title,
	).Scan(&sectionID)

	if err == sql.ErrNoRows {
		result, err := tx.Exec(
			"INSERT INTO sections (title, position) VALUES (?, ?)",
			title, position,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to create section: %w", err)
		}
		sectionID, err = result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get section id: %w", err)
		}
		return sectionID, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to query section: %w", err)
	}

	return sectionID, nil
}

// NextSectionPositionTx returns the position after the last stored section
func NextSectionPositionTx(tx *sql.Tx) (int, error) {
	var pos sql.NullInt64
	if err := tx.QueryRow("SELECT MAX(position) FROM sections").Scan(&pos); err != nil {
		return 0, fmt.Errorf("failed to query section positions: %w", err)
	}
	if !pos.Valid {
		return 0, nil
	}
	return int(pos.Int64) + 1, nil
}

// GetOrCreateTagTx gets a tag ID, creating the tag if it doesn't exist
// This version uses the provided transaction and should be called inside a transaction
func GetOrCreateTagTx(tx *sql.Tx, tagName string) (int64, error) {
	var tagID int64
	err := tx.QueryRow(
		"SELECT id FROM tags WHERE name = ?",
		tagName,
	).Scan(&tagID)

	if err == sql.ErrNoRows {
		// Tag doesn't exist, create it
		result, err := tx.Exec(
			"INSERT INTO tags (name) VALUES (?)",
			tagName,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to create tag: %w", err)
		}
		tagID, err = result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get tag id: %w", err)
		}
		return tagID, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to query tag: %w", err)
	}

	return tagID, nil
}

// LoadAllEntryIDs loads all existing entry IDs into a map for fast lookup
// Returns a map of label key -> entryID
func LoadAllEntryIDs(tx *sql.Tx) (map[string]int64, error) {
	entryMap := make(map[string]int64)

	rows, err := tx.Query("SELECT id, label_key FROM entries")
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entryMap[key] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entryMap, nil
}

// LoadAllTagIDs loads all existing tag IDs into a map for fast lookup
// Returns a map of tag name -> tagID
func LoadAllTagIDs(tx *sql.Tx) (map[string]int64, error) {
	tagMap := make(map[string]int64)

	rows, err := tx.Query("SELECT id, name FROM tags")
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tagMap[name] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	return tagMap, nil
}

// BulkInsertResult contains the results of a bulk insert operation
type BulkInsertResult struct {
	EntryMap      map[string]int64
	NewCount      int // Number of newly inserted entries
	ExistingCount int // Number of entries that already existed
}

// BulkInsertEntries inserts multiple entries efficiently
// existingEntryMap should contain all existing entry IDs keyed by label key (pre-loaded)
// Separates new entries from existing ones and uses bulk INSERT for new entries only
// Returns a map of label key -> entryID and counts of new vs existing entries
func (db *DB) BulkInsertEntries(tx *sql.Tx, entries []EntryData, existingEntryMap map[string]int64) (*BulkInsertResult, error) {
	if len(entries) == 0 {
		return &BulkInsertResult{EntryMap: make(map[string]int64)}, nil
	}

	result := &BulkInsertResult{
		EntryMap: make(map[string]int64, len(entries)),
	}

	// Separate new entries from existing ones
	newEntries := make([]EntryData, 0, len(entries))

	// Track keys seen in this batch to avoid duplicates within the insert
	seenInBatch := make(map[string]bool)

	for _, e := range entries {
		if id, exists := existingEntryMap[e.Key]; exists {
			// Entry already exists - use pre-loaded ID
			result.EntryMap[e.Key] = id
			result.ExistingCount++
		} else {
			if seenInBatch[e.Key] {
				continue
			}
			newEntries = append(newEntries, e)
			seenInBatch[e.Key] = true
		}
	}

	result.NewCount = len(newEntries)

	if len(newEntries) == 0 {
		return result, nil
	}

	// Build bulk INSERT with VALUES clause for new entries
	// SQLite supports up to 999 parameters, so we may need to chunk
	const maxParams = 999
	const valuesPerRow = 6
	const maxRowsPerInsert = maxParams / valuesPerRow

	for i := 0; i < len(newEntries); i += maxRowsPerInsert {
		end := i + maxRowsPerInsert
		if end > len(newEntries) {
			end = len(newEntries)
		}
		chunk := newEntries[i:end]

		query := "INSERT INTO entries (label_key, label, target, quoted, section_id, position) VALUES "
		args := make([]interface{}, 0, len(chunk)*valuesPerRow)

		for j, e := range chunk {
			if j > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?)"
			quoted := 0
			if e.Quoted {
				quoted = 1
			}
			// A zero section ID means the entry precedes any header; store NULL
			// to keep the foreign key satisfied.
			var sectionID interface{}
			if e.SectionID != 0 {
				sectionID = e.SectionID
			}
			args = append(args, e.Key, e.Label, e.Target, quoted, sectionID, e.Position)
		}

		// Use RETURNING id to get the exact IDs of inserted rows
		query += " RETURNING id"

		rows, err := tx.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to bulk insert entries: %w", err)
		}

		// The IDs are returned in the same order as the inserts
		idx := 0
		for rows.Next() {
			if idx >= len(chunk) {
				rows.Close()
				return nil, fmt.Errorf("retrieved more IDs than inserted rows")
			}

			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan returned id: %w", err)
			}

			result.EntryMap[chunk[idx].Key] = id
			idx++
		}
		rows.Close()

		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating returned ids: %w", err)
		}

		if idx != len(chunk) {
			return nil, fmt.Errorf("expected %d IDs, got %d", len(chunk), idx)
		}
	}

	return result, nil
}

// BulkAddTagsToEntries adds multiple tag associations efficiently using bulk INSERT
// Uses INSERT OR IGNORE to handle duplicates idempotently
func (db *DB) BulkAddTagsToEntries(tx *sql.Tx, associations []TagAssociation) error {
	if len(associations) == 0 {
		return nil
	}

	const maxParams = 999
	const valuesPerRow = 2
	const maxRowsPerInsert = maxParams / valuesPerRow

	for i := 0; i < len(associations); i += maxRowsPerInsert {
		end := i + maxRowsPerInsert
		if end > len(associations) {
			end = len(associations)
		}
		chunk := associations[i:end]

		query := "INSERT OR IGNORE INTO entry_tags (entry_id, tag_id) VALUES "
		args := make([]interface{}, 0, len(chunk)*2)

		for j, assoc := range chunk {
			if j > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, assoc.EntryID, assoc.TagID)
		}

		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("failed to bulk insert tag associations: %w", err)
		}
	}

	return nil
}

// UpsertSubstitutionTx inserts or replaces a substitution definition
func UpsertSubstitutionTx(tx *sql.Tx, name, text string, sectionID int64, position int) error {
	var section interface{}
	if sectionID != 0 {
		section = sectionID
	}
	_, err := tx.Exec(
		`INSERT INTO substitutions (name, text, section_id, position) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET text = excluded.text`,
		name, text, section, position,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert substitution: %w", err)
	}
	return nil
}

// GetEntryID gets the ID of an entry by its label key
func (db *DB) GetEntryID(key string) (int64, error) {
	var id int64
	err := db.conn.QueryRow(
		"SELECT id FROM entries WHERE label_key = ?",
		key,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("entry not found: %s", key)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query entry: %w", err)
	}
	return id, nil
}

// AddTagToEntry adds a tag to an entry
func (db *DB) AddTagToEntry(entryID, tagID int64) error {
	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO entry_tags (entry_id, tag_id) VALUES (?, ?)",
		entryID, tagID,
	)
	if err != nil {
		return fmt.Errorf("failed to add tag to entry: %w", err)
	}
	return nil
}

// GetOrCreateTag gets a tag ID, creating the tag if it doesn't exist
// This version uses db.conn and should NOT be called inside a transaction
func (db *DB) GetOrCreateTag(tagName string) (int64, error) {
	var tagID int64
	err := db.conn.QueryRow(
		"SELECT id FROM tags WHERE name = ?",
		tagName,
	).Scan(&tagID)

	if err == sql.ErrNoRows {
		result, err := db.conn.Exec(
			"INSERT INTO tags (name) VALUES (?)",
			tagName,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to create tag: %w", err)
		}
		tagID, err = result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get tag id: %w", err)
		}
		return tagID, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to query tag: %w", err)
	}

	return tagID, nil
}

// GetAllSections returns all sections ordered by position
func (db *DB) GetAllSections() ([]models.Section, error) {
	rows, err := db.conn.Query("SELECT id, title, position FROM sections ORDER BY position, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	var sections []models.Section
	for rows.Next() {
		var s models.Section
		if err := rows.Scan(&s.ID, &s.Title, &s.Position); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sections: %w", err)
	}

	return sections, nil
}

// GetAllEntries returns all entries with their section titles and tags,
// ordered by section position then entry position
func (db *DB) GetAllEntries() ([]models.Entry, error) {
	query := `
		SELECT e.id, e.label, e.target, e.quoted, COALESCE(s.title, '') AS section,
		       COALESCE(GROUP_CONCAT(t.name), '') AS tags
		FROM entries e
		LEFT JOIN sections s ON e.section_id = s.id
		LEFT JOIN entry_tags et ON e.id = et.entry_id
		LEFT JOIN tags t ON et.tag_id = t.id
		GROUP BY e.id, e.label, e.target, e.quoted, s.title
		ORDER BY COALESCE(s.position, -1), e.position, e.id
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var e models.Entry
		var quoted int
		var tagsStr string
		if err := rows.Scan(&e.ID, &e.Label, &e.Target, &quoted, &e.Section, &tagsStr); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Quoted = quoted != 0
		e.Tags = splitTags(tagsStr)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// GetAllSubstitutions returns all substitutions with their section titles,
// ordered by section position then substitution position
func (db *DB) GetAllSubstitutions() ([]models.Substitution, error) {
	query := `
		SELECT su.id, su.name, su.text, COALESCE(s.title, '') AS section
		FROM substitutions su
		LEFT JOIN sections s ON su.section_id = s.id
		ORDER BY COALESCE(s.position, -1), su.position, su.id
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query substitutions: %w", err)
	}
	defer rows.Close()

	var subs []models.Substitution
	for rows.Next() {
		var s models.Substitution
		if err := rows.Scan(&s.ID, &s.Name, &s.Text, &s.Section); err != nil {
			return nil, fmt.Errorf("failed to scan substitution: %w", err)
		}
		subs = append(subs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating substitutions: %w", err)
	}

	return subs, nil
}

// splitTags splits a comma-separated string of tags
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
