package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"linkreg/internal/rst"
)

func mustParseDoc(t *testing.T, input string) *rst.Document {
	t.Helper()
	doc, err := rst.Parse("test", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func TestMergeRoutesCollisionsToConflicts(t *testing.T) {
	base := mustParseDoc(t, ".. Tools\n\n.. _nipy: http://nipy.org\n")
	incoming := mustParseDoc(t, ".. Tools\n\n.. _NIPY: http://nipy.org/other\n.. _graphviz: http://www.graphviz.org/\n")

	conflicts, stats := mergeDocuments(base, incoming)

	if stats.processed != 2 || stats.merged != 1 || stats.conflicts != 1 {
		t.Errorf("stats = %+v, want 2 processed / 1 merged / 1 conflict", stats)
	}

	// The colliding label goes to the conflicts document, not the base.
	if len(conflicts.Sections) != 1 || len(conflicts.Sections[0].Entries) != 1 {
		t.Fatalf("conflicts document wrong: %+v", conflicts.Sections)
	}
	if conflicts.Sections[0].Entries[0].Label != "NIPY" {
		t.Errorf("conflict entry label = %q, want NIPY", conflicts.Sections[0].Entries[0].Label)
	}

	entries := base.Entries()
	if len(entries) != 2 {
		t.Fatalf("base has %d entries after merge, want 2", len(entries))
	}
	if entries[0].Label != "nipy" || entries[1].Label != "graphviz" {
		t.Errorf("base entries after merge: %+v", entries)
	}
}

func TestMergeCreatesNewSection(t *testing.T) {
	base := mustParseDoc(t, ".. Tools\n\n.. _graphviz: http://www.graphviz.org/\n")
	incoming := mustParseDoc(t, ".. Licenses\n\n.. _BSD: http://www.opensource.org/licenses/bsd-license.php\n")

	conflicts, stats := mergeDocuments(base, incoming)

	if stats.conflicts != 0 || len(conflicts.Sections) != 0 {
		t.Errorf("unexpected conflicts: %+v", conflicts.Sections)
	}
	if len(base.Sections) != 2 {
		t.Fatalf("base has %d sections, want 2", len(base.Sections))
	}
	s := base.Sections[1]
	if s.Title != "Licenses" || len(s.Entries) != 1 || s.Entries[0].Label != "BSD" {
		t.Errorf("new section wrong: %+v", s)
	}
}

func TestMergeSubstitutions(t *testing.T) {
	base := mustParseDoc(t, ".. |emdash| unicode:: U+02014\n")
	incoming := mustParseDoc(t, ".. |emdash| unicode:: U+02015\n.. |endash| unicode:: U+02013\n")

	conflicts, stats := mergeDocuments(base, incoming)

	if stats.merged != 1 || stats.conflicts != 1 {
		t.Errorf("stats = %+v, want 1 merged / 1 conflict", stats)
	}
	if len(conflicts.Sections) != 1 || len(conflicts.Sections[0].Substitutions) != 1 {
		t.Fatalf("conflicts document wrong: %+v", conflicts.Sections)
	}
	if conflicts.Sections[0].Substitutions[0].Name != "emdash" {
		t.Errorf("conflict substitution = %+v, want emdash", conflicts.Sections[0].Substitutions[0])
	}

	subs := base.Sections[0].Substitutions
	if len(subs) != 2 || subs[1].Name != "endash" {
		t.Errorf("base substitutions after merge: %+v", subs)
	}
	// The base definition wins over the colliding incoming one.
	if subs[0].Text != "unicode:: U+02014" {
		t.Errorf("base substitution text = %q, want the original kept", subs[0].Text)
	}
}

func TestMergeNoConflictsWritesNoConflictsFile(t *testing.T) {
	tmpDir := t.TempDir()
	write := func(name, content string) string {
		t.Helper()
		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		return path
	}

	basePath = write("base.rst", ".. Tools\n\n.. _graphviz: http://www.graphviz.org/\n")
	incomingPath = write("incoming.rst", ".. Tools\n\n.. _Sphinx: http://sphinx.pocoo.org/\n")

	if err := runMerge(nil, nil); err != nil {
		t.Fatalf("runMerge failed: %v", err)
	}

	conflictFiles, err := filepath.Glob(filepath.Join(tmpDir, "conflicts-*"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(conflictFiles) != 0 {
		t.Errorf("conflicts file written with nothing to review: %v", conflictFiles)
	}

	mergedFiles, err := filepath.Glob(filepath.Join(tmpDir, "merged-*"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(mergedFiles) != 1 {
		t.Fatalf("expected 1 merged file, got %v", mergedFiles)
	}
	data, err := os.ReadFile(mergedFiles[0])
	if err != nil {
		t.Fatalf("failed to read merged file: %v", err)
	}
	merged := string(data)
	if !strings.Contains(merged, ".. _graphviz:") || !strings.Contains(merged, ".. _Sphinx:") {
		t.Errorf("merged output missing entries:\n%s", merged)
	}
}
