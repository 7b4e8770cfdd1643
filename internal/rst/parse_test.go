package rst

import (
	"strings"
	"testing"
)

func TestParseBareTarget(t *testing.T) {
	doc, err := Parse("test", ".. _nipy: http://nipy.org\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	entries := doc.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Label != "nipy" {
		t.Errorf("label = %q, want %q", e.Label, "nipy")
	}
	if e.Target != "http://nipy.org" {
		t.Errorf("target = %q, want %q", e.Target, "http://nipy.org")
	}
	if e.Quoted {
		t.Errorf("entry unexpectedly marked quoted")
	}
}

func TestParseQuotedTarget(t *testing.T) {
	doc, err := Parse("test", ".. _`NIPY developer resources`: http://nipy.org/devel\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	entries := doc.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Label != "NIPY developer resources" {
		t.Errorf("label = %q, want quotes stripped", e.Label)
	}
	if e.Target != "http://nipy.org/devel" {
		t.Errorf("target = %q, want unchanged", e.Target)
	}
	if !e.Quoted {
		t.Errorf("entry should be marked quoted")
	}
}

func TestEntryRoundTrip(t *testing.T) {
	lines := []string{
		".. _nipy: http://nipy.org",
		".. _`NIPY developer resources`: http://nipy.org/devel",
		".. _`Sphinx`: http://sphinx.pocoo.org/",
	}
	for _, line := range lines {
		doc, err := Parse("test", line+"\n")
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", line, err)
		}
		entries := doc.Entries()
		if len(entries) != 1 {
			t.Fatalf("Parse(%q): expected 1 entry, got %d", line, len(entries))
		}
		if got := entries[0].String(); got != line {
			t.Errorf("round trip of %q yielded %q", line, got)
		}
	}
}

func TestParseSections(t *testing.T) {
	input := `.. Documentation tools

.. _graphviz: http://www.graphviz.org/
.. _Sphinx: http://sphinx.pocoo.org/

.. Licenses

.. _BSD: http://www.opensource.org/licenses/bsd-license.php
`
	doc, err := Parse("test", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(doc.Sections))
	}
	if doc.Sections[0].Title != "Documentation tools" {
		t.Errorf("first section title = %q", doc.Sections[0].Title)
	}
	if len(doc.Sections[0].Entries) != 2 {
		t.Errorf("first section has %d entries, want 2", len(doc.Sections[0].Entries))
	}
	if doc.Sections[1].Title != "Licenses" {
		t.Errorf("second section title = %q", doc.Sections[1].Title)
	}
	if len(doc.Sections[1].Entries) != 1 {
		t.Errorf("second section has %d entries, want 1", len(doc.Sections[1].Entries))
	}
}

func TestParseLeadingEntriesGetUntitledSection(t *testing.T) {
	input := ".. _first: http://example.com\n\n.. Header\n\n.. _second: http://example.org\n"
	doc, err := Parse("test", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(doc.Sections))
	}
	if doc.Sections[0].Title != "" {
		t.Errorf("leading section should be untitled, got %q", doc.Sections[0].Title)
	}
	if len(doc.Sections[0].Entries) != 1 || doc.Sections[0].Entries[0].Label != "first" {
		t.Errorf("leading section entries wrong: %+v", doc.Sections[0].Entries)
	}
}

func TestParseSubstitution(t *testing.T) {
	input := ".. |emdash| unicode:: U+02014\n"
	doc, err := Parse("test", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Sections) != 1 || len(doc.Sections[0].Substitutions) != 1 {
		t.Fatalf("expected 1 substitution, got %+v", doc.Sections)
	}
	sub := doc.Sections[0].Substitutions[0]
	if sub.Name != "emdash" {
		t.Errorf("substitution name = %q", sub.Name)
	}
	if sub.Text != "unicode:: U+02014" {
		t.Errorf("substitution text = %q", sub.Text)
	}
	if got := sub.String(); got != ".. |emdash| unicode:: U+02014" {
		t.Errorf("substitution round trip yielded %q", got)
	}
}

func TestParseWrappedTarget(t *testing.T) {
	input := ".. _long: http://example.com/some/\n   deeply/nested/path\n"
	doc, err := Parse("test", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	entries := doc.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	want := "http://example.com/some/deeply/nested/path"
	if entries[0].Target != want {
		t.Errorf("target = %q, want %q", entries[0].Target, want)
	}
}

func TestParseMalformedLines(t *testing.T) {
	input := "just some prose\n.. _ok: http://example.com\n"
	doc, err := Parse("test", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Malformed) != 1 {
		t.Fatalf("expected 1 malformed line, got %d", len(doc.Malformed))
	}
	if doc.Malformed[0].Line != 1 {
		t.Errorf("malformed line number = %d, want 1", doc.Malformed[0].Line)
	}
	if len(doc.Entries()) != 1 {
		t.Errorf("valid entry after malformed line was lost")
	}
}

func TestParseEmptyTarget(t *testing.T) {
	doc, err := Parse("test", ".. _orphan:\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	entries := doc.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Target != "" {
		t.Errorf("target = %q, want empty", entries[0].Target)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"nipy", "NiPy", true},
		{"NIPY developer resources", "nipy Developer Resources", true},
		{"a  b", "a b", true},
		{"nipy", "nipype", false},
	}
	for _, test := range tests {
		if got := Key(test.a) == Key(test.b); got != test.same {
			t.Errorf("Key(%q) == Key(%q) is %v, want %v", test.a, test.b, got, test.same)
		}
	}
}

func TestDocumentWrite(t *testing.T) {
	input := `.. Documentation tools

.. _Sphinx: http://sphinx.pocoo.org/
.. _` + "`NIPY developer resources`" + `: http://nipy.org/devel

.. Licenses

.. _BSD: http://www.opensource.org/licenses/bsd-license.php
.. |emdash| unicode:: U+02014
`
	doc, err := Parse("test", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var sb strings.Builder
	if err := doc.Write(&sb); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got := sb.String()
	if got != input {
		t.Errorf("write round trip:\ngot:\n%s\nwant:\n%s", got, input)
	}
}

func TestDocumentWriteEmptySection(t *testing.T) {
	input := `.. Documentation tools

.. _Sphinx: http://sphinx.pocoo.org/

.. Placeholder

.. Licenses

.. _BSD: http://www.opensource.org/licenses/bsd-license.php
`
	doc, err := Parse("test", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(doc.Sections))
	}
	var sb strings.Builder
	if err := doc.Write(&sb); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := sb.String(); got != input {
		t.Errorf("entry-less header lost on write:\ngot:\n%s\nwant:\n%s", got, input)
	}
}
