// Package rst parses and serializes reStructuredText link-registry files:
// flat files of hyperlink targets and substitution definitions, grouped
// under comment section headers, as used by documentation trees to share
// named URLs across pages.
//
// Refer to the [reStructuredText Markup Specification] for the hyperlink
// target and substitution definition syntax.
//
// [reStructuredText Markup Specification]: https://docutils.sourceforge.io/docs/ref/rst/restructuredtext.html
package rst

import (
	"fmt"
	"io"
	"strings"
)

// Entry is a hyperlink target: a label mapped to a target URI.
type Entry struct {
	Label  string // original spelling, backquotes stripped
	Target string
	Quoted bool // written with backquotes in the source
	Line   int
}

// Substitution is a substitution definition line, kept verbatim.
// Text holds everything after the closing bar, directive included.
type Substitution struct {
	Name string
	Text string
	Line int
}

// Section groups the entries following a comment header. A file that opens
// with entries before any header gets an untitled leading section.
type Section struct {
	Title         string
	Line          int
	Entries       []Entry
	Substitutions []Substitution
}

// Malformed records a line the parser could not classify.
type Malformed struct {
	Line int
	Text string
}

// Document is a parsed link-registry file.
type Document struct {
	Name      string
	Sections  []*Section
	Malformed []Malformed
}

// Entries returns all entries of the document in file order.
func (d *Document) Entries() []Entry {
	var entries []Entry
	for _, s := range d.Sections {
		entries = append(entries, s.Entries...)
	}
	return entries
}

// parser wraps the lexer with a one-item pushback buffer so that the
// sub-parsers can stop at an item that belongs to the next construct.
type parser struct {
	l      *lexer
	peeked *item
}

func (p *parser) next() item {
	if p.peeked != nil {
		i := *p.peeked
		p.peeked = nil
		return i
	}
	return p.l.nextItem()
}

func (p *parser) backup(i item) {
	p.peeked = &i
}

// Parse parses a link-registry file. The name is used for error reports
// only. Lines that do not form a hyperlink target, substitution definition,
// comment or blank line are collected in Malformed rather than failing
// the parse; only scanner errors fail it.
func Parse(name, input string) (*Document, error) {
	doc := &Document{Name: name}
	p := &parser{l: lex(name, input)}
	var cur *Section
	section := func(line int) *Section {
		if cur == nil {
			cur = &Section{Line: line}
			doc.Sections = append(doc.Sections, cur)
		}
		return cur
	}
	for {
		i := p.next()
		switch i.typ {
		case itemEOF:
			return doc, nil
		case itemError:
			return nil, fmt.Errorf("%s:%d: %s", name, i.line, i.val)
		case itemBlankLine:
			// Blank lines separate nothing we track.
		case itemComment:
			cur = &Section{Line: i.line}
			doc.Sections = append(doc.Sections, cur)
		case itemCommentText:
			if cur != nil && cur.Title == "" && len(cur.Entries) == 0 && len(cur.Substitutions) == 0 {
				cur.Title = strings.TrimRight(i.val, " \t")
			}
		case itemHyperlinkStart:
			e, err := parseEntry(p, i.line)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			if e == nil {
				doc.Malformed = append(doc.Malformed, Malformed{Line: i.line, Text: hyperlinkStart})
				continue
			}
			s := section(i.line)
			s.Entries = append(s.Entries, *e)
		case itemSubstitutionStart:
			sub, err := parseSubstitution(p, i.line)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			if sub == nil {
				doc.Malformed = append(doc.Malformed, Malformed{Line: i.line, Text: substitutionStart})
				continue
			}
			s := section(i.line)
			s.Substitutions = append(s.Substitutions, *sub)
		case itemText:
			text := strings.TrimRight(i.val, " \t")
			if strings.TrimSpace(text) == "" {
				continue
			}
			if strings.HasPrefix(text, " ") || strings.HasPrefix(text, "\t") {
				// Indented continuation: a wrapped target URI continues the
				// previous entry; anything else continues a comment header.
				if s := cur; s != nil && len(s.Entries) > 0 {
					e := &s.Entries[len(s.Entries)-1]
					e.Target += strings.TrimSpace(text)
					continue
				}
				if cur != nil && cur.Title != "" {
					cur.Title += " " + strings.TrimSpace(text)
					continue
				}
			}
			doc.Malformed = append(doc.Malformed, Malformed{Line: i.line, Text: text})
		}
	}
}

// parseEntry consumes the items following a hyperlink start marker.
// It returns nil when the line is not a complete target. Items that open
// the next construct are pushed back.
func parseEntry(p *parser, line int) (*Entry, error) {
	var (
		e      = Entry{Line: line}
		suffix bool
	)
	for {
		i := p.next()
		switch i.typ {
		case itemError:
			return nil, fmt.Errorf("%d: %s", i.line, i.val)
		case itemHyperlinkQuote:
			e.Quoted = true
		case itemHyperlinkName:
			e.Label = unescapeLabel(strings.TrimSpace(i.val))
		case itemHyperlinkSuffix:
			suffix = true
		case itemHyperlinkURI:
			e.Target = strings.TrimSpace(i.val)
			if e.Label == "" || !suffix {
				return nil, nil
			}
			return &e, nil
		default:
			// The target line was cut short.
			p.backup(i)
			if suffix && e.Label != "" {
				return &e, nil
			}
			return nil, nil
		}
	}
}

// parseSubstitution consumes the items following a substitution start marker.
func parseSubstitution(p *parser, line int) (*Substitution, error) {
	sub := Substitution{Line: line}
	for {
		i := p.next()
		switch i.typ {
		case itemError:
			return nil, fmt.Errorf("%d: %s", i.line, i.val)
		case itemSubstitutionName:
			sub.Name = strings.TrimSpace(i.val)
		case itemSubstitutionText:
			sub.Text = strings.TrimRight(i.val, " \t")
			if sub.Name == "" {
				return nil, nil
			}
			return &sub, nil
		default:
			p.backup(i)
			if sub.Name != "" {
				return &sub, nil
			}
			return nil, nil
		}
	}
}

// unescapeLabel removes backslash escapes from a bare hyperlink name.
func unescapeLabel(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return strings.NewReplacer(`\:`, ":", `\\`, `\`).Replace(s)
}

// Key returns the canonical identity of a label: reference names are not
// case sensitive, and internal whitespace runs compare equal.
func Key(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// String serializes the entry back to its source form. Labels containing
// a colon must be backquoted; labels written backquoted stay backquoted so
// that parsing and re-serializing an entry yields the identical line.
func (e Entry) String() string {
	if e.Quoted || strings.ContainsRune(e.Label, ':') {
		return fmt.Sprintf(".. _`%s`: %s", e.Label, e.Target)
	}
	return fmt.Sprintf(".. _%s: %s", e.Label, e.Target)
}

// String serializes the substitution definition back to its source form.
func (s Substitution) String() string {
	return fmt.Sprintf(".. |%s| %s", s.Name, s.Text)
}

// Write serializes the document, sections separated by blank lines.
func (d *Document) Write(w io.Writer) error {
	for n, s := range d.Sections {
		if n > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if s.Title != "" {
			if _, err := fmt.Fprintf(w, ".. %s\n", s.Title); err != nil {
				return err
			}
			if len(s.Entries) > 0 || len(s.Substitutions) > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
		}
		for _, e := range s.Entries {
			if _, err := fmt.Fprintln(w, e.String()); err != nil {
				return err
			}
		}
		for _, sub := range s.Substitutions {
			if _, err := fmt.Fprintln(w, sub.String()); err != nil {
				return err
			}
		}
	}
	return nil
}
