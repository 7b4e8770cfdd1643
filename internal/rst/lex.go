package rst

import (
	"fmt"
	"strings"
)

// Pos is a byte offset into the input text.
type Pos int

// item represents a token returned from the scanner.
type item struct {
	typ  itemType // The type of this item.
	pos  Pos      // The starting position, in bytes, of this item in the input string.
	val  string   // The value of this item.
	line int      // The line number at the start of this item.
}

func (i item) String() string {
	switch {
	case i.typ == itemEOF:
		return "EOF"
	case i.typ == itemError:
		return i.val
	case len(i.val) > 10:
		return fmt.Sprintf("typ: %q - val: %.10q...", i.typ, i.val)
	}
	return fmt.Sprintf("typ: %q - val: %q", i.typ, i.val)
}

// itemType identifies the type of lex items.
type itemType int

const (
	itemError             itemType = iota // error occurred; value is text of error
	itemEOF
	itemBlankLine         // empty line separating constructs
	itemComment           // the ".." marker opening a comment line
	itemCommentText       // text of a comment line
	itemHyperlinkStart    // the ".. _" marker opening a hyperlink target
	itemHyperlinkQuote    // backquote enclosing a hyperlink name
	itemHyperlinkName     // name of a hyperlink target
	itemHyperlinkSuffix   // the ":" terminating a hyperlink name
	itemHyperlinkURI      // target URI of a hyperlink; may be empty
	itemSubstitutionStart // the ".. |" marker opening a substitution definition
	itemSubstitutionName  // name of a substitution definition
	itemSubstitutionText  // directive text of a substitution definition
	itemText              // any other line, indentation included
)

const (
	eof               = -1
	hyperlinkStart    = ".. _"
	substitutionStart = ".. |"
	commentStart      = ".."
)

// stateFn represents the state of the scanner as a function that returns the next state.
type stateFn func(*lexer) stateFn

// lexer holds the state of the scanner.
type lexer struct {
	name      string       // the name of the input; used only for error reports
	input     string       // the string being scanned
	pos       Pos          // current position in the input
	start     Pos          // start position of this item
	line      int          // 1+number of newlines seen
	startLine int          // start line of this item
	lastRune  rune         // most recent return from next()
	item      item         // item to return to parser
	types     [2]itemType  // most recent emitted types
}

// next returns the next rune in the input.
func (l *lexer) next() rune {
	if int(l.pos) >= len(l.input) {
		l.lastRune = eof
		return eof
	}
	r := rune(l.input[l.pos])
	l.pos++
	l.lastRune = r
	if r == '\n' {
		l.line++
	}
	return r
}

// peek returns but does not consume the next rune in the input.
func (l *lexer) peek() rune {
	if int(l.pos) >= len(l.input) {
		return eof
	}
	return rune(l.input[l.pos])
}

// emit passes the pending text as an item back to the parser.
func (l *lexer) emit(t itemType) stateFn {
	l.item = item{t, l.start, l.input[l.start:l.pos], l.startLine}
	l.types[0] = l.types[1]
	l.types[1] = t
	l.start = l.pos
	l.startLine = l.line
	return nil
}

// ignore skips over the pending input before this point.
// It tracks newlines in the ignored text, so use it only
// for text that is skipped without calling l.next.
func (l *lexer) ignore() {
	l.line += strings.Count(l.input[l.start:l.pos], "\n")
	l.start = l.pos
	l.startLine = l.line
}

// skipSpaces consumes and discards a run of spaces and tabs.
func (l *lexer) skipSpaces() {
	for {
		r := l.peek()
		if r != ' ' && r != '\t' {
			break
		}
		l.next()
	}
	l.ignore()
}

// errorf returns an error token and terminates the scan.
func (l *lexer) errorf(format string, args ...any) stateFn {
	l.item = item{itemError, l.start, fmt.Sprintf(format, args...), l.startLine}
	l.start = 0
	l.pos = 0
	l.input = l.input[:0]
	return nil
}

// nextItem returns the next item from the input.
func (l *lexer) nextItem() item {
	l.item = item{itemEOF, l.pos, "EOF", l.startLine}
	state := lexAny
	for {
		state = state(l)
		if state == nil {
			return l.item
		}
	}
}

// lex creates a new scanner for the input string.
func lex(name, input string) *lexer {
	return &lexer{
		name:      name,
		input:     input,
		line:      1,
		startLine: 1,
	}
}

// lexAny scans the item starting at the current position. It relies on the
// two most recently emitted item types to pick up mid-line: the pieces of a
// hyperlink target or substitution definition are emitted one per call.
func lexAny(l *lexer) stateFn {
	switch {
	case l.isHyperlinkName():
		return lexHyperlinkName
	case l.isHyperlinkURI():
		return lexHyperlinkURI
	case l.isSubstitutionName():
		return lexSubstitutionName
	case l.isSubstitutionText():
		return lexSubstitutionText
	case l.isCommentText():
		return lexCommentText
	}
	switch r := l.next(); {
	case r == eof:
		return l.emit(itemEOF)
	case r == '\n':
		return l.emit(itemBlankLine)
	case r == '`':
		return lexQuote
	case r == ':' && l.isHyperlinkSuffix():
		return l.emit(itemHyperlinkSuffix)
	case r == '.' && strings.HasPrefix(l.input[l.start:], hyperlinkStart):
		l.pos = l.start + Pos(len(hyperlinkStart))
		return l.emit(itemHyperlinkStart)
	case r == '.' && strings.HasPrefix(l.input[l.start:], substitutionStart):
		l.pos = l.start + Pos(len(substitutionStart))
		return l.emit(itemSubstitutionStart)
	case r == '.' && l.isComment():
		l.pos = l.start + Pos(len(commentStart))
		return l.emit(itemComment)
	default:
		return lexText
	}
}

// lexEndOfLine emits the pending item and swallows a trailing newline
// so that it is not reported as a blank line.
func lexEndOfLine(l *lexer, typ itemType) stateFn {
	i := l.emit(typ)
	if l.peek() == '\n' {
		l.pos++
		l.ignore()
	}
	return i
}

// lexUntilTerminator scans until a newline or EOF.
func lexUntilTerminator(l *lexer, typ itemType) stateFn {
	for {
		switch l.peek() {
		case eof:
			return l.emit(typ)
		case '\n':
			return lexEndOfLine(l, typ)
		}
		l.next()
	}
}

// lexQuote scans a backquote enclosing a hyperlink name. A backquote
// anywhere else is plain text.
func lexQuote(l *lexer) stateFn {
	switch l.types[1] {
	case itemHyperlinkStart, itemHyperlinkName:
		return l.emit(itemHyperlinkQuote)
	}
	return lexText
}

// lexCommentText scans the text of a comment line.
func lexCommentText(l *lexer) stateFn {
	l.skipSpaces()
	return lexUntilTerminator(l, itemCommentText)
}

// lexHyperlinkName scans a hyperlink name. Escaped colons are part of the
// name; an unescaped colon ends a bare name. Quoted names end at the
// closing backquote.
func lexHyperlinkName(l *lexer) stateFn {
	quoted := l.types[1] == itemHyperlinkQuote
	for {
		switch l.peek() {
		case ':':
			if !quoted && l.lastRune != '\\' {
				return l.emit(itemHyperlinkName)
			}
			l.next()
		case '`', eof:
			return l.emit(itemHyperlinkName)
		case '\n':
			return lexEndOfLine(l, itemHyperlinkName)
		default:
			l.next()
		}
	}
}

// lexHyperlinkURI scans the target URI of a hyperlink. The URI may be
// empty when the target line ends after the colon.
func lexHyperlinkURI(l *lexer) stateFn {
	l.skipSpaces()
	return lexUntilTerminator(l, itemHyperlinkURI)
}

// lexSubstitutionName scans the name of a substitution definition.
func lexSubstitutionName(l *lexer) stateFn {
	for {
		switch l.peek() {
		case '|', eof:
			return l.emit(itemSubstitutionName)
		case '\n':
			return lexEndOfLine(l, itemSubstitutionName)
		default:
			l.next()
		}
	}
}

// lexSubstitutionText scans the directive text of a substitution definition.
func lexSubstitutionText(l *lexer) stateFn {
	if l.peek() == '|' {
		l.next()
	}
	l.skipSpaces()
	return lexUntilTerminator(l, itemSubstitutionText)
}

// lexText scans any other line whole, indentation included.
func lexText(l *lexer) stateFn {
	return lexUntilTerminator(l, itemText)
}

// isComment reports whether the scanner is on a comment marker.
func (l *lexer) isComment() bool {
	s := l.input[l.start:]
	if !strings.HasPrefix(s, commentStart) {
		return false
	}
	switch {
	case len(s) == len(commentStart):
		return true
	}
	switch s[len(commentStart)] {
	case ' ', '\t', '\n':
		return true
	}
	return false
}

// isCommentText reports whether the scanner is on the text of a comment line.
func (l *lexer) isCommentText() bool {
	if l.types[1] != itemComment {
		return false
	}
	switch l.peek() {
	case '\n', eof:
		return false
	}
	return true
}

// isHyperlinkName reports whether the scanner is on a hyperlink name.
func (l *lexer) isHyperlinkName() bool {
	switch l.types[1] {
	case itemHyperlinkStart:
		return l.peek() != '`'
	case itemHyperlinkQuote:
		return l.types[0] == itemHyperlinkStart
	}
	return false
}

// isHyperlinkSuffix reports whether a colon at the current position
// terminates a hyperlink name.
func (l *lexer) isHyperlinkSuffix() bool {
	switch l.types[1] {
	case itemHyperlinkName:
		return true
	case itemHyperlinkQuote:
		return l.types[0] == itemHyperlinkName
	}
	return false
}

// isHyperlinkURI reports whether the scanner is on a hyperlink URI.
func (l *lexer) isHyperlinkURI() bool {
	if l.types[1] != itemHyperlinkSuffix {
		return false
	}
	return l.peek() != eof
}

// isSubstitutionName reports whether the scanner is on a substitution name.
func (l *lexer) isSubstitutionName() bool {
	return l.types[1] == itemSubstitutionStart
}

// isSubstitutionText reports whether the scanner is on substitution
// directive text.
func (l *lexer) isSubstitutionText() bool {
	if l.types[1] != itemSubstitutionName {
		return false
	}
	return l.peek() != eof && l.peek() != '\n'
}
