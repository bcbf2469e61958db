package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/dhall/internal/ir"
)

// scanner tracks the read position in the source together with its line and
// column so that every node can carry an ir.Pos without a second pass.
type scanner struct {
	src  string
	file string
	off  int
	line int
	col  int
}

type mark struct {
	off, line, col int
}

func (s *scanner) mark() mark {
	return mark{s.off, s.line, s.col}
}

func (s *scanner) reset(m mark) {
	s.off, s.line, s.col = m.off, m.line, m.col
}

func (s *scanner) pos() ir.Pos {
	return ir.Pos{File: s.file, Line: s.line, Col: s.col}
}

func (s *scanner) eof() bool {
	return s.off >= len(s.src)
}

func (s *scanner) rest() string {
	return s.src[s.off:]
}

func (s *scanner) peek() rune {
	if s.eof() {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.off:])
	return r
}

// peekAt returns the rune n runes ahead of the cursor.
func (s *scanner) peekAt(n int) rune {
	rest := s.rest()
	for ; n > 0 && rest != ""; n-- {
		_, size := utf8.DecodeRuneInString(rest)
		rest = rest[size:]
	}
	if rest == "" {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return r
}

func (s *scanner) next() rune {
	if s.eof() {
		return -1
	}
	r, size := utf8.DecodeRuneInString(s.src[s.off:])
	s.off += size
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

func (s *scanner) has(prefix string) bool {
	return strings.HasPrefix(s.rest(), prefix)
}

// accept consumes prefix if present.
func (s *scanner) accept(prefix string) bool {
	if !s.has(prefix) {
		return false
	}
	for range prefix {
		s.next()
	}
	return true
}

// skipSpace consumes whitespace and comments, reporting whether anything was
// consumed. Unterminated block comments are reported by the caller through
// the returned error.
func (s *scanner) skipSpace() (bool, error) {
	start := s.off
	for !s.eof() {
		switch {
		case s.has("--"):
			for !s.eof() && s.peek() != '\n' {
				s.next()
			}
		case s.has("{-"):
			if err := s.blockComment(); err != nil {
				return true, err
			}
		case s.peek() == ' ' || s.peek() == '\t' || s.peek() == '\n' || s.peek() == '\r':
			s.next()
		default:
			return s.off > start, nil
		}
	}
	return s.off > start, nil
}

func (s *scanner) blockComment() error {
	pos := s.pos()
	depth := 0
	for !s.eof() {
		switch {
		case s.accept("{-"):
			depth++
		case s.accept("-}"):
			depth--
			if depth == 0 {
				return nil
			}
		default:
			s.next()
		}
	}
	return &ParseError{Pos: pos, Message: "unterminated block comment"}
}

func isLabelStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isLabelChar(r rune) bool {
	return isLabelStart(r) || (r >= '0' && r <= '9') || r == '-' || r == '/'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// isPathChar reports whether r may appear unquoted in a local path component.
func isPathChar(r rune) bool {
	if r < 0x21 || r == 0x7f || unicode.IsSpace(r) {
		return false
	}
	return !strings.ContainsRune("\"#(),/:<>?@[\\]^`{|}", r)
}

// isURLChar reports whether r may appear in an unquoted URL.
func isURLChar(r rune) bool {
	if r < 0x21 || r == 0x7f || unicode.IsSpace(r) {
		return false
	}
	return !strings.ContainsRune("\"()<>[]{},`", r)
}

func isEnvChar(r rune, first bool) bool {
	if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	return !first && isDigit(r)
}

// keywordAt reports whether the keyword kw starts at the cursor and is not
// merely a prefix of a longer label.
func (s *scanner) keywordAt(kw string) bool {
	if !s.has(kw) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.off+len(kw):])
	return s.off+len(kw) == len(s.src) || !isLabelChar(r)
}
