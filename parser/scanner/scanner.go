package scanner

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/parser/token"
)

// Position is a location in the input; lines and columns start at 1.
type Position struct {
	Filename string
	Line     int
	Column   int
}

// ScanCtx holds the last token scanned and, depending on the token, its text.
type ScanCtx struct {
	Token      rune
	Error      error
	Identifier string // Identifier and Variable
	String     string
	Number     string
	Position
}

// Scanner splits Datalog source into tokens. Comments run from % to the end of the line.
type Scanner struct {
	rr     io.RuneReader
	pos    Position
	unread []rune
	buf    strings.Builder
	err    error
}

func (pos Position) String() string {
	if pos.Line == 0 {
		return pos.Filename
	}
	return fmt.Sprintf("%s:%d:%d", pos.Filename, pos.Line, pos.Column)
}

func (s *Scanner) Init(rr io.RuneReader, fn string) {
	*s = Scanner{
		rr:  rr,
		pos: Position{Filename: fn, Line: 1},
	}
}

// Err returns the error, other than io.EOF, that reading the input failed with. Once
// reading fails, every later scan returns token.Error with the same error.
func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) Scan(sctx *ScanCtx) {
	s.buf.Reset()
	sctx.Error = nil

	r := s.skipSpace()
	sctx.Position = s.pos
	sctx.Token = s.scanToken(sctx, r)
	if s.err != nil {
		sctx.Token = token.Error
		sctx.Error = s.err
	}
}

func (s *Scanner) next() rune {
	if n := len(s.unread); n > 0 {
		r := s.unread[n-1]
		s.unread = s.unread[:n-1]
		return r
	}
	if s.err != nil {
		return token.Error
	}

	r, _, err := s.rr.ReadRune()
	if err == io.EOF {
		return token.EOF
	} else if err != nil {
		s.err = err
		return token.Error
	}

	if r == '\n' {
		s.pos.Line += 1
		s.pos.Column = 0
	} else {
		s.pos.Column += 1
	}
	return r
}

func (s *Scanner) back(r rune) {
	if r >= 0 {
		s.unread = append(s.unread, r)
	}
}

func (s *Scanner) fail(sctx *ScanCtx, format string, args ...interface{}) rune {
	sctx.Error = fmt.Errorf("scanner: "+format, args...)
	return token.Error
}

func (s *Scanner) skipSpace() rune {
	comment := false
	for {
		r := s.next()
		switch {
		case r < 0:
			return r
		case comment:
			comment = r != '\n'
		case r == '%':
			comment = true
		case !unicode.IsSpace(r):
			return r
		}
	}
}

func (s *Scanner) scanToken(sctx *ScanCtx, r rune) rune {
	switch {
	case r < 0:
		return r
	case unicode.IsLetter(r) || r == '_':
		return s.scanIdentifier(sctx, r)
	case unicode.IsDigit(r):
		return s.scanNumber(sctx, r)
	case r == '-' || r == '+':
		r2 := s.next()
		if unicode.IsDigit(r2) {
			s.buf.WriteRune(r)
			return s.scanNumber(sctx, r2)
		}
		s.back(r2)
	case r == '"':
		return s.scanString(sctx)
	case token.IsOpRune(r):
		return s.scanOperator(sctx, r)
	case strings.ContainsRune(".,()?~", r):
		return r
	}
	return s.fail(sctx, "unexpected character '%c'", r)
}

func (s *Scanner) scanIdentifier(sctx *ScanCtx, r rune) rune {
	for unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
		s.buf.WriteRune(r)
		r = s.next()
	}
	s.back(r)

	sctx.Identifier = s.buf.String()
	if datalog.IsVariable(sctx.Identifier) {
		return token.Variable
	}
	return token.Identifier
}

func (s *Scanner) digits(r rune) rune {
	for unicode.IsDigit(r) {
		s.buf.WriteRune(r)
		r = s.next()
	}
	return r
}

func (s *Scanner) scanNumber(sctx *ScanCtx, r rune) rune {
	r = s.digits(r)
	if r == '.' {
		// A dot not followed by a digit ends the statement.
		r2 := s.next()
		if unicode.IsDigit(r2) {
			s.buf.WriteRune('.')
			r = s.digits(r2)
		} else {
			s.back(r2)
		}
	}
	s.back(r)

	sctx.Number = s.buf.String()
	return token.Number
}

func (s *Scanner) scanOperator(sctx *ScanCtx, r rune) rune {
	r2 := s.next()
	if op, ok := token.Operators[string([]rune{r, r2})]; ok {
		return op
	}
	s.back(r2)

	if r == token.Equal || r == token.Less || r == token.Greater {
		return r
	}
	return s.fail(sctx, "unexpected operator %c", r)
}

// scanString collects a double quoted string, with Go escapes, and unquotes it.
func (s *Scanner) scanString(sctx *ScanCtx) rune {
	s.buf.WriteRune('"')
	for {
		r := s.next()
		if r < 0 {
			return s.fail(sctx, "string missing terminating '\"'")
		}
		if r == '\n' {
			s.buf.WriteString(`\n`)
			continue
		}
		s.buf.WriteRune(r)
		if r == '"' {
			break
		}
		if r == '\\' {
			r = s.next()
			if r < 0 {
				return s.fail(sctx, "incomplete string escape")
			}
			s.buf.WriteRune(r)
		}
	}

	str, err := strconv.Unquote(s.buf.String())
	if err != nil {
		return s.fail(sctx, "bad string %s", s.buf.String())
	}
	sctx.String = str
	return token.String
}
