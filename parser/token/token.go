package token

import (
	"fmt"
)

const (
	EOF = -(iota + 1)
	Error
	Identifier
	Variable
	String
	Number

	Implies
	LessEqual
	LessGreater
	GreaterEqual
	BangEqual
)

const (
	Comma    = ','
	Dot      = '.'
	LParen   = '('
	RParen   = ')'
	Question = '?'
	Tilde    = '~'
)

const (
	Equal   = '='
	Less    = '<'
	Greater = '>'
)

var operators = map[rune]string{
	Implies:      ":-",
	LessEqual:    "<=",
	LessGreater:  "<>",
	GreaterEqual: ">=",
	BangEqual:    "!=",
	Equal:        "=",
	Less:         "<",
	Greater:      ">",
}

var (
	opRunes = map[rune]bool{
		'=': true, '<': true, '>': true, '!': true, ':': true, '-': true,
	}
	Operators = map[string]rune{}
)

func IsOpRune(r rune) bool {
	_, ok := opRunes[r]
	return ok
}

// Comparison returns the built-in predicate for a comparison token.
func Comparison(r rune) (string, bool) {
	switch r {
	case Equal:
		return "=", true
	case LessGreater, BangEqual:
		return "<>", true
	case Less:
		return "<", true
	case LessEqual:
		return "<=", true
	case Greater:
		return ">", true
	case GreaterEqual:
		return ">=", true
	}
	return "", false
}

func IsTerminator(r rune) bool {
	return r == Dot || r == Question || r == Tilde
}

func Format(r rune) string {
	if r > 0 {
		return fmt.Sprintf("rune %c", r)
	}
	if s, ok := operators[r]; ok {
		return s
	}
	switch r {
	case EOF:
		return "end of file"
	case Identifier:
		return "identifier"
	case Variable:
		return "variable"
	case String:
		return "string"
	case Number:
		return "number"
	}
	return fmt.Sprintf("token %d", r)
}

func init() {
	for r, s := range operators {
		if len(s) == 2 {
			Operators[s] = r
		}
	}
}
