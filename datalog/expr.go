package datalog

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	Equal        = "="
	NotEqual     = "<>"
	Less         = "<"
	LessEqual    = "<="
	Greater      = ">"
	GreaterEqual = ">="
)

var builtIns = map[string]struct{}{
	Equal:        {},
	NotEqual:     {},
	Less:         {},
	LessEqual:    {},
	Greater:      {},
	GreaterEqual: {},
}

// Expr is a predicate applied to terms: either a relation goal such as parent(tom, X) or a
// built-in comparison such as X <> Y. Terms are kept in source form; quoted strings keep
// their quotes.
type Expr struct {
	Predicate string
	Terms     []string
}

// IsVariable reports whether term names a variable: it starts with an upper case letter
// or an underscore.
func IsVariable(term string) bool {
	r, _ := utf8.DecodeRuneInString(term)
	return r == '_' || unicode.IsUpper(r)
}

func IsBuiltIn(pred string) bool {
	_, ok := builtIns[pred]
	return ok
}

func NewExpr(pred string, terms ...string) Expr {
	return Expr{
		Predicate: pred,
		Terms:     terms,
	}
}

func (e Expr) IsBuiltIn() bool {
	return IsBuiltIn(e.Predicate) && len(e.Terms) == 2
}

func (e Expr) Arity() int {
	return len(e.Terms)
}

func (e Expr) IsGround() bool {
	for _, t := range e.Terms {
		if IsVariable(t) {
			return false
		}
	}
	return true
}

// Variables returns the distinct variables of e in order of first appearance.
func (e Expr) Variables() []string {
	var vars []string
	for _, t := range e.Terms {
		if IsVariable(t) && !contains(vars, t) {
			vars = append(vars, t)
		}
	}
	return vars
}

// NamedVariables returns the distinct variables of goals in order of first appearance,
// leaving out anonymous variables (those starting with an underscore).
func NamedVariables(goals []Expr) []string {
	var vars []string
	for _, g := range goals {
		for _, v := range g.Variables() {
			if v[0] != '_' && !contains(vars, v) {
				vars = append(vars, v)
			}
		}
	}
	return vars
}

func contains(ss []string, s string) bool {
	for _, s2 := range ss {
		if s2 == s {
			return true
		}
	}
	return false
}

// Substitute returns a copy of e with each bound variable replaced by its value.
func (e Expr) Substitute(b Binding) Expr {
	terms := make([]string, len(e.Terms))
	for tdx, t := range e.Terms {
		if v, ok := b[t]; ok && IsVariable(t) {
			terms[tdx] = v
		} else {
			terms[tdx] = t
		}
	}
	return Expr{
		Predicate: e.Predicate,
		Terms:     terms,
	}
}

// Unify matches e against the ground fact using b; it returns the extended binding and
// true on success. b itself is never modified.
func (e Expr) Unify(fact Expr, b Binding) (Binding, bool) {
	if e.Predicate != fact.Predicate || len(e.Terms) != len(fact.Terms) {
		return nil, false
	}

	var nb Binding
	for tdx, t := range e.Terms {
		ft := fact.Terms[tdx]
		if !IsVariable(t) {
			if t != ft {
				return nil, false
			}
			continue
		}

		v, ok := b[t]
		if !ok && nb != nil {
			v, ok = nb[t]
		}
		if ok {
			if v != ft {
				return nil, false
			}
			continue
		}
		if nb == nil {
			nb = Binding{}
		}
		nb[t] = ft
	}

	if nb == nil {
		return b, true
	}
	for k, v := range b {
		nb[k] = v
	}
	return nb, true
}

func (e Expr) String() string {
	if e.IsBuiltIn() {
		return fmt.Sprintf("%s %s %s", e.Terms[0], e.Predicate, e.Terms[1])
	}
	if len(e.Terms) == 0 {
		return e.Predicate
	}
	return fmt.Sprintf("%s(%s)", e.Predicate, strings.Join(e.Terms, ", "))
}

// Key identifies a relation by predicate and arity.
func (e Expr) Key() Relation {
	return Relation{
		Predicate: e.Predicate,
		Arity:     e.Arity(),
	}
}

type Relation struct {
	Predicate string
	Arity     int
}

func (r Relation) String() string {
	return fmt.Sprintf("%s/%d", r.Predicate, r.Arity)
}

func FormatGoals(goals []Expr) string {
	var buf strings.Builder
	for gdx, g := range goals {
		if gdx > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(g.String())
	}
	return buf.String()
}
