package datalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Unquote returns the text of a quoted string term; other terms are returned unchanged.
func Unquote(t string) string {
	if len(t) >= 2 && t[0] == '"' {
		if s, err := strconv.Unquote(t); err == nil {
			return s
		}
	}
	return t
}

// CompareTerms compares two ground terms: as numbers when both are numeric, otherwise as
// strings.
func CompareTerms(a, b string) int {
	fa, aerr := strconv.ParseFloat(a, 64)
	fb, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		if fa < fb {
			return -1
		} else if fa > fb {
			return 1
		}
		return 0
	}
	return strings.Compare(Unquote(a), Unquote(b))
}

// EvalBuiltIn evaluates a comparison goal with b. An equality with exactly one unbound
// variable binds it; any other unbound variable is an error.
//
// = and <> compare terms exactly as written, the same way a goal matches a fact, so 1 and
// 1.0, or a and "a", are different terms. The ordering comparisons use CompareTerms.
func EvalBuiltIn(g Expr, b Binding) (Binding, bool, error) {
	l, r := resolve(g.Terms[0], b), resolve(g.Terms[1], b)
	lv, rv := IsVariable(l), IsVariable(r)

	if g.Predicate == Equal {
		if lv && rv {
			return nil, false, fmt.Errorf("datalog: %s: both sides are unbound", g)
		} else if lv || rv {
			nb := make(Binding, len(b)+1)
			for k, v := range b {
				nb[k] = v
			}
			if lv {
				nb[l] = r
			} else {
				nb[r] = l
			}
			return nb, true, nil
		}
	} else if lv || rv {
		return nil, false, fmt.Errorf("datalog: %s: unbound variable", g)
	}

	var ok bool
	switch g.Predicate {
	case Equal:
		ok = l == r
	case NotEqual:
		ok = l != r
	case Less:
		ok = CompareTerms(l, r) < 0
	case LessEqual:
		ok = CompareTerms(l, r) <= 0
	case Greater:
		ok = CompareTerms(l, r) > 0
	case GreaterEqual:
		ok = CompareTerms(l, r) >= 0
	default:
		return nil, false, fmt.Errorf("datalog: %s: unknown built-in", g.Predicate)
	}
	return b, ok, nil
}

func resolve(t string, b Binding) string {
	if IsVariable(t) {
		if v, ok := b[t]; ok {
			return v
		}
	}
	return t
}
