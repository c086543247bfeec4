package datalog

import (
	"fmt"
)

type Rule struct {
	Head Expr
	Body []Expr
}

func (r Rule) String() string {
	return fmt.Sprintf("%s :- %s", r.Head, FormatGoals(r.Body))
}

// Validate checks that r is safe: every variable in the head and in a comparison must be
// bound by a relation goal in the body, or by an equality with a bound side.
func (r Rule) Validate() error {
	if r.Head.IsBuiltIn() || IsBuiltIn(r.Head.Predicate) {
		return fmt.Errorf("datalog: rule %s: head may not be a built-in", r)
	}
	if len(r.Body) == 0 {
		return fmt.Errorf("datalog: rule %s: empty body", r)
	}

	bound, err := BoundVariables(r.Body)
	if err != nil {
		return fmt.Errorf("datalog: rule %s: %s", r, err)
	}
	for _, v := range r.Head.Variables() {
		if _, ok := bound[v]; !ok {
			return fmt.Errorf("datalog: rule %s: head variable %s is not bound in the body",
				r, v)
		}
	}
	return nil
}

// BoundVariables returns the variables the goals bind; it fails if a comparison uses a
// variable that no relation goal or equality binds.
func BoundVariables(goals []Expr) (map[string]struct{}, error) {
	bound := map[string]struct{}{}
	for _, g := range goals {
		if g.IsBuiltIn() {
			continue
		}
		for _, v := range g.Variables() {
			bound[v] = struct{}{}
		}
	}

	for {
		var changed bool
		for _, g := range goals {
			if !g.IsBuiltIn() || g.Predicate != Equal {
				continue
			}
			l, r := g.Terms[0], g.Terms[1]
			if isBound(bound, l) && !isBound(bound, r) {
				bound[r] = struct{}{}
				changed = true
			} else if isBound(bound, r) && !isBound(bound, l) {
				bound[l] = struct{}{}
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for _, g := range goals {
		if !g.IsBuiltIn() {
			continue
		}
		for _, t := range g.Terms {
			if !isBound(bound, t) {
				return nil, fmt.Errorf("variable %s in %s is not bound", t, g)
			}
		}
	}
	return bound, nil
}

func isBound(bound map[string]struct{}, t string) bool {
	if !IsVariable(t) {
		return true
	}
	_, ok := bound[t]
	return ok
}
