package engine

import (
	"context"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/k3nlo/Jatalog/datalog"
)

// relation holds the known facts of one predicate/arity in the order they became known.
type relation struct {
	facts []datalog.Expr
	set   mapset.Set[string]
}

type database map[datalog.Relation]*relation

func newRelation() *relation {
	return &relation{
		set: mapset.NewThreadUnsafeSet[string](),
	}
}

func factKey(fact datalog.Expr) string {
	return strings.Join(fact.Terms, "\x00")
}

func (r *relation) has(fact datalog.Expr) bool {
	return r.set.Contains(factKey(fact))
}

func (r *relation) add(fact datalog.Expr) bool {
	k := factKey(fact)
	if r.set.Contains(k) {
		return false
	}
	r.set.Add(k)
	r.facts = append(r.facts, fact)
	return true
}

func (db database) relation(rel datalog.Relation) *relation {
	r, ok := db[rel]
	if !ok {
		r = newRelation()
		db[rel] = r
	}
	return r
}

func (db database) size() int {
	var n int
	for _, r := range db {
		n += len(r.facts)
	}
	return n
}

// merge adds the facts of delta to db.
func (db database) merge(delta database) {
	for rel, r := range delta {
		dr := db.relation(rel)
		for _, fact := range r.facts {
			dr.add(fact)
		}
	}
}

// apply evaluates one rule, joining the goal at deltaIdx against delta and every other goal
// against db; any derived fact not already in db is added to out.
func (db database) apply(cr compiledRule, deltaIdx int, delta *relation, out database) error {
	head := cr.rule.Head
	rel := head.Key()
	return db.join(cr.body, deltaIdx, delta, datalog.Binding{},
		func(b datalog.Binding) error {
			fact := head.Substitute(b)
			if !fact.IsGround() {
				return fmt.Errorf("engine: rule %s derived %s", cr.rule, fact)
			}
			if db.relation(rel).has(fact) {
				return nil
			}
			out.relation(rel).add(fact)
			return nil
		})
}

// naive applies every rule to the whole database until no new facts are derived.
func (db database) naive(ctx context.Context, rules []compiledRule) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		next := database{}
		for _, cr := range rules {
			err := db.apply(cr, -1, nil, next)
			if err != nil {
				return err
			}
		}
		if next.size() == 0 {
			return nil
		}
		db.merge(next)
	}
}

// semiNaive applies every rule once to the whole database, and then only joins that use
// at least one fact derived in the previous round.
func (db database) semiNaive(ctx context.Context, rules []compiledRule) error {
	delta := database{}
	for _, cr := range rules {
		err := db.apply(cr, -1, nil, delta)
		if err != nil {
			return err
		}
	}

	for delta.size() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		db.merge(delta)
		next := database{}
		for _, cr := range rules {
			for gdx, g := range cr.body {
				if g.IsBuiltIn() {
					continue
				}
				d, ok := delta[g.Key()]
				if !ok || len(d.facts) == 0 {
					continue
				}
				err := db.apply(cr, gdx, d, next)
				if err != nil {
					return err
				}
			}
		}
		delta = next
	}
	return nil
}

// join calls fn with every binding which satisfies goals, in order, extending b. The goal
// at deltaIdx is matched against delta instead of db.
func (db database) join(goals []datalog.Expr, deltaIdx int, delta *relation,
	b datalog.Binding, fn func(b datalog.Binding) error) error {

	if len(goals) == 0 {
		return fn(b)
	}

	g := goals[0]
	if g.IsBuiltIn() {
		nb, ok, err := datalog.EvalBuiltIn(g, b)
		if err != nil {
			return err
		} else if !ok {
			return nil
		}
		return db.join(goals[1:], deltaIdx-1, delta, nb, fn)
	}

	var facts []datalog.Expr
	if deltaIdx == 0 {
		facts = delta.facts
	} else if r, ok := db[g.Key()]; ok {
		facts = r.facts
	}

	for _, fact := range facts {
		nb, ok := g.Unify(fact, b)
		if !ok {
			continue
		}
		err := db.join(goals[1:], deltaIdx-1, delta, nb, fn)
		if err != nil {
			return err
		}
	}
	return nil
}

// orderGoals keeps the relation goals in order and moves each comparison to just after
// the point where all of its variables are bound.
func orderGoals(goals []datalog.Expr) ([]datalog.Expr, error) {
	bound := map[string]struct{}{}
	isBound := func(t string) bool {
		if !datalog.IsVariable(t) {
			return true
		}
		_, ok := bound[t]
		return ok
	}

	var ordered, pending []datalog.Expr
	flush := func() {
		for {
			var changed bool
			var rest []datalog.Expr
			for _, g := range pending {
				l, r := g.Terms[0], g.Terms[1]
				if isBound(l) && isBound(r) {
					ordered = append(ordered, g)
					changed = true
				} else if g.Predicate == datalog.Equal && (isBound(l) || isBound(r)) {
					ordered = append(ordered, g)
					bound[l] = struct{}{}
					bound[r] = struct{}{}
					changed = true
				} else {
					rest = append(rest, g)
				}
			}
			pending = rest
			if !changed {
				return
			}
		}
	}

	for _, g := range goals {
		if g.IsBuiltIn() {
			pending = append(pending, g)
			continue
		}
		flush()
		ordered = append(ordered, g)
		for _, v := range g.Variables() {
			bound[v] = struct{}{}
		}
	}
	flush()

	if len(pending) > 0 {
		return nil, fmt.Errorf("unbound variable in %s", datalog.FormatGoals(pending))
	}
	return ordered, nil
}
