package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/flags"
	"github.com/k3nlo/Jatalog/parser"
	"github.com/k3nlo/Jatalog/stmt"
	"github.com/k3nlo/Jatalog/storage"
)

// Engine evaluates statements against a store of facts and rules. Calls are serialized;
// only one statement is evaluated against the store at a time.
type Engine struct {
	mutex sync.Mutex
	st    *storage.Store
	flgs  flags.Flags
	rules []compiledRule
}

type compiledRule struct {
	rule datalog.Rule
	body []datalog.Expr
}

func NewEngine(st *storage.Store, flgs flags.Flags) (*Engine, error) {
	e := &Engine{
		st:   st,
		flgs: flgs,
	}

	srcs, err := st.Rules()
	if err != nil {
		return nil, err
	}
	p := parser.NewParser(strings.NewReader(strings.Join(srcs, "\n")), st.Name())
	for {
		s, err := p.Parse()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("engine: loading rules: %s", err)
		}
		rd, ok := s.(*stmt.RuleDef)
		if !ok {
			return nil, fmt.Errorf("engine: loading rules: expected a rule: %s", s)
		}
		cr, err := compileRule(rd.Rule)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, cr)
	}

	log.WithFields(log.Fields{
		"store": st.Name(),
		"rules": len(e.rules),
	}).Info("engine started")
	return e, nil
}

func compileRule(r datalog.Rule) (compiledRule, error) {
	err := r.Validate()
	if err != nil {
		return compiledRule{}, err
	}
	body, err := orderGoals(r.Body)
	if err != nil {
		return compiledRule{}, fmt.Errorf("engine: rule %s: %s", r, err)
	}
	return compiledRule{
		rule: r,
		body: body,
	}, nil
}

func (e *Engine) Store() *storage.Store {
	return e.st
}

// Assert adds a ground fact to the store.
func (e *Engine) Assert(ctx context.Context, fact datalog.Expr) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if fact.IsBuiltIn() || datalog.IsBuiltIn(fact.Predicate) {
		return fmt.Errorf("engine: %s: a built-in can not be asserted", fact)
	}
	_, err := e.st.Assert(fact)
	return err
}

// AddRule validates and stores a rule.
func (e *Engine) AddRule(ctx context.Context, r datalog.Rule) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	cr, err := compileRule(r)
	if err != nil {
		return err
	}
	err = e.st.AddRule(r)
	if err != nil {
		return err
	}
	e.rules = append(e.rules, cr)
	return nil
}

// Retract removes every stored fact matched by the goals and returns how many were
// removed. Derived facts are not stored and so can not be retracted.
func (e *Engine) Retract(ctx context.Context, goals []datalog.Expr) (int, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	var bindings datalog.Answers
	err := e.evaluate(ctx, goals,
		func(b datalog.Binding) error {
			bindings = append(bindings, b)
			return nil
		})
	if err != nil {
		return 0, err
	}

	var cnt int
	for _, b := range bindings {
		for _, g := range goals {
			if g.IsBuiltIn() {
				continue
			}
			removed, err := e.st.Retract(g.Substitute(b))
			if err != nil {
				return cnt, err
			}
			if removed {
				cnt += 1
			}
		}
	}
	return cnt, nil
}

// Query returns the distinct bindings of the named variables of goals that satisfy all of
// them. The result is never nil: an empty result means there are no solutions. A query
// without variables has a single empty binding when it is true.
func (e *Engine) Query(ctx context.Context, goals []datalog.Expr) (datalog.Answers, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	vars := datalog.NamedVariables(goals)
	answers := datalog.Answers{}
	seen := map[string]struct{}{}
	err := e.evaluate(ctx, goals,
		func(b datalog.Binding) error {
			pb := b.Project(vars)
			k := bindingKey(pb, vars)
			if _, ok := seen[k]; ok {
				return nil
			}
			seen[k] = struct{}{}
			answers = append(answers, pb)
			return nil
		})
	if err != nil {
		return nil, err
	}

	if e.flgs.GetFlag(flags.LogQueries) {
		log.WithFields(log.Fields{
			"query":   datalog.FormatGoals(goals),
			"answers": len(answers),
		}).Info("query")
	}
	return answers, nil
}

func bindingKey(b datalog.Binding, vars []string) string {
	var buf strings.Builder
	for _, v := range vars {
		buf.WriteString(b[v])
		buf.WriteByte(0)
	}
	return buf.String()
}

func (e *Engine) evaluate(ctx context.Context, goals []datalog.Expr,
	fn func(b datalog.Binding) error) error {

	if err := ctx.Err(); err != nil {
		return err
	}
	ordered, err := orderGoals(goals)
	if err != nil {
		return fmt.Errorf("engine: %s: %s", datalog.FormatGoals(goals), err)
	}

	rules := e.relevantRules(goals)
	db, err := e.load(goals, rules)
	if err != nil {
		return err
	}

	if e.flgs.GetFlag(flags.SemiNaive) {
		err = db.semiNaive(ctx, rules)
	} else {
		err = db.naive(ctx, rules)
	}
	if err != nil {
		return err
	}

	return db.join(ordered, -1, nil, datalog.Binding{}, fn)
}

// relevantRules returns, in definition order, the rules which can derive facts for the
// relations the goals depend on.
func (e *Engine) relevantRules(goals []datalog.Expr) []compiledRule {
	needed := map[datalog.Relation]struct{}{}
	var pending []datalog.Relation
	addGoals := func(goals []datalog.Expr) {
		for _, g := range goals {
			if g.IsBuiltIn() {
				continue
			}
			rel := g.Key()
			if _, ok := needed[rel]; !ok {
				needed[rel] = struct{}{}
				pending = append(pending, rel)
			}
		}
	}

	addGoals(goals)
	for len(pending) > 0 {
		rel := pending[0]
		pending = pending[1:]
		for _, cr := range e.rules {
			if cr.rule.Head.Key() == rel {
				addGoals(cr.rule.Body)
			}
		}
	}

	var rules []compiledRule
	for _, cr := range e.rules {
		if _, ok := needed[cr.rule.Head.Key()]; ok {
			rules = append(rules, cr)
		}
	}
	return rules
}

func (e *Engine) load(goals []datalog.Expr, rules []compiledRule) (database, error) {
	db := database{}
	loadGoals := func(goals []datalog.Expr) error {
		for _, g := range goals {
			if g.IsBuiltIn() {
				continue
			}
			rel := g.Key()
			if _, ok := db[rel]; ok {
				continue
			}
			r := newRelation()
			db[rel] = r
			err := e.st.Scan(rel,
				func(fact datalog.Expr) error {
					r.add(fact)
					return nil
				})
			if err != nil {
				return err
			}
		}
		return nil
	}

	err := loadGoals(goals)
	if err != nil {
		return nil, err
	}
	for _, cr := range rules {
		err = loadGoals([]datalog.Expr{cr.rule.Head})
		if err != nil {
			return nil, err
		}
		err = loadGoals(cr.rule.Body)
		if err != nil {
			return nil, err
		}
	}
	return db, nil
}
