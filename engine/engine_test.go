package engine_test

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/engine"
	"github.com/k3nlo/Jatalog/flags"
	"github.com/k3nlo/Jatalog/parser"
	"github.com/k3nlo/Jatalog/stmt"
	"github.com/k3nlo/Jatalog/storage"
	"github.com/k3nlo/Jatalog/storage/kvstore"
	"github.com/k3nlo/Jatalog/testutil"
)

const family = `
parent(tom, bob).
parent(tom, liz).
parent(bob, ann).
parent(bob, pat).
parent(pat, jim).
female(liz).
female(ann).
female(pat).
age(tom, 70).
age(bob, 45).
age(liz, 41).
age(ann, 19).
age(pat, 17).
age(jim, 2).

ancestor(X, Y) :- parent(X, Y).
ancestor(X, Y) :- parent(X, Z), ancestor(Z, Y).
sibling(X, Y) :- parent(P, X), parent(P, Y), X <> Y.
mother(M, C) :- parent(M, C), female(M).
adult(X) :- age(X, A), A >= 18.
`

type queryCase struct {
	fln   testutil.FileLineNumber
	query string
	want  []string
	fail  bool
}

func fln() testutil.FileLineNumber {
	return testutil.MakeFileLineNumber()
}

func newEngine(t *testing.T, flgs flags.Flags) *engine.Engine {
	t.Helper()

	kv, err := kvstore.MakeBTreeKV()
	if err != nil {
		t.Fatal(err)
	}
	st, err := storage.NewStore("test", kv)
	if err != nil {
		t.Fatal(err)
	}
	e, err := engine.NewEngine(st, flgs)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// load executes every statement of src except queries.
func load(t *testing.T, e *engine.Engine, src string) {
	t.Helper()

	ctx := context.Background()
	p := parser.NewParser(strings.NewReader(src), "test")
	for {
		s, err := p.Parse()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Parse(%q) failed with %s", src, err)
		}

		switch s := s.(type) {
		case *stmt.Assert:
			err = e.Assert(ctx, s.Fact)
		case *stmt.RuleDef:
			err = e.AddRule(ctx, s.Rule)
		case *stmt.Retract:
			_, err = e.Retract(ctx, s.Goals)
		}
		if err != nil {
			t.Fatalf("%s failed with %s", s, err)
		}
	}
}

func parseGoals(t *testing.T, src string) []datalog.Expr {
	t.Helper()

	s, err := parser.NewParser(strings.NewReader(src), "test").Parse()
	if err != nil {
		t.Fatalf("Parse(%q) failed with %s", src, err)
	}
	switch s := s.(type) {
	case *stmt.Query:
		return s.Goals
	case *stmt.Retract:
		return s.Goals
	}
	t.Fatalf("Parse(%q) got %s want query or retract", src, s)
	return nil
}

func formatSorted(answers datalog.Answers) []string {
	ret := []string{}
	for _, b := range answers {
		ret = append(ret, datalog.FormatBinding(b))
	}
	sort.Strings(ret)
	return ret
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testQueries(t *testing.T, e *engine.Engine, cases []queryCase) {
	t.Helper()

	for _, c := range cases {
		answers, err := e.Query(context.Background(), parseGoals(t, c.query))
		if c.fail {
			if err == nil {
				t.Errorf("%sQuery(%q) did not fail", c.fln, c.query)
			}
			continue
		} else if err != nil {
			t.Errorf("%sQuery(%q) failed with %s", c.fln, c.query, err)
			continue
		}
		if answers == nil {
			t.Errorf("%sQuery(%q) got nil answers", c.fln, c.query)
		}
		got := formatSorted(answers)
		if !equalStrings(got, c.want) {
			t.Errorf("%sQuery(%q) got %v want %v", c.fln, c.query, got, c.want)
		}
	}
}

var familyCases = []queryCase{
	{fln: fln(), query: "parent(tom, X)?", want: []string{"{X: bob}", "{X: liz}"}},
	{fln: fln(), query: "parent(X, ann)?", want: []string{"{X: bob}"}},
	{fln: fln(), query: "parent(tom, bob)?", want: []string{"{}"}},
	{fln: fln(), query: "parent(bob, tom)?", want: []string{}},
	{fln: fln(), query: "unknown(X)?", want: []string{}},
	{fln: fln(), query: "parent(X)?", want: []string{}},
	{
		fln:   fln(),
		query: "ancestor(tom, X)?",
		want:  []string{"{X: ann}", "{X: bob}", "{X: jim}", "{X: liz}", "{X: pat}"},
	},
	{fln: fln(), query: "ancestor(X, jim)?",
		want: []string{"{X: bob}", "{X: pat}", "{X: tom}"}},
	{fln: fln(), query: "ancestor(jim, X)?", want: []string{}},
	{fln: fln(), query: "sibling(ann, X)?", want: []string{"{X: pat}"}},
	{fln: fln(), query: "sibling(X, Y), X < Y?",
		want: []string{"{X: ann, Y: pat}", "{X: bob, Y: liz}"}},
	{fln: fln(), query: "mother(M, jim)?", want: []string{"{M: pat}"}},
	{fln: fln(), query: "adult(X)?",
		want: []string{"{X: ann}", "{X: bob}", "{X: liz}", "{X: tom}"}},
	{fln: fln(), query: "age(X, A), A < 10?", want: []string{"{A: 2, X: jim}"}},
	{fln: fln(), query: "age(X, A), A > 9, A < 20?",
		want: []string{"{A: 17, X: pat}", "{A: 19, X: ann}"}},
	{fln: fln(), query: "parent(tom, _)?", want: []string{"{}"}},
	{fln: fln(), query: "parent(P, _), female(P)?", want: []string{"{P: pat}"}},
	{fln: fln(), query: "X = bob, parent(X, Y)?",
		want: []string{"{X: bob, Y: ann}", "{X: bob, Y: pat}"}},
	{fln: fln(), query: "parent(X, Y), Z = Y?",
		want: []string{
			"{X: bob, Y: ann, Z: ann}",
			"{X: bob, Y: pat, Z: pat}",
			"{X: pat, Y: jim, Z: jim}",
			"{X: tom, Y: bob, Z: bob}",
			"{X: tom, Y: liz, Z: liz}",
		}},
	{fln: fln(), query: "1 < 2?", want: []string{"{}"}},
	{fln: fln(), query: "2 < 1?", want: []string{}},
	{fln: fln(), query: "10 > 9?", want: []string{"{}"}},
}

func TestQuery(t *testing.T) {
	e := newEngine(t, flags.Default())
	load(t, e, family)
	testQueries(t, e, familyCases)
}

func TestNaive(t *testing.T) {
	flgs := flags.Default()
	flgs.SetFlag(flags.SemiNaive, false)
	e := newEngine(t, flgs)
	load(t, e, family)
	testQueries(t, e, familyCases)
}

func TestRecursion(t *testing.T) {
	e := newEngine(t, flags.Default())
	load(t, e, `
edge(a, b). edge(b, c). edge(c, a). edge(c, d).
path(X, Y) :- edge(X, Y).
path(X, Y) :- path(X, Z), path(Z, Y).
`)
	testQueries(t, e, []queryCase{
		{fln: fln(), query: "path(a, X)?",
			want: []string{"{X: a}", "{X: b}", "{X: c}", "{X: d}"}},
		{fln: fln(), query: "path(d, X)?", want: []string{}},
		{fln: fln(), query: "path(X, X)?", want: []string{"{X: a}", "{X: b}", "{X: c}"}},
	})
}

func TestTermIdentity(t *testing.T) {
	e := newEngine(t, flags.Default())
	load(t, e, `
p("a").
p(b).
n(1).
n(2.5).
`)
	testQueries(t, e, []queryCase{
		{fln: fln(), query: "p(a)?", want: []string{}},
		{fln: fln(), query: "p(X), X = a?", want: []string{}},
		{fln: fln(), query: `p("a")?`, want: []string{"{}"}},
		{fln: fln(), query: `p(X), X = "a"?`, want: []string{`{X: "a"}`}},
		{fln: fln(), query: "p(X), X <> b?", want: []string{`{X: "a"}`}},
		{fln: fln(), query: "n(1.0)?", want: []string{}},
		{fln: fln(), query: "n(X), X = 1.0?", want: []string{}},
		{fln: fln(), query: "n(X), X = 1?", want: []string{"{X: 1}"}},
		{fln: fln(), query: "n(X), X >= 1.0, X <= 1.0?", want: []string{"{X: 1}"}},
		{fln: fln(), query: "n(X), X > 2?", want: []string{"{X: 2.5}"}},
	})
}

func TestRetract(t *testing.T) {
	e := newEngine(t, flags.Default())
	load(t, e, family)

	ctx := context.Background()
	cnt, err := e.Retract(ctx, parseGoals(t, "parent(bob, X)~"))
	if err != nil {
		t.Fatalf("Retract(parent(bob, X)) failed with %s", err)
	} else if cnt != 2 {
		t.Errorf("Retract(parent(bob, X)) got %d want 2", cnt)
	}

	cnt, err = e.Retract(ctx, parseGoals(t, "ancestor(tom, ann)~"))
	if err != nil {
		t.Fatalf("Retract(ancestor(tom, ann)) failed with %s", err)
	} else if cnt != 0 {
		t.Errorf("Retract(ancestor(tom, ann)) got %d want 0", cnt)
	}

	cnt, err = e.Retract(ctx, parseGoals(t, "age(X, A), A < 18~"))
	if err != nil {
		t.Fatalf("Retract(age(X, A), A < 18) failed with %s", err)
	} else if cnt != 2 {
		t.Errorf("Retract(age(X, A), A < 18) got %d want 2", cnt)
	}

	testQueries(t, e, []queryCase{
		{fln: fln(), query: "parent(bob, X)?", want: []string{}},
		{fln: fln(), query: "ancestor(tom, X)?", want: []string{"{X: bob}", "{X: liz}"}},
		{fln: fln(), query: "age(X, _)?",
			want: []string{"{X: ann}", "{X: bob}", "{X: liz}", "{X: tom}"}},
	})
}

func TestAddRule(t *testing.T) {
	e := newEngine(t, flags.Default())
	ctx := context.Background()

	bad := []datalog.Rule{
		{
			Head: datalog.NewExpr("p", "X", "Y"),
			Body: []datalog.Expr{datalog.NewExpr("q", "X")},
		},
		{
			Head: datalog.NewExpr("p", "X"),
		},
		{
			Head: datalog.NewExpr("p", "X"),
			Body: []datalog.Expr{datalog.NewExpr("q", "X"), datalog.NewExpr("<", "X", "Y")},
		},
	}
	for _, r := range bad {
		if err := e.AddRule(ctx, r); err == nil {
			t.Errorf("AddRule(%s) did not fail", r)
		}
	}

	if err := e.Assert(ctx, datalog.NewExpr("<", "a", "b")); err == nil {
		t.Error("Assert(a < b) did not fail")
	}
}

func TestRulesPersist(t *testing.T) {
	dataDir := filepath.Join("testdata", "rules")
	err := testutil.CleanDir(dataDir, nil)
	if err != nil {
		t.Fatal(err)
	}

	kv, err := kvstore.MakeBBoltKV(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	st, err := storage.NewStore("bbolt", kv)
	if err != nil {
		t.Fatal(err)
	}
	e, err := engine.NewEngine(st, flags.Default())
	if err != nil {
		t.Fatal(err)
	}
	load(t, e, family)
	st.Close()

	kv, err = kvstore.MakeBBoltKV(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	st, err = storage.NewStore("bbolt", kv)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	e, err = engine.NewEngine(st, flags.Default())
	if err != nil {
		t.Fatal(err)
	}

	testQueries(t, e, []queryCase{
		{fln: fln(), query: "ancestor(bob, X)?",
			want: []string{"{X: ann}", "{X: jim}", "{X: pat}"}},
		{fln: fln(), query: "mother(M, C)?",
			want: []string{"{C: jim, M: pat}"}},
	})
}

func TestCanceled(t *testing.T) {
	e := newEngine(t, flags.Default())
	load(t, e, family)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Query(ctx, parseGoals(t, "ancestor(tom, X)?"))
	if err != context.Canceled {
		t.Errorf("Query(canceled) got %v want %v", err, context.Canceled)
	}
}
