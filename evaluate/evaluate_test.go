package evaluate_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/engine"
	"github.com/k3nlo/Jatalog/evaluate"
	"github.com/k3nlo/Jatalog/flags"
	"github.com/k3nlo/Jatalog/parser"
	"github.com/k3nlo/Jatalog/stmt"
	"github.com/k3nlo/Jatalog/storage"
	"github.com/k3nlo/Jatalog/storage/kvstore"
)

type report struct {
	stmt    string
	answers []string
}

type recorder struct {
	reports []report
	kinds   []stmt.Kind
	nilSets int
}

func (rec *recorder) Report(s stmt.Stmt, answers datalog.Answers) error {
	if answers == nil {
		rec.nilSets += 1
	}
	r := report{stmt: s.String(), answers: []string{}}
	for _, b := range answers {
		r.answers = append(r.answers, datalog.FormatBinding(b))
	}
	rec.reports = append(rec.reports, r)
	rec.kinds = append(rec.kinds, s.Kind())
	return nil
}

func newExecutor(t *testing.T) *evaluate.Executor {
	t.Helper()

	kv, err := kvstore.MakeBTreeKV()
	if err != nil {
		t.Fatal(err)
	}
	st, err := storage.NewStore("test", kv)
	if err != nil {
		t.Fatal(err)
	}
	e, err := engine.NewEngine(st, flags.Default())
	if err != nil {
		t.Fatal(err)
	}
	return evaluate.NewExecutor(e, nil)
}

func executeAll(t *testing.T, src string, sink evaluate.Sink) (datalog.Answers, error) {
	t.Helper()

	return newExecutor(t).ExecuteAll(context.Background(),
		parser.NewParser(strings.NewReader(src), "test"), sink)
}

func TestStreaming(t *testing.T) {
	cases := []struct {
		src  string
		want []report
	}{
		{
			src: "parent(tom, bob). parent(tom, X)?",
			want: []report{
				{stmt: "parent(tom, X)?", answers: []string{"{X: bob}"}},
			},
		},
		{
			src: "unknown(X)?",
			want: []report{
				{stmt: "unknown(X)?", answers: []string{}},
			},
		},
		{
			src: "parent(tom, bob). parent(bob, ann). parent(tom, liz).",
		},
		{
			src: `
parent(tom, bob).
parent(tom, X)?
parent(bob, ann).
ancestor(X, Y) :- parent(X, Y).
ancestor(X, Y) :- parent(X, Z), ancestor(Z, Y).
ancestor(tom, X)?
parent(bob, ann)~
ancestor(tom, X)?
parent(tom, bob)?
parent(bob, ann)?
`,
			want: []report{
				{stmt: "parent(tom, X)?", answers: []string{"{X: bob}"}},
				{stmt: "ancestor(tom, X)?", answers: []string{"{X: bob}", "{X: ann}"}},
				{stmt: "ancestor(tom, X)?", answers: []string{"{X: bob}"}},
				{stmt: "parent(tom, bob)?", answers: []string{"{}"}},
				{stmt: "parent(bob, ann)?", answers: []string{}},
			},
		},
	}

	for _, c := range cases {
		var rec recorder
		answers, err := executeAll(t, c.src, &rec)
		if err != nil {
			t.Errorf("ExecuteAll(%q) failed with %s", c.src, err)
			continue
		}
		if answers != nil {
			t.Errorf("ExecuteAll(%q) got %v want nil", c.src, answers)
		}
		if rec.nilSets != 0 {
			t.Errorf("ExecuteAll(%q) reported %d nil answer sets", c.src, rec.nilSets)
		}
		for _, k := range rec.kinds {
			if k != stmt.QueryKind {
				t.Errorf("ExecuteAll(%q) reported a %s statement", c.src, k)
			}
		}
		if len(rec.reports) != len(c.want) {
			t.Errorf("ExecuteAll(%q) got %d reports want %d", c.src, len(rec.reports),
				len(c.want))
			continue
		}
		for rdx := range c.want {
			if !reflect.DeepEqual(rec.reports[rdx], c.want[rdx]) {
				t.Errorf("ExecuteAll(%q)[%d] got %v want %v", c.src, rdx, rec.reports[rdx],
					c.want[rdx])
			}
		}
	}
}

func TestLastOnly(t *testing.T) {
	cases := []struct {
		src  string
		want []string
		none bool
	}{
		{
			src:  "parent(tom, bob). parent(bob, ann). parent(tom, X)? parent(X, ann)?",
			want: []string{"{X: bob}"},
		},
		{
			src:  "parent(tom, bob). parent(tom, X)? unknown(X)?",
			want: []string{},
		},
		{
			src:  "parent(tom, bob). parent(tom, bob)?",
			want: []string{"{}"},
		},
		{
			src:  "parent(tom, bob). parent(tom, X)? parent(bob, ann).",
			want: []string{"{X: bob}"},
		},
		{
			src:  "parent(tom, bob).",
			none: true,
		},
		{
			src:  "",
			none: true,
		},
	}

	for _, c := range cases {
		answers, err := executeAll(t, c.src, nil)
		if err != nil {
			t.Errorf("ExecuteAll(%q) failed with %s", c.src, err)
			continue
		}
		if c.none {
			if answers != nil {
				t.Errorf("ExecuteAll(%q) got %v want nil", c.src, answers)
			}
			continue
		}
		if answers == nil {
			t.Errorf("ExecuteAll(%q) got nil answers", c.src)
			continue
		}
		got := []string{}
		for _, b := range answers {
			got = append(got, datalog.FormatBinding(b))
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("ExecuteAll(%q) got %v want %v", c.src, got, c.want)
		}
	}
}

func TestSinkError(t *testing.T) {
	errSink := errors.New("sink failed")

	var calls int
	sink := evaluate.SinkFunc(
		func(s stmt.Stmt, answers datalog.Answers) error {
			calls += 1
			if calls == 2 {
				return errSink
			}
			return nil
		})

	ex := newExecutor(t)
	src := "p(a). p(X)? q(a). p(a)? q(X)? r(X)?"
	_, err := ex.ExecuteAll(context.Background(), parser.NewParser(strings.NewReader(src), "test"),
		sink)
	if err != errSink {
		t.Errorf("ExecuteAll(%q) got %v want %v", src, err, errSink)
	}
	if calls != 2 {
		t.Errorf("ExecuteAll(%q) got %d calls want 2", src, calls)
	}

	answers, err := ex.Execute(context.Background(),
		&stmt.Query{Goals: []datalog.Expr{datalog.NewExpr("q", "X")}})
	if err != nil {
		t.Fatalf("Execute(q(X)?) failed with %s", err)
	}
	if len(answers) != 1 || answers[0]["X"] != "a" {
		t.Errorf("Execute(q(X)?) got %v want [{X: a}]", answers)
	}
}

func TestAbort(t *testing.T) {
	cases := []struct {
		src     string
		reports int
	}{
		{src: "p(a). p(X)? p(X :- q. p(a)?", reports: 1},
		{src: "p(a). p(X)? p(X). p(a)?", reports: 1},
		{src: "p(X)? q(X) :- r(Y). p(a)?", reports: 1},
		{src: "p(X), X < Y?", reports: 0},
	}

	for _, c := range cases {
		var rec recorder
		_, err := executeAll(t, c.src, &rec)
		if err == nil {
			t.Errorf("ExecuteAll(%q) did not fail", c.src)
		}
		if len(rec.reports) != c.reports {
			t.Errorf("ExecuteAll(%q) got %d reports want %d", c.src, len(rec.reports),
				c.reports)
		}

		answers, err := executeAll(t, c.src, nil)
		if err == nil {
			t.Errorf("ExecuteAll(%q, nil) did not fail", c.src)
		}
		if answers != nil {
			t.Errorf("ExecuteAll(%q, nil) got %v want nil", c.src, answers)
		}
	}
}

func TestIdempotent(t *testing.T) {
	src := `
edge(a, b). edge(b, c). edge(c, d). edge(b, e).
path(X, Y) :- edge(X, Y).
path(X, Y) :- edge(X, Z), path(Z, Y).
path(a, X)?
path(X, d)?
edge(b, c)~
path(a, X)?
`

	var rec1, rec2 recorder
	if _, err := executeAll(t, src, &rec1); err != nil {
		t.Fatalf("ExecuteAll() failed with %s", err)
	}
	if _, err := executeAll(t, src, &rec2); err != nil {
		t.Fatalf("ExecuteAll() failed with %s", err)
	}
	if len(rec1.reports) != 3 {
		t.Errorf("ExecuteAll() got %d reports want 3", len(rec1.reports))
	}
	if !reflect.DeepEqual(rec1.reports, rec2.reports) {
		t.Errorf("ExecuteAll() got %v then %v", rec1.reports, rec2.reports)
	}
}

func TestExecute(t *testing.T) {
	ex := newExecutor(t)
	ctx := context.Background()

	answers, err := ex.Execute(ctx, &stmt.Assert{Fact: datalog.NewExpr("p", "a")})
	if err != nil || answers != nil {
		t.Errorf("Execute(p(a).) got %v, %v want nil, nil", answers, err)
	}
	answers, err = ex.Execute(ctx, &stmt.Query{Goals: []datalog.Expr{datalog.NewExpr("p", "b")}})
	if err != nil {
		t.Errorf("Execute(p(b)?) failed with %s", err)
	} else if answers == nil || len(answers) != 0 {
		t.Errorf("Execute(p(b)?) got %v want []", answers)
	}
	answers, err = ex.Execute(ctx, &stmt.Retract{Goals: []datalog.Expr{datalog.NewExpr("p", "X")}})
	if err != nil || answers != nil {
		t.Errorf("Execute(p(X)~) got %v, %v want nil, nil", answers, err)
	}
	answers, err = ex.Execute(ctx, &stmt.Query{Goals: []datalog.Expr{datalog.NewExpr("p", "X")}})
	if err != nil || len(answers) != 0 {
		t.Errorf("Execute(p(X)?) got %v, %v want [], nil", answers, err)
	}
}

func TestModeOf(t *testing.T) {
	if m := evaluate.ModeOf(nil); m != evaluate.LastOnly {
		t.Errorf("ModeOf(nil) got %s want %s", m, evaluate.LastOnly)
	}
	if m := evaluate.ModeOf(&recorder{}); m != evaluate.Streaming {
		t.Errorf("ModeOf(recorder) got %s want %s", m, evaluate.Streaming)
	}
}

func TestSession(t *testing.T) {
	kv, err := kvstore.MakeBTreeKV()
	if err != nil {
		t.Fatal(err)
	}
	st, err := storage.NewStore("test", kv)
	if err != nil {
		t.Fatal(err)
	}
	e, err := engine.NewEngine(st, flags.Default())
	if err != nil {
		t.Fatal(err)
	}

	ses := evaluate.NewSession(e, "tester", "console", "")
	if ses.String() != "tester@console" {
		t.Errorf("String() got %q want %q", ses.String(), "tester@console")
	}
	ses = evaluate.NewSession(e, "tester", "ssh", "127.0.0.1:1234")
	if ses.String() != "tester@ssh:127.0.0.1:1234" {
		t.Errorf("String() got %q want %q", ses.String(), "tester@ssh:127.0.0.1:1234")
	}

	answers, err := ses.Run(parser.NewParser(strings.NewReader("p(a). p(b). p(X)?"), "test"),
		nil)
	if err != nil {
		t.Fatalf("Run() failed with %s", err)
	}
	if len(answers) != 2 {
		t.Errorf("Run() got %v want 2 answers", answers)
	}
}
