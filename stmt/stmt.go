package stmt

import (
	"fmt"

	"github.com/k3nlo/Jatalog/datalog"
)

type Kind int

const (
	AssertKind Kind = iota
	RuleKind
	RetractKind
	QueryKind
)

func (k Kind) String() string {
	switch k {
	case AssertKind:
		return "assert"
	case RuleKind:
		return "rule"
	case RetractKind:
		return "retract"
	case QueryKind:
		return "query"
	}
	return fmt.Sprintf("kind %d", int(k))
}

// Stmt is one parsed unit of input. Statements are not modified after parsing.
type Stmt interface {
	fmt.Stringer
	Kind() Kind
}

type Assert struct {
	Fact datalog.Expr
}

func (stmt *Assert) String() string {
	return stmt.Fact.String() + "."
}

func (_ *Assert) Kind() Kind {
	return AssertKind
}

type RuleDef struct {
	Rule datalog.Rule
}

func (stmt *RuleDef) String() string {
	return stmt.Rule.String() + "."
}

func (_ *RuleDef) Kind() Kind {
	return RuleKind
}

type Retract struct {
	Goals []datalog.Expr
}

func (stmt *Retract) String() string {
	return datalog.FormatGoals(stmt.Goals) + "~"
}

func (_ *Retract) Kind() Kind {
	return RetractKind
}

type Query struct {
	Goals []datalog.Expr
}

func (stmt *Query) String() string {
	return datalog.FormatGoals(stmt.Goals) + "?"
}

func (_ *Query) Kind() Kind {
	return QueryKind
}

// Variables returns the named variables of the query in order of first appearance;
// anonymous variables are excluded.
func (stmt *Query) Variables() []string {
	return datalog.NamedVariables(stmt.Goals)
}
