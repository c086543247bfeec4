package evaluate

import (
	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/stmt"
)

// Sink receives the answers of each query as soon as it has been evaluated. Report is
// called synchronously, once per query and in input order; answers is never nil and is
// not touched by the executor after Report returns. A non-nil error aborts the run and is
// returned to the caller as is.
type Sink interface {
	Report(s stmt.Stmt, answers datalog.Answers) error
}

type SinkFunc func(s stmt.Stmt, answers datalog.Answers) error

func (f SinkFunc) Report(s stmt.Stmt, answers datalog.Answers) error {
	return f(s, answers)
}
