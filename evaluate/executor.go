package evaluate

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/engine"
	"github.com/k3nlo/Jatalog/parser"
	"github.com/k3nlo/Jatalog/stmt"
)

type Mode int

const (
	// Streaming reports the answers of every query to a Sink.
	Streaming Mode = iota
	// LastOnly keeps only the answers of the last query and returns them at the end.
	LastOnly
)

func (m Mode) String() string {
	switch m {
	case Streaming:
		return "streaming"
	case LastOnly:
		return "last-only"
	}
	return fmt.Sprintf("mode %d", int(m))
}

// ModeOf returns the mode a run with sink executes in.
func ModeOf(sink Sink) Mode {
	if sink == nil {
		return LastOnly
	}
	return Streaming
}

// Executor applies statements to an engine.
type Executor struct {
	e     *engine.Engine
	entry *log.Entry
}

func NewExecutor(e *engine.Engine, entry *log.Entry) *Executor {
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}
	return &Executor{
		e:     e,
		entry: entry,
	}
}

// Execute evaluates a single statement. Only queries return answers.
func (ex *Executor) Execute(ctx context.Context, s stmt.Stmt) (datalog.Answers, error) {
	ex.entry.WithFields(log.Fields{
		"kind": s.Kind().String(),
		"stmt": s.String(),
	}).Debug("execute")

	switch s := s.(type) {
	case *stmt.Assert:
		return nil, ex.e.Assert(ctx, s.Fact)
	case *stmt.RuleDef:
		return nil, ex.e.AddRule(ctx, s.Rule)
	case *stmt.Retract:
		cnt, err := ex.e.Retract(ctx, s.Goals)
		if err != nil {
			return nil, err
		}
		ex.entry.WithFields(log.Fields{
			"stmt":    s.String(),
			"removed": cnt,
		}).Debug("retract")
		return nil, nil
	case *stmt.Query:
		return ex.e.Query(ctx, s.Goals)
	}
	return nil, fmt.Errorf("evaluate: unexpected statement: %s", s)
}

// ExecuteAll executes every statement from p until the end of the input. With a sink, the
// answers of each query are reported to it and nil is returned. Without a sink, only the
// answers of the last query are kept and returned; nil means there was no query.
//
// The first parse, evaluation, or sink error ends the run and is returned unchanged;
// answers already reported stay reported. A failed run returns no answers.
func (ex *Executor) ExecuteAll(ctx context.Context, p parser.Parser,
	sink Sink) (datalog.Answers, error) {

	mode := ModeOf(sink)

	var last datalog.Answers
	for {
		s, err := p.Parse()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		answers, err := ex.Execute(ctx, s)
		if err != nil {
			return nil, err
		}
		if s.Kind() != stmt.QueryKind {
			continue
		}

		if mode == Streaming {
			err = sink.Report(s, answers)
			if err != nil {
				return nil, err
			}
		} else {
			last = answers
		}
	}

	if mode == LastOnly {
		return last, nil
	}
	return nil, nil
}
