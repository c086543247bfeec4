package repl

import (
	"errors"
	"fmt"
	"io"

	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/evaluate"
	"github.com/k3nlo/Jatalog/output"
	"github.com/k3nlo/Jatalog/parser"
)

// Repl executes statements from p until the end of the input, writing each error to w and
// continuing with the next statement. It stops when the input can no longer be read.
func Repl(ses *evaluate.Session, p parser.Parser, w io.Writer, sink evaluate.Sink) {
	for {
		_, err := ses.Run(p, sink)
		if err == nil {
			return
		}
		fmt.Fprintln(w, err)

		var re *parser.ReadError
		if errors.As(err, &re) {
			return
		}
	}
}

// Serve runs a connection as a console: statements from rr are executed and their answers
// written to w as text. An interactive session continues after errors; any other session
// stops at the first error and returns it.
func Serve(ses *evaluate.Session, rr io.RuneReader, w io.Writer) error {
	p := parser.NewParser(rr, ses.String())
	if ses.Interactive {
		Repl(ses, p, w, output.Text(w))
		return nil
	}

	_, err := ses.Run(p, output.Text(w))
	if err != nil {
		fmt.Fprintln(w, err)
	}
	return err
}

// Handler returns a session handler which executes every statement from rr, reporting to
// sink, and stops at the first error.
func Handler(rr io.RuneReader, sink evaluate.Sink) evaluate.SessionHandler {
	return func(ses *evaluate.Session) error {
		_, err := ses.Run(parser.NewParser(rr, ses.String()), sink)
		return err
	}
}

// LastOnly returns a session handler which executes every statement from rr and writes
// only the answers of the last query to w.
func LastOnly(rr io.RuneReader, w io.Writer) evaluate.SessionHandler {
	return func(ses *evaluate.Session) error {
		answers, err := ses.Run(parser.NewParser(rr, ses.String()), nil)
		if err != nil {
			return err
		}
		if answers != nil {
			_, err = fmt.Fprintln(w, datalog.FormatAnswers(answers))
		}
		return err
	}
}
