// Package output provides sinks which render or collect the answers of queries.
package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/evaluate"
	"github.com/k3nlo/Jatalog/stmt"
)

// Text writes each query followed by its answers in console form.
func Text(w io.Writer) evaluate.SinkFunc {
	return func(s stmt.Stmt, answers datalog.Answers) error {
		_, err := fmt.Fprintf(w, "%s\n%s\n", s, datalog.FormatAnswers(answers))
		return err
	}
}

// Table writes each query followed by a table with a column per variable, in the order
// the variables appear in the query.
func Table(w io.Writer) evaluate.SinkFunc {
	return func(s stmt.Stmt, answers datalog.Answers) error {
		_, err := fmt.Fprintln(w, s)
		if err != nil {
			return err
		}

		vars := answers.Variables()
		if q, ok := s.(*stmt.Query); ok {
			vars = q.Variables()
		}
		if len(vars) == 0 || len(answers) == 0 {
			_, err = fmt.Fprintln(w, datalog.FormatAnswers(answers))
			return err
		}

		tw := tablewriter.NewWriter(w)
		tw.SetAutoFormatHeaders(false)
		tw.SetHeader(vars)

		row := make([]string, len(vars))
		for _, b := range answers {
			for vdx, v := range vars {
				row[vdx] = datalog.Unquote(b[v])
			}
			tw.Append(row)
		}
		tw.Render()

		p := "s"
		if len(answers) == 1 {
			p = ""
		}
		_, err = fmt.Fprintf(w, "(%d answer%s)\n", len(answers), p)
		return err
	}
}

type yamlResult struct {
	Query   string              `yaml:"query"`
	Answers []map[string]string `yaml:"answers"`
}

// YAMLSink writes one YAML document per query.
type YAMLSink struct {
	enc *yaml.Encoder
}

func YAML(w io.Writer) *YAMLSink {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &YAMLSink{
		enc: enc,
	}
}

func (ys *YAMLSink) Report(s stmt.Stmt, answers datalog.Answers) error {
	yr := yamlResult{
		Query:   s.String(),
		Answers: make([]map[string]string, 0, len(answers)),
	}
	for _, b := range answers {
		m := make(map[string]string, len(b))
		for v, t := range b {
			m[v] = datalog.Unquote(t)
		}
		yr.Answers = append(yr.Answers, m)
	}
	return ys.enc.Encode(&yr)
}

func (ys *YAMLSink) Close() error {
	return ys.enc.Close()
}

type Result struct {
	Stmt    stmt.Stmt
	Answers datalog.Answers
}

// Collector keeps the answers of every query in memory.
type Collector struct {
	Results []Result
}

func (c *Collector) Report(s stmt.Stmt, answers datalog.Answers) error {
	c.Results = append(c.Results,
		Result{
			Stmt:    s,
			Answers: answers,
		})
	return nil
}

// Sink returns the sink for a named format: text, table, or yaml. The returned closer
// must be called once the run is done.
func Sink(format string, w io.Writer) (evaluate.Sink, io.Closer, error) {
	switch format {
	case "text":
		return Text(w), nopCloser{}, nil
	case "table":
		return Table(w), nopCloser{}, nil
	case "yaml":
		ys := YAML(w)
		return ys, ys, nil
	}
	return nil, nil, fmt.Errorf("output: got %s for format; want text, table, or yaml", format)
}

type nopCloser struct{}

func (_ nopCloser) Close() error {
	return nil
}
