package datalog

import (
	"sort"
	"strings"
)

// Binding maps a variable name to the ground term it was bound to.
type Binding map[string]string

// Answers is the ordered set of bindings satisfying one query. An empty, non-nil Answers
// means the query was evaluated and has no solutions.
type Answers []Binding

func (b Binding) Variables() []string {
	vars := make([]string, 0, len(b))
	for v := range b {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// Project returns a new binding holding only the named variables of b.
func (b Binding) Project(vars []string) Binding {
	pb := make(Binding, len(vars))
	for _, v := range vars {
		if t, ok := b[v]; ok {
			pb[v] = t
		}
	}
	return pb
}

// Variables returns the sorted union of the variables bound in answers.
func (answers Answers) Variables() []string {
	m := map[string]struct{}{}
	for _, b := range answers {
		for v := range b {
			m[v] = struct{}{}
		}
	}
	vars := make([]string, 0, len(m))
	for v := range m {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// FormatBinding renders b as {X: bob, Y: carol} with the variables sorted.
func FormatBinding(b Binding) string {
	var buf strings.Builder
	buf.WriteByte('{')
	for vdx, v := range b.Variables() {
		if vdx > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(v)
		buf.WriteString(": ")
		buf.WriteString(b[v])
	}
	buf.WriteByte('}')
	return buf.String()
}

// FormatAnswers renders answers the way the console prints them: No. when there are no
// solutions, Yes. when the only solutions bind no variables, and one binding per line
// otherwise.
func FormatAnswers(answers Answers) string {
	if len(answers) == 0 {
		return "No."
	}

	var buf strings.Builder
	for _, b := range answers {
		if len(b) == 0 {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(FormatBinding(b))
	}
	if buf.Len() == 0 {
		return "Yes."
	}
	return buf.String()
}
