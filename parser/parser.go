package parser

import (
	"fmt"
	"io"
	"runtime"
	"strconv"

	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/parser/scanner"
	"github.com/k3nlo/Jatalog/parser/token"
	"github.com/k3nlo/Jatalog/stmt"
)

type Parser interface {
	Parse() (stmt.Stmt, error)
}

// ReadError is returned by Parse when the input could not be read. The input is not
// resynchronized: every later call returns the same error.
type ReadError struct {
	Err error
}

func (re *ReadError) Error() string {
	return fmt.Sprintf("parser: %s", re.Err)
}

func (re *ReadError) Unwrap() error {
	return re.Err
}

type parser struct {
	scanner   scanner.Scanner
	sctx      *scanner.ScanCtx
	scanned   rune
	unscanned bool
	anonymous int
}

func NewParser(rr io.RuneReader, fn string) Parser {
	var p parser
	p.scanner.Init(rr, fn)
	p.sctx = &scanner.ScanCtx{}
	return &p
}

// Parse returns the next statement or io.EOF at the end of the input. After a syntax error,
// the rest of the failed statement is skipped so that parsing can continue with the next
// one; after a read error, a *ReadError is returned from then on.
func (p *parser) Parse() (s stmt.Stmt, err error) {
	if rerr := p.scanner.Err(); rerr != nil {
		return nil, &ReadError{Err: rerr}
	}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			s = nil
			if rerr := p.scanner.Err(); rerr != nil {
				err = &ReadError{Err: rerr}
				return
			}
			err = r.(error)
			p.skipStatement()
		}
	}()

	if p.scan() == token.EOF {
		return nil, io.EOF
	}
	p.unscan()

	p.anonymous = 0
	s = p.parseStmt()
	return
}

func (p *parser) error(msg string) {
	panic(fmt.Errorf("parser: %s: %s", p.sctx.Position, msg))
}

func (p *parser) scan() rune {
	if p.unscanned {
		p.unscanned = false
		return p.scanned
	}

	p.scanner.Scan(p.sctx)
	p.scanned = p.sctx.Token
	if p.scanned == token.Error {
		p.error(p.sctx.Error.Error())
	}
	return p.scanned
}

func (p *parser) unscan() {
	p.unscanned = true
}

func (p *parser) skipStatement() {
	if p.scanned == token.EOF || token.IsTerminator(p.scanned) {
		p.unscanned = false
		return
	}
	p.unscanned = false

	for {
		p.scanner.Scan(p.sctx)
		if p.sctx.Token == token.EOF || token.IsTerminator(p.sctx.Token) {
			break
		} else if p.sctx.Token == token.Error && p.scanner.Err() != nil {
			break
		}
	}
}

func (p *parser) got() string {
	switch p.scanned {
	case token.EOF:
		return "end of file"
	case token.Identifier:
		return fmt.Sprintf("identifier %s", p.sctx.Identifier)
	case token.Variable:
		return fmt.Sprintf("variable %s", p.sctx.Identifier)
	case token.String:
		return fmt.Sprintf("string %q", p.sctx.String)
	case token.Number:
		return fmt.Sprintf("number %s", p.sctx.Number)
	}

	return token.Format(p.scanned)
}

func (p *parser) expectTokens(tokens ...rune) rune {
	t := p.scan()
	for _, r := range tokens {
		if t == r {
			return r
		}
	}

	var msg string
	if len(tokens) == 1 {
		msg = token.Format(tokens[0])
	} else {
		for i, r := range tokens {
			if i == len(tokens)-1 {
				msg += ", or "
			} else if i > 0 {
				msg += ", "
			}
			msg += token.Format(r)
		}
	}

	p.error(fmt.Sprintf("expected %s got %s", msg, p.got()))
	return 0
}

func (p *parser) maybeToken(mr rune) bool {
	if p.scan() == mr {
		return true
	}
	p.unscan()
	return false
}

func (p *parser) parseStmt() stmt.Stmt {
	first := p.parseGoal()
	if p.maybeToken(token.Implies) {
		body := p.parseGoals()
		p.expectTokens(token.Dot)

		r := datalog.Rule{
			Head: first,
			Body: body,
		}
		if err := r.Validate(); err != nil {
			p.error(err.Error())
		}
		return &stmt.RuleDef{Rule: r}
	}

	goals := []datalog.Expr{first}
	for p.maybeToken(token.Comma) {
		goals = append(goals, p.parseGoal())
	}

	switch p.expectTokens(token.Dot, token.Question, token.Tilde, token.Implies) {
	case token.Dot:
		if len(goals) != 1 {
			p.error("expected a single fact")
		}
		if goals[0].IsBuiltIn() || !goals[0].IsGround() {
			p.error(fmt.Sprintf("fact %s must be ground", goals[0]))
		}
		return &stmt.Assert{Fact: goals[0]}
	case token.Question:
		if _, err := datalog.BoundVariables(goals); err != nil {
			p.error(err.Error())
		}
		return &stmt.Query{Goals: goals}
	case token.Tilde:
		if _, err := datalog.BoundVariables(goals); err != nil {
			p.error(err.Error())
		}
		return &stmt.Retract{Goals: goals}
	}
	p.error("rule head must be a single goal")
	return nil
}

func (p *parser) parseGoals() []datalog.Expr {
	goals := []datalog.Expr{p.parseGoal()}
	for p.maybeToken(token.Comma) {
		goals = append(goals, p.parseGoal())
	}
	return goals
}

func (p *parser) parseGoal() datalog.Expr {
	var lhs string
	if p.scan() == token.Identifier {
		pred := p.sctx.Identifier
		if p.maybeToken(token.LParen) {
			var terms []string
			for {
				terms = append(terms, p.parseTerm())
				if p.expectTokens(token.Comma, token.RParen) == token.RParen {
					break
				}
			}
			return datalog.NewExpr(pred, terms...)
		}

		if _, ok := token.Comparison(p.scan()); !ok {
			p.unscan()
			return datalog.NewExpr(pred)
		}
		p.unscan()
		lhs = pred
	} else {
		p.unscan()
		lhs = p.parseTerm()
	}

	op, ok := token.Comparison(p.scan())
	if !ok {
		p.error(fmt.Sprintf("expected a comparison got %s", p.got()))
	}
	return datalog.NewExpr(op, lhs, p.parseTerm())
}

func (p *parser) parseTerm() string {
	switch p.scan() {
	case token.Identifier:
		return p.sctx.Identifier
	case token.Variable:
		if p.sctx.Identifier == "_" {
			v := fmt.Sprintf("_%d", p.anonymous)
			p.anonymous += 1
			return v
		}
		return p.sctx.Identifier
	case token.String:
		return strconv.Quote(p.sctx.String)
	case token.Number:
		return p.sctx.Number
	}

	p.error(fmt.Sprintf("expected a term got %s", p.got()))
	return ""
}
