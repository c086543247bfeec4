package evaluate

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/engine"
	"github.com/k3nlo/Jatalog/parser"
)

// Session is one source of statements: a file, a command line argument, the console, or
// an ssh connection.
//
// An interactive session is driven by a person at a console; it keeps going after errors.
type Session struct {
	User        string
	Type        string
	Addr        string
	Interactive bool
	ctx         context.Context
	ex          *Executor
}

type SessionHandler func(ses *Session) error

func NewSession(e *engine.Engine, user, typ, addr string) *Session {
	ses := &Session{
		User: user,
		Type: typ,
		Addr: addr,
		ctx:  context.Background(),
	}
	ses.ex = NewExecutor(e,
		log.WithFields(log.Fields{
			"session": ses.String(),
		}))
	return ses
}

func (ses *Session) String() string {
	s := fmt.Sprintf("%s@%s", ses.User, ses.Type)
	if ses.Addr != "" {
		s = fmt.Sprintf("%s:%s", s, ses.Addr)
	}
	return s
}

func (ses *Session) Context() context.Context {
	return ses.ctx
}

// Run executes the statements from p, reporting to sink, or in LastOnly mode when sink is
// nil.
func (ses *Session) Run(p parser.Parser, sink Sink) (datalog.Answers, error) {
	return ses.ex.ExecuteAll(ses.ctx, p, sink)
}
