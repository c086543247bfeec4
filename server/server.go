package server

import (
	"context"
	"errors"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/k3nlo/Jatalog/engine"
	"github.com/k3nlo/Jatalog/evaluate"
)

var ErrServerClosed = errors.New("server: closed")

// Handler serves one connection: statements are read from rr and answers written to w.
type Handler func(ses *evaluate.Session, rr io.RuneReader, w io.Writer) error

type listener interface {
	Close() error
	Shutdown(ctx context.Context) error
}

type Server struct {
	Handler   Handler
	Engine    *engine.Engine
	mutex     sync.Mutex
	listeners map[listener]struct{}
}

func (svr *Server) addServer(l listener) {
	svr.mutex.Lock()
	defer svr.mutex.Unlock()

	if svr.listeners == nil {
		svr.listeners = map[listener]struct{}{}
	}
	svr.listeners[l] = struct{}{}
}

// HandleSession runs handler with a new session for the engine.
func (svr *Server) HandleSession(handler evaluate.SessionHandler, user, typ,
	addr string) error {

	ses := evaluate.NewSession(svr.Engine, user, typ, addr)
	entry := log.WithField("session", ses.String())
	entry.Info("session started")

	err := handler(ses)
	if err != nil {
		entry.WithField("error", err.Error()).Error("session failed")
	} else {
		entry.Info("session done")
	}
	return err
}

// Handle serves one connection with Handler and returns its error.
func (svr *Server) Handle(rr io.RuneReader, w io.Writer, user, typ, addr string,
	interactive bool) error {

	return svr.HandleSession(
		func(ses *evaluate.Session) error {
			ses.Interactive = interactive
			return svr.Handler(ses, rr, w)
		}, user, typ, addr)
}

func (svr *Server) Close() error {
	svr.mutex.Lock()
	defer svr.mutex.Unlock()

	var err error
	for l := range svr.listeners {
		lerr := l.Close()
		if lerr != nil && err == nil {
			err = lerr
		}
		delete(svr.listeners, l)
	}
	return err
}

// Shutdown stops accepting connections and waits for the active ones to finish.
func (svr *Server) Shutdown(ctx context.Context) error {
	svr.mutex.Lock()
	listeners := make([]listener, 0, len(svr.listeners))
	for l := range svr.listeners {
		listeners = append(listeners, l)
	}
	svr.mutex.Unlock()

	var err error
	for _, l := range listeners {
		lerr := l.Shutdown(ctx)
		if lerr != nil && err == nil {
			err = lerr
		}
	}
	return err
}
