package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/k3nlo/Jatalog/datalog"
)

// SSHConfig configures the ssh console. Clients may authenticate with a password, when
// CheckPassword is set, or with any key in AuthorizedBytes; with neither, no
// authentication is required.
type SSHConfig struct {
	Address         string
	HostKeysBytes   [][]byte
	AuthorizedBytes []byte
	CheckPassword   func(user, password string) error
}

type sshServer struct {
	mutex    sync.Mutex
	cfg      *ssh.ServerConfig
	listener net.Listener
	conns    map[*ssh.ServerConn]struct{}
	active   sync.WaitGroup
	closing  bool
}

// execRequest and exitStatus are the payloads of the "exec" and "exit-status" requests
// (RFC 4254, 6.5 and 6.10).
type execRequest struct {
	Command string
}

type exitStatus struct {
	Status uint32
}

func parseAuthorizedKeys(b []byte) (map[string]struct{}, error) {
	keys := map[string]struct{}{}
	for len(b) > 0 {
		key, _, _, rest, err := ssh.ParseAuthorizedKey(b)
		if err != nil {
			return nil, fmt.Errorf("server: authorized keys: %s", err)
		}
		keys[string(key.Marshal())] = struct{}{}
		b = rest
	}
	return keys, nil
}

func sshServerConfig(sshCfg SSHConfig) (*ssh.ServerConfig, error) {
	authorized, err := parseAuthorizedKeys(sshCfg.AuthorizedBytes)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ServerConfig{
		NoClientAuth: sshCfg.CheckPassword == nil && len(authorized) == 0,
		AuthLogCallback: func(md ssh.ConnMetadata, method string, err error) {
			if method == "none" {
				return
			}
			entry := log.WithFields(log.Fields{
				"user":   md.User(),
				"addr":   md.RemoteAddr().String(),
				"method": method,
			})
			if err != nil {
				entry.WithField("error", err.Error()).Warn("ssh authentication failed")
			} else {
				entry.Info("ssh authenticated")
			}
		},
		BannerCallback: func(md ssh.ConnMetadata) string {
			return datalog.Version() + "\n"
		},
	}
	if cfg.NoClientAuth {
		log.Warn("ssh client auth: none")
	}

	for _, b := range sshCfg.HostKeysBytes {
		key, err := ssh.ParsePrivateKey(b)
		if err != nil {
			return nil, fmt.Errorf("server: host key: %s", err)
		}
		log.WithField("fingerprint", ssh.FingerprintSHA256(key.PublicKey())).
			Info("ssh host key")
		cfg.AddHostKey(key)
	}

	if checkPassword := sshCfg.CheckPassword; checkPassword != nil {
		cfg.PasswordCallback =
			func(md ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
				return nil, checkPassword(md.User(), string(pass))
			}
		log.Info("ssh client auth: password")
	}

	if len(authorized) > 0 {
		cfg.PublicKeyCallback =
			func(md ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
				if _, ok := authorized[string(key.Marshal())]; !ok {
					return nil, fmt.Errorf("unknown public key %s for %s",
						ssh.FingerprintSHA256(key), md.User())
				}
				return nil, nil
			}
		log.WithField("keys", len(authorized)).Info("ssh client auth: public key")
	}

	return cfg, nil
}

// ListenAndServeSSH serves the console over ssh on the configured address until the
// server is closed or shut down; it then returns ErrServerClosed. A "shell" request gets
// an interactive console; an "exec" request runs its command as statements and exits
// with status 1 if any of them fails.
func (svr *Server) ListenAndServeSSH(sshCfg SSHConfig) error {
	cfg, err := sshServerConfig(sshCfg)
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", sshCfg.Address)
	if err != nil {
		return err
	}
	ss := &sshServer{
		cfg:      cfg,
		listener: l,
		conns:    map[*ssh.ServerConn]struct{}{},
	}
	svr.addServer(ss)
	log.WithField("addr", sshCfg.Address).Info("ssh listening")

	for {
		tcp, err := l.Accept()
		if err != nil {
			ss.mutex.Lock()
			closing := ss.closing
			ss.mutex.Unlock()
			if closing {
				return ErrServerClosed
			}
			log.WithField("error", err.Error()).Error("ssh accept")
			return err
		}

		ss.active.Add(1)
		go func() {
			defer ss.active.Done()
			ss.serveConn(svr, tcp)
		}()
	}
}

func (ss *sshServer) serveConn(svr *Server, tcp net.Conn) {
	conn, chans, reqs, err := ssh.NewServerConn(tcp, ss.cfg)
	if err != nil {
		log.WithFields(log.Fields{
			"addr":  tcp.RemoteAddr().String(),
			"error": err.Error(),
		}).Warn("ssh handshake failed")
		return
	}

	ss.mutex.Lock()
	if ss.closing {
		ss.mutex.Unlock()
		conn.Close()
		return
	}
	ss.conns[conn] = struct{}{}
	ss.mutex.Unlock()

	entry := log.WithFields(log.Fields{
		"user": conn.User(),
		"addr": conn.RemoteAddr().String(),
	})
	entry.Info("ssh connected")

	go ssh.DiscardRequests(reqs)
	for nch := range chans {
		if typ := nch.ChannelType(); typ != "session" {
			nch.Reject(ssh.UnknownChannelType, typ)
			entry.WithField("channel-type", typ).Warn("ssh channel rejected")
			continue
		}
		ch, creqs, err := nch.Accept()
		if err != nil {
			entry.WithField("error", err.Error()).Error("ssh channel accept")
			continue
		}

		ss.active.Add(1)
		go func() {
			defer ss.active.Done()
			ss.serveSession(svr, conn, ch, creqs, entry)
		}()
	}

	ss.mutex.Lock()
	delete(ss.conns, conn)
	ss.mutex.Unlock()
	conn.Close()
	entry.Info("ssh disconnected")
}

// serveSession waits for a shell or exec request on a session channel and hands the
// channel to the server's Handler.
func (ss *sshServer) serveSession(svr *Server, conn *ssh.ServerConn, ch ssh.Channel,
	reqs <-chan *ssh.Request, entry *log.Entry) {

	defer ch.Close()

	user, addr := conn.User(), conn.RemoteAddr().String()
	for req := range reqs {
		entry.WithField("request-type", req.Type).Debug("ssh channel request")

		switch req.Type {
		case "pty-req", "env", "window-change":
			req.Reply(true, nil)
		case "shell":
			req.Reply(true, nil)
			go ssh.DiscardRequests(reqs)

			t := terminal.NewTerminal(ch, "jatalog> ")
			err := svr.Handle(bufio.NewReader(&termReader{term: t}), t, user, "ssh", addr,
				true)
			sendExitStatus(ch, err)
			return
		case "exec":
			var er execRequest
			if err := ssh.Unmarshal(req.Payload, &er); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			go ssh.DiscardRequests(reqs)

			err := svr.Handle(strings.NewReader(er.Command), ch, user, "ssh", addr, false)
			sendExitStatus(ch, err)
			return
		default:
			req.Reply(false, nil)
		}
	}
}

func sendExitStatus(ch ssh.Channel, err error) {
	var es exitStatus
	if err != nil {
		es.Status = 1
	}
	ch.SendRequest("exit-status", false, ssh.Marshal(&es))
}

// termReader feeds lines read from a terminal, one at a time, to the parser.
type termReader struct {
	term *terminal.Terminal
	line []byte
}

func (tr *termReader) Read(b []byte) (int, error) {
	if len(tr.line) == 0 {
		line, err := tr.term.ReadLine()
		if err != nil {
			return 0, err
		}
		tr.line = []byte(line + "\n")
	}

	n := copy(b, tr.line)
	tr.line = tr.line[n:]
	return n, nil
}

func (ss *sshServer) stopListening() error {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if ss.closing {
		return nil
	}
	ss.closing = true
	return ss.listener.Close()
}

// Close stops listening and closes every active connection.
func (ss *sshServer) Close() error {
	err := ss.stopListening()

	ss.mutex.Lock()
	for conn := range ss.conns {
		conn.Close()
		delete(ss.conns, conn)
	}
	ss.mutex.Unlock()
	return err
}

// Shutdown stops listening and waits for the active connections to finish; when ctx is
// done first, they are closed.
func (ss *sshServer) Shutdown(ctx context.Context) error {
	err := ss.stopListening()

	done := make(chan struct{})
	go func() {
		ss.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		log.Info("ssh closing active connections")
		ss.Close()
		return ctx.Err()
	}
}
