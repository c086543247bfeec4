package cmd

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/k3nlo/Jatalog/output"
	"github.com/k3nlo/Jatalog/repl"
	"github.com/k3nlo/Jatalog/server"
)

var (
	startCmd = &cobra.Command{
		Use:   "start [file ...]",
		Short: "Start the Jatalog ssh console server",
		RunE:  startRun,
	}

	sshAddr        = "localhost:8241"
	authorizedKeys = ""
	hostKeys       = []string{"id_rsa"}
	shutdownWait   = 30 * time.Second
)

func init() {
	fs := startCmd.Flags()
	initStoreFlags(fs)
	initExecFlags(fs)

	fs.StringVar(&sshAddr, "ssh-addr", sshAddr, "`address` used to serve ssh")
	cfgVars["ssh-addr"] = fs.Lookup("ssh-addr")

	fs.StringVar(&authorizedKeys, "ssh-authorized-keys", authorizedKeys,
		"`file` containing authorized ssh keys")
	cfgVars["ssh-authorized-keys"] = fs.Lookup("ssh-authorized-keys")

	fs.StringSliceVar(&hostKeys, "ssh-host-key", hostKeys,
		"`file` containing a ssh host key; multiple allowed")
	cfgVars["ssh-host-keys"] = fs.Lookup("ssh-host-key")

	fs.DurationVar(&shutdownWait, "shutdown-wait", shutdownWait,
		"how long to wait for active connections at shutdown")
	cfgVars["shutdown-wait"] = fs.Lookup("shutdown-wait")

	cfgVars["accounts"] = nil

	jatalogCmd.AddCommand(startCmd)
}

// userAccounts returns the user passwords from the accounts list in the config file:
//
//	accounts = [
//	    {user = "alice", password = "secret"},
//	]
func userAccounts() map[string]string {
	var accounts []map[string]interface{}
	switch val := cfg["accounts"].(type) {
	case []map[string]interface{}:
		accounts = val
	case []interface{}:
		for _, obj := range val {
			switch obj := obj.(type) {
			case map[string]interface{}:
				accounts = append(accounts, obj)
			case []map[string]interface{}:
				accounts = append(accounts, obj...)
			}
		}
	}

	userPasswords := map[string]string{}
	for _, account := range accounts {
		user, ok := account["user"].(string)
		if !ok {
			continue
		}
		password, ok := account["password"].(string)
		if !ok {
			continue
		}
		userPasswords[user] = password
	}
	return userPasswords
}

func startRun(cmd *cobra.Command, args []string) error {
	svr, err := newServer()
	if err != nil {
		return err
	}
	defer closeServer(svr)
	svr.Handler = repl.Serve

	inputs, err := openInputs(args)
	if err != nil {
		return err
	}
	sink, closer, err := output.Sink(format, os.Stdout)
	if err != nil {
		closeInputs(inputs)
		return err
	}
	err = runInputs(svr, inputs, sink)
	closer.Close()
	closeInputs(inputs)
	if err != nil {
		return err
	}

	sshCfg := server.SSHConfig{
		Address: sshAddr,
	}
	for _, hostKey := range hostKeys {
		keyBytes, err := ioutil.ReadFile(hostKey)
		if err != nil {
			return fmt.Errorf("jatalog: host keys: %s", err)
		}
		sshCfg.HostKeysBytes = append(sshCfg.HostKeysBytes, keyBytes)
	}
	if authorizedKeys != "" {
		sshCfg.AuthorizedBytes, err = ioutil.ReadFile(authorizedKeys)
		if err != nil {
			return fmt.Errorf("jatalog: authorized keys: %s", err)
		}
	}

	if userPasswords := userAccounts(); len(userPasswords) > 0 {
		sshCfg.CheckPassword = func(user, password string) error {
			pw, ok := userPasswords[user]
			if !ok {
				return fmt.Errorf("user %s not found", user)
			}
			if password != pw {
				return fmt.Errorf("bad password for user %s", user)
			}
			return nil
		}
	}

	go func() {
		err := svr.ListenAndServeSSH(sshCfg)
		if err != server.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "jatalog: %s\n", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)

	fmt.Println("jatalog: waiting for ^C to shutdown")
	<-ch
	go func() {
		<-ch
		os.Exit(0)
	}()

	fmt.Println("jatalog: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	return svr.Shutdown(ctx)
}
