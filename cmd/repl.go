package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/k3nlo/Jatalog/output"
	"github.com/k3nlo/Jatalog/repl"
)

var (
	replCmd = &cobra.Command{
		Use:   "repl [file ...]",
		Short: "Run with an interactive console session",
		RunE:  replRun,
	}
)

func init() {
	fs := replCmd.Flags()
	initStoreFlags(fs)
	initExecFlags(fs)

	jatalogCmd.AddCommand(replCmd)
}

func replRun(cmd *cobra.Command, args []string) error {
	svr, err := newServer()
	if err != nil {
		return err
	}
	defer closeServer(svr)

	inputs, err := openInputs(args)
	if err != nil {
		return err
	}
	defer closeInputs(inputs)

	sink, closer, err := output.Sink(format, os.Stdout)
	if err != nil {
		return err
	}
	err = runInputs(svr, inputs, sink)
	closer.Close()
	if err != nil {
		return err
	}

	return svr.HandleSession(repl.Interact(), "startup", "console", "")
}
