package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/k3nlo/Jatalog/evaluate"
	"github.com/k3nlo/Jatalog/output"
	"github.com/k3nlo/Jatalog/repl"
	"github.com/k3nlo/Jatalog/server"
)

var (
	runCmd = &cobra.Command{
		Use:   "run [file ...]",
		Short: "Execute statements from files and the command line",
		RunE:  runRun,
	}

	execArgs = []string{}
	format   = "text"
	lastOnly = false
)

func initExecFlags(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&execArgs, "exec", "e", execArgs,
		"`statements` to execute; multiple allowed")
	fs.StringVar(&format, "format", format, "answer format: text, table, or yaml")
	cfgVars["format"] = fs.Lookup("format")
}

func init() {
	fs := runCmd.Flags()
	initStoreFlags(fs)
	initExecFlags(fs)
	fs.BoolVar(&lastOnly, "last-only", lastOnly, "print only the answers of the last query")

	jatalogCmd.AddCommand(runCmd)
}

type input struct {
	typ  string
	addr string
	r    io.Reader
	f    *os.File
}

// openInputs returns the files followed by the statements from the command line; the
// caller must close the files.
func openInputs(args []string) ([]input, error) {
	var inputs []input
	for _, arg := range args {
		f, err := os.Open(arg)
		if err != nil {
			closeInputs(inputs)
			return nil, fmt.Errorf("jatalog: %s", err)
		}
		inputs = append(inputs,
			input{
				typ:  "file",
				addr: arg,
				r:    f,
				f:    f,
			})
	}

	for idx, arg := range execArgs {
		inputs = append(inputs,
			input{
				typ:  "exec-arg",
				addr: strconv.Itoa(idx),
				r:    strings.NewReader(arg),
			})
	}
	return inputs, nil
}

func closeInputs(inputs []input) {
	for _, in := range inputs {
		if in.f != nil {
			in.f.Close()
		}
	}
}

// runInputs executes each input in its own session and stops at the first error.
func runInputs(svr *server.Server, inputs []input, sink evaluate.Sink) error {
	for _, in := range inputs {
		err := svr.HandleSession(repl.Handler(bufio.NewReader(in.r), sink), "startup", in.typ,
			in.addr)
		if err != nil {
			return fmt.Errorf("jatalog: %s: %s", in.addr, err)
		}
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
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

	if lastOnly {
		readers := make([]io.Reader, 0, len(inputs)*2)
		for _, in := range inputs {
			readers = append(readers, in.r, strings.NewReader("\n"))
		}
		return svr.HandleSession(
			repl.LastOnly(bufio.NewReader(io.MultiReader(readers...)), os.Stdout),
			"startup", "last-only", "")
	}

	sink, closer, err := output.Sink(format, os.Stdout)
	if err != nil {
		return err
	}
	err = runInputs(svr, inputs, sink)
	cerr := closer.Close()
	if err == nil {
		err = cerr
	}
	return err
}
