package repl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/k3nlo/Jatalog/evaluate"
)

const (
	jatalogHistory = ".jatalog_history"
)

type lineReader struct {
	line *liner.State
	r    *strings.Reader
}

func (lr *lineReader) ReadRune() (r rune, size int, err error) {
	for {
		if lr.r == nil {
			s, err := lr.line.Prompt("jatalog> ")
			if err == liner.ErrPromptAborted {
				return 0, 0, io.EOF
			} else if err != nil {
				return 0, 0, err
			}
			if strings.TrimSpace(s) != "" {
				lr.line.AppendHistory(s)
			}
			lr.r = strings.NewReader(s + "\n")
		}

		r, sz, err := lr.r.ReadRune()
		if err == io.EOF {
			lr.r = nil
		} else if err != nil {
			return 0, 0, err
		} else {
			return r, sz, nil
		}
	}
}

// Interact returns a session handler for the console: statements are read a line at a time
// with history and the answers of each query are printed as it is evaluated. Errors are
// printed and the console continues.
func Interact() evaluate.SessionHandler {
	return func(ses *evaluate.Session) error {
		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)

		if f, err := os.Open(jatalogHistory); err == nil {
			line.ReadHistory(f)
			f.Close()
		}

		ses.Interactive = true
		Serve(ses, &lineReader{line: line}, os.Stdout)

		if f, err := os.Create(jatalogHistory); err != nil {
			fmt.Fprintf(os.Stderr, "jatalog: error writing history file, %s: %s\n",
				jatalogHistory, err)
		} else {
			line.WriteHistory(f)
			f.Close()
		}
		return nil
	}
}
