package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/k3nlo/Jatalog/flags"
)

func init() {
	jatalogCmd.AddCommand(
		&cobra.Command{
			Use:   "config",
			Short: "List config variables and engine flags with where each value came from",
			Run: func(cmd *cobra.Command, args []string) {
				listConfig(os.Stdout)
			},
		})
}

type configValue struct {
	name string
	by   string
	val  string
}

func configValues() []configValue {
	var values []configValue
	for name, flg := range cfgVars {
		var cv configValue
		cv.name = name

		var used bool
		if flg != nil {
			_, used = usedFlags[flg.Name]
		}
		if used {
			cv.by = "flag"
			cv.val = flg.Value.String()
		} else if obj, ok := cfg[name]; ok {
			cv.by = "config"
			switch obj.(type) {
			case []interface{}, []map[string]interface{}, map[string]interface{}:
				cv.val = "..."
			default:
				cv.val = fmt.Sprintf("%v", obj)
			}
		} else if flg != nil {
			cv.by = "default"
			cv.val = flg.DefValue
		} else {
			continue
		}
		values = append(values, cv)
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].name < values[j].name
	})

	def := flags.Default()
	flags.ListFlags(
		func(nam string, f flags.Flag) {
			cv := configValue{
				name: nam,
				by:   "default",
				val:  fmt.Sprintf("%v", flgs.GetFlag(f)),
			}
			if flgs.GetFlag(f) != def.GetFlag(f) {
				cv.by = "set"
			}
			values = append(values, cv)
		})
	return values
}

func listConfig(w io.Writer) {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"name", "by", "value"})
	for _, cv := range configValues() {
		tw.Append([]string{cv.name, cv.by, cv.val})
	}
	tw.Render()
}
