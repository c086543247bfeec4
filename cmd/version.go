package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k3nlo/Jatalog/datalog"
)

func init() {
	jatalogCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of Jatalog",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(datalog.Version())
			},
		})
}
