package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list tracked transfers",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeFn, err := openManager()
		if err != nil {
			return err
		}
		defer closeFn()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDIRECTION\tSTATE\tSOURCE\tDESTINATION")
		for _, blob := range m.Transfers() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", blob.ID, blob.Direction, blob.GetState(), blob.Source, blob.Destination)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
