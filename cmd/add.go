package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blobxfer/blobxfer/common"
)

var (
	addDirection     string
	addRestorationID string
)

var addCmd = &cobra.Command{
	Use:   "add <source> <destination>",
	Short: "add a new upload or download transfer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeFn, err := openManager()
		if err != nil {
			return err
		}
		defer closeFn()

		var dir common.Direction
		if err := dir.Parse(addDirection); err != nil {
			return fmt.Errorf("invalid --direction %q: %w", addDirection, err)
		}

		blob, err := m.Add(dir, args[0], args[1], addRestorationID, nil)
		if err != nil {
			return err
		}
		fmt.Println(blob.ID.String())
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addDirection, "direction", "upload", "upload or download")
	addCmd.Flags().StringVar(&addRestorationID, "restoration-id", "local", "client restoration id")
	rootCmd.AddCommand(addCmd)
}
