package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/blobxfer/blobxfer/manager"
)

func controlCommand(use, short string, single func(m *manager.Manager, id uuid.UUID), all func(m *manager.Manager)) *cobra.Command {
	var allFlag bool
	c := &cobra.Command{
		Use:   use + " [transfer-id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := openManager()
			if err != nil {
				return err
			}
			defer closeFn()

			if allFlag || len(args) == 0 {
				all(m)
				return nil
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transfer id %q: %w", args[0], err)
			}
			blob, ok := m.Get(id)
			if !ok {
				return fmt.Errorf("no such transfer: %s", args[0])
			}
			single(m, id)
			_ = blob
			return nil
		},
	}
	c.Flags().BoolVar(&allFlag, "all", false, "apply to every tracked transfer")
	return c
}

var pauseCmd = controlCommand("pause", "pause one transfer, or every transfer with --all",
	func(m *manager.Manager, id uuid.UUID) { blob, _ := m.Get(id); m.Pause(blob) },
	func(m *manager.Manager) { m.PauseAll() },
)

var resumeCmd = controlCommand("resume", "resume one transfer, or every transfer with --all",
	func(m *manager.Manager, id uuid.UUID) { blob, _ := m.Get(id); m.Resume(blob) },
	func(m *manager.Manager) { m.ResumeAll() },
)

var cancelCmd = controlCommand("cancel", "cancel one transfer, or every transfer with --all",
	func(m *manager.Manager, id uuid.UUID) { blob, _ := m.Get(id); m.Cancel(blob) },
	func(m *manager.Manager) { m.CancelAll() },
)

var removeCmd = controlCommand("remove", "remove one transfer, or every transfer with --all",
	func(m *manager.Manager, id uuid.UUID) { blob, _ := m.Get(id); m.Remove(blob) },
	func(m *manager.Manager) { m.RemoveAll() },
)

func init() {
	rootCmd.AddCommand(pauseCmd, resumeCmd, cancelCmd, removeCmd)
}
