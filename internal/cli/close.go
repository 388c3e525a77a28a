package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "close <id>",
		Short: "Close a memory's open lability window",
		Args:  cobra.ExactArgs(1),
		Run:   runClose,
	}
	RootCmd.AddCommand(cmd)
}

func runClose(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	eng, s := openEngine(cfg)
	defer func() {
		eng.Stop()
		s.Close()
	}()

	event, err := eng.CloseWindow(cmd.Context(), args[0])
	if err != nil {
		exitErr("close", err)
	}
	printJSON(event)
}
