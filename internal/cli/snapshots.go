package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List recorded exports, newest first",
		Run:   runSnapshots,
	}
	RootCmd.AddCommand(cmd)
}

func runSnapshots(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	recs, err := s.ListSnapshots(cmd.Context())
	if err != nil {
		exitErr("snapshots", err)
	}
	printJSON(recs)
}
