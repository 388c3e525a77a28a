package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show a memory's provenance log",
		Long:  "Show the append-only provenance log of one memory, oldest first.",
		Args:  cobra.ExactArgs(1),
		Run:   runHistory,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max entries (0 = all)")
	cmd.Flags().Int("offset", 0, "Skip the first N entries")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	entries, err := s.ProvenanceHistory(cmd.Context(), args[0], limit, offset)
	if err != nil {
		exitErr("history", err)
	}
	printJSON(entries)
}
