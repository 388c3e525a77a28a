package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemolabs/mnemo/internal/provenance"
)

func init() {
	cmd := &cobra.Command{
		Use:   "trace <id>",
		Short: "Trace a belief back to its sources",
		Long: "Walk a memory's derivation chain: what it was derived from, how it has\n" +
			"been modified, and every reconsolidation it went through.",
		Args: cobra.ExactArgs(1),
		Run:  runTrace,
	}

	cmd.Flags().Int("depth", 5, "Max derivation depth to follow")
	cmd.Flags().Bool("accesses", false, "Include the access history")
	cmd.Flags().Bool("recons", true, "Include reconsolidation events")
	cmd.Flags().Bool("summary", false, "Print a human-readable summary instead of JSON")

	RootCmd.AddCommand(cmd)
}

func runTrace(cmd *cobra.Command, args []string) {
	depth, _ := cmd.Flags().GetInt("depth")
	accesses, _ := cmd.Flags().GetBool("accesses")
	recons, _ := cmd.Flags().GetBool("recons")
	summary, _ := cmd.Flags().GetBool("summary")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	log := provenance.NewLog(s, newLogger())
	bp, err := log.Trace(cmd.Context(), args[0], provenance.TraceOptions{
		MaxDepth:                depth,
		IncludeAccessHistory:    accesses,
		IncludeReconsolidations: recons,
	})
	if err != nil {
		exitErr("trace", err)
	}

	if summary {
		fmt.Println(bp.Summary)
		return
	}
	printJSON(bp)
}
