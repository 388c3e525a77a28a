package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemolabs/mnemo/internal/export"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the whole memory system as a checksummed snapshot",
		Long: "Export every memory (archived included), the self-schema, the provenance\n" +
			"log and all reconsolidation events. Writes JSON to stdout or to a file;\n" +
			"--html produces a self-contained offline document instead.",
		Args: cobra.MaximumNArgs(1),
		Run:  runExport,
	}

	cmd.Flags().Bool("html", false, "Write a self-contained HTML document")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	html, _ := cmd.Flags().GetBool("html")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	snap, err := export.Snapshot(cmd.Context(), s, cfg.AgentID)
	if err != nil {
		exitErr("export", err)
	}

	out := os.Stdout
	if len(args) == 1 {
		f, err := os.Create(args[0])
		if err != nil {
			exitErr("export", err)
		}
		defer f.Close()
		out = f
	}

	if html {
		err = export.WriteHTML(out, snap)
	} else {
		err = export.WriteJSON(out, snap)
	}
	if err != nil {
		exitErr("export", err)
	}

	if err := s.SaveSnapshot(cmd.Context(), export.Record(snap)); err != nil {
		exitErr("record snapshot", err)
	}
	if len(args) == 1 {
		fmt.Fprintf(os.Stderr, "exported %d memories to %s (sha256 %s)\n",
			len(snap.Memories), args[0], snap.Checksum)
	}
}
