package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemolabs/mnemo/internal/export"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a snapshot after verifying its checksum",
		Long: "Import a JSON snapshot. The checksum is verified first; a tampered file\n" +
			"is rejected outright. Memories already present are skipped.",
		Args: cobra.ExactArgs(1),
		Run:  runImport,
	}
	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	f, err := os.Open(args[0])
	if err != nil {
		exitErr("import", err)
	}
	defer f.Close()

	snap, err := export.ReadJSON(f)
	if err != nil {
		exitErr("import", err)
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	n, err := export.Import(cmd.Context(), s, snap)
	if err != nil {
		exitErr("import", err)
	}
	fmt.Printf("imported %d of %d memories from %s\n", n, len(snap.Memories), args[0])
}
