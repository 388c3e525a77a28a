package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemolabs/mnemo/internal/model"
)

func init() {
	archive := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a memory (logical delete)",
		Long:  "Archive a memory. The record and its provenance stay queryable via --include-archived.",
		Args:  cobra.ExactArgs(1),
		Run:   runArchive,
	}
	archive.Flags().String("reason", "", "Why the memory is being archived")

	restore := &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore an archived memory",
		Args:  cobra.ExactArgs(1),
		Run:   runRestore,
	}
	RootCmd.AddCommand(archive, restore)
}

func runArchive(cmd *cobra.Command, args []string) {
	reason, _ := cmd.Flags().GetString("reason")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	if err := s.ArchiveMemory(cmd.Context(), args[0], time.Now().UTC()); err != nil {
		exitErr("archive", err)
	}
	_, err := s.AppendProvenance(cmd.Context(), &model.ProvenanceEntry{
		MemoryID:  args[0],
		EventType: model.EventArchived,
		Archived:  &model.ArchivedPayload{Reason: reason},
	})
	if err != nil {
		exitErr("archive", err)
	}
	fmt.Printf("archived %s\n", args[0])
}

func runRestore(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	if err := s.RestoreMemory(cmd.Context(), args[0]); err != nil {
		exitErr("restore", err)
	}
	_, err := s.AppendProvenance(cmd.Context(), &model.ProvenanceEntry{
		MemoryID:  args[0],
		EventType: model.EventRestored,
	})
	if err != nil {
		exitErr("restore", err)
	}
	fmt.Printf("restored %s\n", args[0])
}
