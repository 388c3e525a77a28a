package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemolabs/mnemo/internal/model"
	"github.com/mnemolabs/mnemo/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate <derived-id>",
		Short: "Mark source memories as consolidated into a derived one",
		Long: "Mark each source memory as consolidated into the derived memory and log\n" +
			"`consolidated` provenance on both sides. The sources stay retrievable.",
		Args: cobra.ExactArgs(1),
		Run:  runConsolidate,
	}

	cmd.Flags().String("sources", "", "Comma-separated source memory ids (required)")
	cmd.MarkFlagRequired("sources")

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	derivedID := args[0]
	sourcesStr, _ := cmd.Flags().GetString("sources")
	sources := splitList(sourcesStr)
	if len(sources) == 0 {
		exitErr("consolidate", fmt.Errorf("at least one source id is required"))
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	ctx := cmd.Context()
	if _, err := s.GetMemory(ctx, derivedID); err != nil {
		exitErr("consolidate", err)
	}

	consolidated := true
	for _, id := range sources {
		if _, err := s.UpdateMemory(ctx, id, store.Patch{IsConsolidated: &consolidated}); err != nil {
			exitErr("consolidate", err)
		}
		_, err := s.AppendProvenance(ctx, &model.ProvenanceEntry{
			MemoryID:     id,
			EventType:    model.EventConsolidated,
			Consolidated: &model.ConsolidatedPayload{DerivedMemoryID: derivedID},
		})
		if err != nil {
			exitErr("consolidate", err)
		}
	}

	_, err := s.AppendProvenance(ctx, &model.ProvenanceEntry{
		MemoryID:     derivedID,
		EventType:    model.EventConsolidated,
		Consolidated: &model.ConsolidatedPayload{SourceMemoryIDs: sources},
	})
	if err != nil {
		exitErr("consolidate", err)
	}
	fmt.Printf("consolidated %d memories into %s\n", len(sources), derivedID)
}
