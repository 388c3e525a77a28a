package cli

import (
	"github.com/spf13/cobra"

	"github.com/mnemolabs/mnemo/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall <id>",
		Short: "Access a memory, possibly opening a lability window",
		Long: "Record an access on a memory. Qualifying triggers open a lability window\n" +
			"during which update and close may reconsolidate the memory.",
		Args: cobra.ExactArgs(1),
		Run:  runRecall,
	}

	cmd.Flags().String("trigger", string(model.TriggerExplicitRecall),
		"Retrieval trigger: explicit_recall, search, associative, cue_match, random")
	cmd.Flags().StringP("query", "q", "", "The query that led to this access")
	cmd.Flags().String("session", "", "Session id")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	trigger, _ := cmd.Flags().GetString("trigger")
	query, _ := cmd.Flags().GetString("query")
	session, _ := cmd.Flags().GetString("session")

	cfg := loadConfig()
	eng, s := openEngine(cfg)
	defer func() {
		eng.Stop()
		s.Close()
	}()

	res, err := eng.RecordAccess(cmd.Context(), args[0], model.RetrievalContext{
		Trigger:   model.RetrievalTrigger(trigger),
		Query:     query,
		SessionID: session,
	})
	if err != nil {
		exitErr("recall", err)
	}
	printJSON(res)
}
