package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemolabs/mnemo/internal/ident"
	"github.com/mnemolabs/mnemo/internal/model"
	"github.com/mnemolabs/mnemo/internal/schema"
)

func init() {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and evolve the agent's self-schema",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current self-schema",
		Run:   runSchemaShow,
	}

	addStatement := &cobra.Command{
		Use:   "add-statement <text>",
		Short: "Add an identity statement",
		Long:  "Add an identity statement. Every statement must cite evidence memories.",
		Args:  cobra.ExactArgs(1),
		Run:   runSchemaAddStatement,
	}
	addStatement.Flags().Float64("centrality", 0.5, "How core this is to identity, [0, 1]")
	addStatement.Flags().Float64("confidence", 0.8, "Confidence in [0, 1]")
	addStatement.Flags().StringP("evidence", "e", "", "Comma-separated evidence memory ids (required)")
	addStatement.MarkFlagRequired("evidence")

	addCapability := &cobra.Command{
		Use:   "add-capability <name>",
		Short: "Add a capability",
		Args:  cobra.ExactArgs(1),
		Run:   runSchemaAddCapability,
	}
	addCapability.Flags().Float64("proficiency", 0.5, "Proficiency in [0, 1]")
	addCapability.Flags().String("trajectory", string(model.Stable), "Trajectory: improving, stable, declining")
	addCapability.Flags().StringP("evidence", "e", "", "Comma-separated evidence memory ids (required)")
	addCapability.MarkFlagRequired("evidence")

	addChapter := &cobra.Command{
		Use:   "add-chapter <title>",
		Short: "Add a narrative chapter",
		Args:  cobra.ExactArgs(1),
		Run:   runSchemaAddChapter,
	}
	addChapter.Flags().String("summary", "", "What this chapter was about")
	addChapter.Flags().String("from", "", "Chapter start (RFC3339, required)")
	addChapter.Flags().String("to", "", "Chapter end (RFC3339, open-ended when omitted)")
	addChapter.Flags().StringP("evidence", "e", "", "Comma-separated evidence memory ids (required)")
	addChapter.MarkFlagRequired("from")
	addChapter.MarkFlagRequired("evidence")

	schemaCmd.AddCommand(show, addStatement, addCapability, addChapter)
	RootCmd.AddCommand(schemaCmd)
}

func runSchemaShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	got, err := schema.NewManager(s, newLogger()).Get(cmd.Context(), cfg.AgentID)
	if err != nil {
		exitErr("schema show", err)
	}
	printJSON(got)
}

func runSchemaAddStatement(cmd *cobra.Command, args []string) {
	centrality, _ := cmd.Flags().GetFloat64("centrality")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	evidence, _ := cmd.Flags().GetString("evidence")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	got, err := schema.NewManager(s, newLogger()).AddStatement(cmd.Context(), cfg.AgentID, model.IdentityStatement{
		ID:              ident.Generate("stmt"),
		Text:            args[0],
		Centrality:      centrality,
		Confidence:      confidence,
		SourceMemoryIDs: splitList(evidence),
		UpdatedAt:       time.Now().UTC(),
	})
	if err != nil {
		exitErr("schema add-statement", err)
	}
	printJSON(got)
}

func runSchemaAddCapability(cmd *cobra.Command, args []string) {
	proficiency, _ := cmd.Flags().GetFloat64("proficiency")
	trajectory, _ := cmd.Flags().GetString("trajectory")
	evidence, _ := cmd.Flags().GetString("evidence")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	got, err := schema.NewManager(s, newLogger()).AddCapability(cmd.Context(), cfg.AgentID, model.Capability{
		Name:              args[0],
		Proficiency:       proficiency,
		Trajectory:        model.Trajectory(trajectory),
		EvidenceMemoryIDs: splitList(evidence),
	})
	if err != nil {
		exitErr("schema add-capability", err)
	}
	printJSON(got)
}

func runSchemaAddChapter(cmd *cobra.Command, args []string) {
	summary, _ := cmd.Flags().GetString("summary")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	evidence, _ := cmd.Flags().GetString("evidence")

	chapter := model.Chapter{
		ID:              ident.Generate("chap"),
		Title:           args[0],
		Summary:         summary,
		From:            *parseTime(from),
		SourceMemoryIDs: splitList(evidence),
	}
	if to != "" {
		chapter.To = parseTime(to)
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	got, err := schema.NewManager(s, newLogger()).AddChapter(cmd.Context(), cfg.AgentID, chapter)
	if err != nil {
		exitErr("schema add-chapter", err)
	}
	printJSON(got)
}
