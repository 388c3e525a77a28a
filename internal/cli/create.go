package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemolabs/mnemo/internal/embedding"
	"github.com/mnemolabs/mnemo/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "create [content]",
		Short: "Store a new memory",
		Long:  "Store a new memory. Content can be a positional arg or piped via stdin.",
		Run:   runCreate,
	}

	cmd.Flags().StringP("type", "T", "episodic", "Memory type: episodic, semantic, procedural")
	cmd.Flags().String("context", "", "Surrounding context")
	cmd.Flags().StringP("importance", "p", "normal", "Importance: low, normal, high, critical")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().Bool("embed", false, "Attach an embedding vector via the configured provider")

	// episodic
	cmd.Flags().String("event-type", "", "Episodic: kind of event")
	cmd.Flags().String("location", "", "Episodic: where it happened")
	cmd.Flags().String("participants", "", "Episodic: comma-separated participants")
	cmd.Flags().Float64("valence", 0, "Episodic: emotional valence in [-1, 1]")

	// semantic
	cmd.Flags().String("domain", "", "Semantic: knowledge domain")
	cmd.Flags().Float64("confidence", 0.8, "Semantic: confidence in [0, 1]")
	cmd.Flags().String("sources", "", "Semantic: comma-separated source memory ids")
	cmd.Flags().String("contradicts", "", "Semantic: comma-separated contradicted memory ids")

	// procedural
	cmd.Flags().String("skill", "", "Procedural: skill name")
	cmd.Flags().StringArray("step", nil, "Procedural: one step description (repeatable, in order)")

	RootCmd.AddCommand(cmd)
}

func runCreate(cmd *cobra.Command, args []string) {
	content := readContent(args)
	if content == "" {
		exitErr("create", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	typ, _ := cmd.Flags().GetString("type")
	m := buildMemory(cmd, model.MemoryType(typ), content)

	memContext, _ := cmd.Flags().GetString("context")
	importance, _ := cmd.Flags().GetString("importance")
	tagsStr, _ := cmd.Flags().GetString("tags")
	m.Context = memContext
	m.Importance = model.Importance(importance)
	m.Tags = splitList(tagsStr)

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	if embed, _ := cmd.Flags().GetBool("embed"); embed {
		provider := embedding.NewFromEnv()
		if provider == nil {
			exitErr("create", fmt.Errorf("no embedding provider configured (MNEMO_EMBED_PROVIDER)"))
		}
		vec, err := provider.Embed(cmd.Context(), content)
		if err != nil {
			exitErr("embed", err)
		}
		m.Embedding = vec
	}

	if err := s.CreateMemory(cmd.Context(), m); err != nil {
		exitErr("create", err)
	}
	printJSON(m)
}

func buildMemory(cmd *cobra.Command, typ model.MemoryType, content string) *model.Memory {
	switch typ {
	case model.Episodic:
		eventType, _ := cmd.Flags().GetString("event-type")
		location, _ := cmd.Flags().GetString("location")
		participants, _ := cmd.Flags().GetString("participants")
		detail := model.EpisodicDetail{
			EventType:    eventType,
			Location:     location,
			Participants: splitList(participants),
		}
		if cmd.Flags().Changed("valence") {
			v, _ := cmd.Flags().GetFloat64("valence")
			detail.EmotionalValence = &v
		}
		return model.NewEpisodic(content, detail)

	case model.Semantic:
		domain, _ := cmd.Flags().GetString("domain")
		confidence, _ := cmd.Flags().GetFloat64("confidence")
		sources, _ := cmd.Flags().GetString("sources")
		contradicts, _ := cmd.Flags().GetString("contradicts")
		return model.NewSemantic(content, model.SemanticDetail{
			Domain:          domain,
			Confidence:      confidence,
			SourceMemoryIDs: splitList(sources),
			ContradictsIDs:  splitList(contradicts),
		})

	case model.Procedural:
		skill, _ := cmd.Flags().GetString("skill")
		stepDescs, _ := cmd.Flags().GetStringArray("step")
		steps := make([]model.Step, 0, len(stepDescs))
		for i, desc := range stepDescs {
			steps = append(steps, model.Step{Order: i + 1, Description: desc})
		}
		return model.NewProcedural(content, model.ProceduralDetail{
			SkillName: skill,
			Steps:     steps,
		})

	default:
		exitErr("create", fmt.Errorf("unknown memory type %q", typ))
		return nil
	}
}

func readContent(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " "))
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return strings.TrimSpace(string(b))
	}
	return ""
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
