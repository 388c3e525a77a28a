package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemolabs/mnemo/internal/model"
	"github.com/mnemolabs/mnemo/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Search and rank memories",
		Long: "Search memories with hybrid ranking (text match, recency, importance,\n" +
			"access frequency). Querying never counts as an access.",
		Run: runQuery,
	}

	cmd.Flags().StringP("type", "T", "", "Filter by type (comma-separated)")
	cmd.Flags().StringP("importance", "p", "", "Filter by importance (comma-separated)")
	cmd.Flags().StringP("tags", "t", "", "Filter by tags, any match (comma-separated)")
	cmd.Flags().String("since", "", "Only memories created at or after (RFC3339)")
	cmd.Flags().String("until", "", "Only memories created at or before (RFC3339)")
	cmd.Flags().Float64("min-confidence", -1, "Semantic memories below this confidence are excluded")
	cmd.Flags().Bool("include-archived", false, "Include archived memories")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default from config)")
	cmd.Flags().Int("offset", 0, "Skip the first N ranked results")
	cmd.Flags().String("sort", "relevance", "Sort: relevance, recency, importance, access_count")
	cmd.Flags().IntP("budget", "b", 0, "Token budget; pack whole records greedily under it")

	RootCmd.AddCommand(cmd)
}

func runQuery(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	c := criteriaFromFlags(cmd, args)
	eng := newRetrieval(cfg, s)

	budget, _ := cmd.Flags().GetInt("budget")
	if budget > 0 {
		res, err := eng.QueryWithinBudget(cmd.Context(), c, budget, retrieval.NewTokenCost(cfg.Budget.Encoding))
		if err != nil {
			exitErr("query", err)
		}
		printJSON(res)
		return
	}

	scored, err := eng.Query(cmd.Context(), c)
	if err != nil {
		exitErr("query", err)
	}
	printJSON(scored)
}

func criteriaFromFlags(cmd *cobra.Command, args []string) retrieval.Criteria {
	var c retrieval.Criteria
	if len(args) > 0 {
		c.Text = args[0]
	}

	types, _ := cmd.Flags().GetString("type")
	for _, t := range splitList(types) {
		c.Types = append(c.Types, model.MemoryType(t))
	}
	importance, _ := cmd.Flags().GetString("importance")
	for _, p := range splitList(importance) {
		c.Importance = append(c.Importance, model.Importance(p))
	}
	tags, _ := cmd.Flags().GetString("tags")
	c.Tags = splitList(tags)

	if since, _ := cmd.Flags().GetString("since"); since != "" {
		c.Since = parseTime(since)
	}
	if until, _ := cmd.Flags().GetString("until"); until != "" {
		c.Until = parseTime(until)
	}
	if cmd.Flags().Changed("min-confidence") {
		mc, _ := cmd.Flags().GetFloat64("min-confidence")
		c.MinConfidence = &mc
	}

	c.IncludeArchived, _ = cmd.Flags().GetBool("include-archived")
	c.Limit, _ = cmd.Flags().GetInt("limit")
	c.Offset, _ = cmd.Flags().GetInt("offset")
	sortBy, _ := cmd.Flags().GetString("sort")
	c.SortBy = retrieval.SortKey(sortBy)
	return c
}

func parseTime(s string) *time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		exitErr("parse time", err)
	}
	return &ts
}
