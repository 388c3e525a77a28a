package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Apply a field update inside an open lability window",
		Long: "Apply one field-level update to a memory whose lability window is open.\n" +
			"Fields: content, context, importance, tags, confidence, source_memory_ids,\n" +
			"contradicts_ids. The value is parsed as JSON, falling back to a plain string.",
		Args: cobra.ExactArgs(1),
		Run:  runUpdate,
	}

	cmd.Flags().String("field", "", "Field to update (required)")
	cmd.Flags().String("value", "", "New value (required)")
	cmd.Flags().String("reason", "", "Why this update is being made")
	cmd.MarkFlagRequired("field")
	cmd.MarkFlagRequired("value")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	field, _ := cmd.Flags().GetString("field")
	raw, _ := cmd.Flags().GetString("value")
	reason, _ := cmd.Flags().GetString("reason")

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	cfg := loadConfig()
	eng, s := openEngine(cfg)
	defer func() {
		eng.Stop()
		s.Close()
	}()

	m, err := eng.ApplyUpdate(cmd.Context(), args[0], field, value, reason)
	if err != nil {
		exitErr("update", err)
	}
	printJSON(m)
}
