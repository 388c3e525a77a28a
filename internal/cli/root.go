// Package cli implements the mnemo command surface.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnemolabs/mnemo/internal/config"
	"github.com/mnemolabs/mnemo/internal/recon"
	"github.com/mnemolabs/mnemo/internal/retrieval"
	"github.com/mnemolabs/mnemo/internal/store"
)

var (
	dbFlag      string
	configFlag  string
	agentFlag   string
	verboseFlag bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "Persistent, reconsolidating memory for AI agents",
	Long: "mnemo stores typed agent memories with full provenance, opens lability\n" +
		"windows on retrieval, and serves budget-aware recall. SQLite-backed, single binary.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbFlag, "db", "d", "", "Database path (default: $MNEMO_DB or ~/.mnemo/mnemo.db)")
	RootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (yaml)")
	RootCmd.PersistentFlags().StringVar(&agentFlag, "agent", "", "Agent id (default from config)")
	RootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging to stderr")
}

func loadConfig() config.Config {
	cfg, err := config.Load(configFlag)
	if err != nil {
		exitErr("load config", err)
	}
	if dbFlag != "" {
		cfg.DBPath = dbFlag
	}
	if cfg.DBPath == "" {
		if env := os.Getenv("MNEMO_DB"); env != "" {
			cfg.DBPath = env
		} else {
			home, _ := os.UserHomeDir()
			cfg.DBPath = filepath.Join(home, ".mnemo", "mnemo.db")
		}
	}
	if agentFlag != "" {
		cfg.AgentID = agentFlag
	}
	return cfg
}

func newLogger() *zap.Logger {
	if !verboseFlag {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openStore(cfg config.Config) *store.SQLite {
	s, err := store.NewSQLite(cfg.DBPath, newLogger())
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

func openEngine(cfg config.Config) (*recon.Engine, *store.SQLite) {
	s := openStore(cfg)
	return recon.NewEngine(s, cfg.Reconsolidation, newLogger()), s
}

func newRetrieval(cfg config.Config, s *store.SQLite) *retrieval.Engine {
	return retrieval.NewEngine(s, cfg.Retrieval, newLogger())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
