// Package cli implements the persona-context CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/korody/persona-ai-sub001/internal/config"
	"github.com/korody/persona-ai-sub001/internal/embedding"
	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/store"
)

var (
	dbPath     string
	formatFlag string

	cfg *config.Config
	log *logger.Logger
)

const rootLong = "Retrieves profile-aware knowledge, few-shot examples, exercise recommendations and offers " +
	"for a chat turn and assembles them into one instruction prompt. SQLite-backed, single binary."

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:               "persona-context",
	Short:             "Context builder for a five-element wellbeing assistant",
	Long:              rootLong,
	PersistentPreRun:  setup,
	PersistentPostRun: teardown,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $PERSONA_DB or ~/.persona-context/persona.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func setup(cmd *cobra.Command, args []string) {
	// A missing .env is normal; the environment still applies.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load()
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	mode := "development"
	if cfg.IsProduction() {
		mode = "production"
	}
	log, err = logger.New(mode, cfg.LogSalt)
	if err != nil {
		exitErr("init logger", err)
	}
}

func teardown(cmd *cobra.Command, args []string) {
	if log != nil {
		log.Sync()
	}
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath)
}

func newEmbedder() embedding.Embedder {
	return embedding.New(cfg.Embedding)
}

func textOutput() bool { return formatFlag == "text" }

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
