package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), cfg.DBPath)
	if err != nil {
		exitErr("stats", err)
	}

	if textOutput() {
		fmt.Printf("db: %s (%d bytes)\n", stats.DBPath, stats.DBSizeBytes)
		fmt.Printf("profiles: %d\nknowledge chunks: %d in %d documents\n", stats.Profiles, stats.KnowledgeChunks, stats.Documents)
		fmt.Printf("examples: %d (%d active)\n", stats.Examples, stats.ActiveExamples)
		fmt.Printf("courses: %d\nexercises: %d (%d enabled)\n", stats.Courses, stats.Exercises, stats.EnabledExercise)
		fmt.Printf("campaigns: %d\nproducts: %d\n", stats.Campaigns, stats.Products)
		return
	}
	printJSON(stats)
}
