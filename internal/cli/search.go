package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/korody/persona-ai-sub001/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge base",
		Long:  "Run knowledge retrieval only. With --user, hits are re-ranked by the user's diagnostic profile.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("user", "u", "", "User id whose profile drives tier ranking")
	cmd.Flags().StringP("scope", "s", "main", "Owning scope of the corpus")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default: KNOWLEDGE_MATCH_COUNT)")
	cmd.Flags().Float64("threshold", -2, "Similarity threshold (default: KNOWLEDGE_SIMILARITY_THRESHOLD)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	scope, _ := cmd.Flags().GetString("scope")
	limit, _ := cmd.Flags().GetInt("limit")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	query := strings.Join(args, " ")

	sc := retrieval.SearchConfig{Threshold: cfg.Retrieval.KnowledgeThreshold, MatchCount: cfg.Retrieval.KnowledgeMatchCount}
	if limit > 0 {
		sc.MatchCount = limit
	}
	if threshold >= -1 {
		sc.Threshold = threshold
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	profile, err := retrieval.NewProfileLoader(s, log).Load(cmd.Context(), user)
	if err != nil {
		exitErr("load profile", err)
	}

	hits, err := retrieval.NewKnowledgeRetriever(newEmbedder(), s, sc, log).
		Retrieve(cmd.Context(), retrieval.KnowledgeQuery{Text: query, Scope: scope, Profile: profile})
	if err != nil {
		exitErr("search", err)
	}

	if textOutput() {
		for i, h := range hits {
			fmt.Printf("%d. [%s %.3f] %s\n", i+1, h.Tier, h.Similarity, oneLine(h.Chunk.Content, 100))
		}
		return
	}
	if len(hits) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(hits)
}

// oneLine collapses whitespace and cuts s to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
