package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/korody/persona-ai-sub001/internal/exercise"
	"github.com/korody/persona-ai-sub001/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recommend [message]",
		Short: "Run the exercise recommendation waterfall",
		Long:  "Try symptoms, generic request, semantic match and element fallback in order and print the winning method.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecommend,
	}

	cmd.Flags().StringP("user", "u", "", "User id for the element fallback")

	RootCmd.AddCommand(cmd)
}

func runRecommend(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	text := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	profile, err := retrieval.NewProfileLoader(s, log).Load(cmd.Context(), user)
	if err != nil {
		exitErr("load profile", err)
	}

	r := exercise.NewRecommender(s, newEmbedder(), exercise.Config{
		SemanticThreshold: cfg.Retrieval.ExerciseThreshold,
		Limit:             cfg.Retrieval.ExerciseLimit,
		SemanticTimeout:   cfg.Timeouts.Semantic,
	}, log)
	rec, err := r.Recommend(cmd.Context(), exercise.Request{Text: text, Profile: profile})
	if err != nil {
		exitErr("recommend", err)
	}

	if textOutput() {
		fmt.Printf("method: %s\n", rec.Method)
		if len(rec.Symptoms) > 0 {
			fmt.Printf("symptoms: %s\n", strings.Join(rec.Symptoms, ", "))
		}
		for _, e := range rec.Exercises {
			fmt.Printf("- %s (%s) %s\n", e.Title, e.ID, e.URL)
		}
		return
	}
	printJSON(rec)
}
