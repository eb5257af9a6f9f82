package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/korody/persona-ai-sub001/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [message]",
		Short: "Build the prompt context for a chat turn",
		Long:  "Load the user's profile, retrieve knowledge, examples, exercises and offers, and assemble the instruction prompt.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().StringP("user", "u", "", "User id (empty for an anonymous turn)")
	cmd.Flags().StringP("scope", "s", "main", "Owning scope of the corpora")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	scope, _ := cmd.Flags().GetString("scope")
	text := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	b := pipeline.NewDefault(s, newEmbedder(), cfg, log)
	bundle, err := b.Build(cmd.Context(), pipeline.Turn{UserID: user, Scope: scope, Text: text})
	if err != nil {
		exitErr("context", err)
	}

	if textOutput() {
		fmt.Println(bundle.Prompt)
		return
	}
	printJSON(bundle)
}
