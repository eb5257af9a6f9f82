package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/korody/persona-ai-sub001/internal/store"
)

const importLong = "Import courses, exercises, knowledge documents, examples, campaigns, products and profiles " +
	"from a JSON file (or stdin). Embeddings must match PERSONA_EMBED_DIMS. A document's chunks replace its previous set. " +
	"Omitted enabled, active and available flags default to true."

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a catalog from JSON",
		Long:  importLong,
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open file", err)
		}
		defer f.Close()
		in = f
	}

	var catalog store.Catalog
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&catalog); err != nil {
		exitErr("parse json", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := s.Import(cmd.Context(), &catalog, cfg.Embedding.Dims)
	if err != nil {
		exitErr("import", err)
	}
	log.Info("catalog imported", "chunks", res.Chunks, "exercises", res.Exercises, "profiles", res.Profiles)

	printJSON(map[string]any{"ok": true, "imported": res})
}
