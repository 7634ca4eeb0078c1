package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studymesh/ale/internal/corpus"
	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <exercises.json>",
	Short: "Ingest already-analyzed exercises from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
		s, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		var exercises []model.Exercise
		if err := json.Unmarshal(raw, &exercises); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		if err := corpus.New(s.CorpusRepo()).Ingest(cmd.Context(), exercises); err != nil {
			return err
		}

		fmt.Printf("ingested %d exercises\n", len(exercises))
		return nil
	},
}
