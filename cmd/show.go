package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prismbench/prism/internal/model"
	"github.com/prismbench/prism/internal/modelid"
)

var (
	flagShowJSON       bool
	flagShowFullModels bool
)

var showCmd = &cobra.Command{
	Use:   "show <config-id> <file-name>",
	Short: "Display a persisted comparison document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		doc, err := buildGateway(cfg).GetByFileName(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("no document %s/%s", args[0], args[1])
		}

		if flagShowJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		}

		printDocument(doc)
		return nil
	},
}

func printDocument(doc *model.ComparisonDocument) {
	opts := modelid.DisplayOptions{
		HideProvider:   !flagShowFullModels,
		HideModelMaker: !flagShowFullModels,
	}

	fmt.Printf("%s — %s (run %s, %s)\n", doc.ConfigID, doc.ConfigTitle, doc.RunLabel, doc.Timestamp)
	fmt.Printf("prompts: %d  effective models: %d\n", len(doc.PromptIDs), len(doc.EffectiveModels))

	fmt.Println("\nmodels:")
	for _, id := range doc.EffectiveModels {
		fmt.Printf("  %s\n", modelid.DisplayLabel(id, opts))
	}

	if doc.Evaluations.SimilarityMatrix != nil {
		fmt.Println("\naverage similarity:")
		for _, a := range doc.EffectiveModels {
			row, ok := doc.Evaluations.SimilarityMatrix[a]
			if !ok {
				continue
			}
			for _, b := range doc.EffectiveModels {
				if v, ok := row[b]; ok && a < b {
					fmt.Printf("  %s ~ %s: %.3f\n", modelid.DisplayLabel(a, opts), modelid.DisplayLabel(b, opts), v)
				}
			}
		}
	}

	if doc.Evaluations.CoverageScores != nil {
		fmt.Println("\ncoverage:")
		for _, pid := range doc.PromptIDs {
			scores, ok := doc.Evaluations.CoverageScores[pid]
			if !ok {
				continue
			}
			fmt.Printf("  %s:\n", pid)
			for _, id := range doc.EffectiveModels {
				if v, ok := scores[id]; ok {
					fmt.Printf("    %s: %.2f\n", modelid.DisplayLabel(id, opts), v)
				}
			}
		}
	}

	if len(doc.Errors) > 0 {
		fmt.Println("\nerrors:")
		for _, pid := range doc.PromptIDs {
			for id, msg := range doc.Errors[pid] {
				fmt.Printf("  %s × %s: %s\n", pid, modelid.DisplayLabel(id, opts), msg)
			}
		}
	}
}

func init() {
	showCmd.Flags().BoolVar(&flagShowJSON, "json", false, "print the raw document as JSON")
	showCmd.Flags().BoolVar(&flagShowFullModels, "full-model-ids", false, "show provider and maker prefixes in model labels")
	rootCmd.AddCommand(showCmd)
}
