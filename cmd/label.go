package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prismbench/prism/internal/blueprint"
	"github.com/prismbench/prism/internal/runid"
)

var flagLabelPrefix string

var labelCmd = &cobra.Command{
	Use:   "label <blueprint.yaml>",
	Short: "Print a blueprint's content hash and run label",
	Long: `Print the deterministic content hash of a blueprint and the run label a
run would use. Identical resolved blueprints always hash identically, so the
label is suitable for external cache and dedup logic.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bp, err := blueprint.Load(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("content hash: %s\n", runid.ContentHash(bp))
		fmt.Printf("run label:    %s\n", runid.RunLabel(flagLabelPrefix, bp))
		return nil
	},
}

func init() {
	labelCmd.Flags().StringVar(&flagLabelPrefix, "label", "", "user label prefix to combine with the content hash")
	rootCmd.AddCommand(labelCmd)
}
