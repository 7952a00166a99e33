package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prismbench/prism/internal/blueprint"
	"github.com/prismbench/prism/internal/evaluator"
	"github.com/prismbench/prism/internal/generator"
	ppotel "github.com/prismbench/prism/internal/otel"
	"github.com/prismbench/prism/internal/pipeline"
	"github.com/prismbench/prism/internal/progress"
	"github.com/prismbench/prism/internal/provider"
)

var (
	flagRunLabel   string
	flagRunMethods []string
	flagRunNoCache bool
	flagRunNoHist  bool
	flagRunDryRun  bool
	flagRunJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run <blueprint.yaml>",
	Short: "Execute a comparison blueprint end to end",
	Long: `Run the full comparison pipeline over a blueprint file: generate one
response per (prompt, model, temperature, system-prompt) combination, score
the responses with the selected evaluators, and persist the comparison
document.

Individual response failures never abort the run; they are recorded in the
document's error table. An evaluator failure aborts the run before anything
is persisted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		bp, err := blueprint.Load(args[0])
		if err != nil {
			return err
		}
		if bp.Concurrency == 0 {
			bp.Concurrency = cfg.Concurrency
		}

		tel, err := ppotel.Init(ctx, ppotel.OTELConfig{Endpoint: cfg.OTELEndpoint, Headers: cfg.OTELHeaders})
		if err != nil {
			return err
		}
		defer tel.Shutdown(ctx)
		metrics := tel.Metrics

		cache := provider.NewResponseCache()
		router, openaiClient, err := buildRouter(cfg, cache)
		if err != nil {
			return err
		}

		useCache := !flagRunNoCache
		tracker := progress.NewTracker()

		p := &pipeline.Pipeline{
			Generator: &generator.Generator{
				Provider:  router,
				UseCache:  useCache,
				Tracker:   tracker,
				Metrics:   metrics,
				SessionID: uuid.NewString(),
			},
			Registry: buildRegistry(cfg, router, openaiClient, useCache),
			Gateway:  buildGateway(cfg),
			Metrics:  metrics,
		}

		result, err := p.Execute(ctx, bp, pipeline.Options{
			RunLabel:      flagRunLabel,
			Methods:       flagRunMethods,
			OmitHistories: flagRunNoHist,
			SkipPersist:   flagRunDryRun,
		})
		if err != nil {
			return err
		}

		stats := cache.Stats()
		metrics.RecordCache(ctx, stats.Hits, stats.Misses)

		if flagRunJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result.Document)
		}

		printRunSummary(result, tracker, useCache, stats)
		return nil
	},
}

func printRunSummary(result *pipeline.Result, tracker *progress.Tracker, useCache bool, stats provider.CacheStats) {
	doc := result.Document
	counts := tracker.Counts()

	fmt.Printf("run %s (%s)\n", doc.RunLabel, doc.ConfigTitle)
	fmt.Printf("  prompts: %d  models: %d  tasks: %d ok / %d failed\n",
		len(doc.PromptIDs), len(doc.EffectiveModels),
		counts[progress.StateDone], counts[progress.StateFailed])
	if useCache {
		fmt.Printf("  cache: %d hits / %d misses\n", stats.Hits, stats.Misses)
	}

	if failed := tracker.Failed(); len(failed) > 0 {
		fmt.Println("  failed tasks:")
		for _, e := range failed {
			msg := e.Message
			if i := strings.IndexByte(msg, '\n'); i >= 0 {
				msg = msg[:i]
			}
			fmt.Printf("    %s × %s: %s\n", e.PromptID, e.EffectiveModel, msg)
		}
	}

	if result.FileName != "" {
		fmt.Printf("  saved: %s/%s\n", doc.ConfigID, result.FileName)
	} else {
		fmt.Println("  not persisted")
	}
}

func init() {
	runCmd.Flags().StringVar(&flagRunLabel, "label", "", "run label prefix (default: blueprint content hash alone)")
	runCmd.Flags().StringSliceVar(&flagRunMethods, "methods", []string{evaluator.MethodEmbeddingSimilarity, evaluator.MethodLLMCoverage}, "evaluation methods to run (empty to skip evaluation)")
	runCmd.Flags().BoolVar(&flagRunNoCache, "no-cache", false, "disable the response cache")
	runCmd.Flags().BoolVar(&flagRunNoHist, "no-history", false, "omit full per-turn histories from the document")
	runCmd.Flags().BoolVar(&flagRunDryRun, "dry-run", false, "build the document without persisting it")
	runCmd.Flags().BoolVar(&flagRunJSON, "json", false, "print the full comparison document as JSON")
	rootCmd.AddCommand(runCmd)
}
