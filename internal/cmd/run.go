package cmd

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dativo-io/veil/internal/audit"
	"github.com/dativo-io/veil/internal/config"
	"github.com/dativo-io/veil/internal/dataset"
	"github.com/dativo-io/veil/internal/ledger"
	"github.com/dativo-io/veil/internal/pipeline"
	"github.com/dativo-io/veil/internal/recognizer"
	"github.com/dativo-io/veil/internal/scanner"
)

var (
	runInput         string
	runOutput        string
	runLedger        string
	runContentColumn string
	runSample        int
	runTypes         []string
	runPatternFile   string
	runResumeFrom    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Anonymize a resume dataset",
	Long: `Run reads a CSV dataset, anonymizes one text blob per row, and writes the
result next to a ledger of the unique PII values removed per document.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "run")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.EnsureDataDir(); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		categories := cfg.Categories
		if len(runTypes) > 0 {
			categories = runTypes
		}
		selected, err := recognizer.ParseCategories(categories)
		if err != nil {
			return err
		}

		defaults, err := recognizer.Defaults()
		if err != nil {
			return err
		}
		layers := [][]recognizer.Config{defaults}
		if runPatternFile != "" {
			rf, err := recognizer.LoadFile(runPatternFile)
			if err != nil {
				return err
			}
			if rf != nil {
				layers = append(layers, rf.Recognizers)
			}
		}
		recs, err := recognizer.Build(recognizer.Merge(layers...), selected)
		if err != nil {
			return err
		}

		strategies := []scanner.Strategy{scanner.NewPatternStrategy(recs, selected)}
		if cfg.AnalyzerURL != "" {
			strategies = append(strategies, scanner.NewRemoteStrategy(
				cfg.AnalyzerURL, selected,
				scanner.WithThreshold(cfg.ScoreThreshold),
				scanner.WithRateLimit(10),
			))
			log.Info().Str("analyzer_url", cfg.AnalyzerURL).Float64("threshold", cfg.ScoreThreshold).
				Msg("external analyzer strategy enabled")
		}

		key, err := cfg.LedgerKeyBytes()
		if err != nil {
			return err
		}
		var ledgerOpts []ledger.Option
		if key != nil {
			ledgerOpts = append(ledgerOpts, ledger.WithEncryptionKey(key))
		}
		led := ledger.New(ledgerOpts...)

		pipeOpts := []pipeline.Option{
			pipeline.WithWorkers(cfg.Workers),
			pipeline.WithCheckpoint(runLedger, cfg.CheckpointInterval),
			pipeline.WithSnapshotSchedule(cfg.SnapshotCron),
		}
		if runResumeFrom != "" {
			snap, err := ledger.Load(runResumeFrom, key)
			if err != nil {
				return err
			}
			led.Merge(snap)
			pipeOpts = append(pipeOpts, pipeline.WithSkipKnown())
			log.Info().Str("path", runResumeFrom).Int("documents", led.Len()).Msg("resumed from prior ledger")
		}

		store, err := audit.NewStore(cfg.AuditDBPath())
		if err != nil {
			return err
		}
		defer store.Close()
		runID := uuid.NewString()
		pipeOpts = append(pipeOpts, pipeline.WithAudit(store, runID))

		table, err := dataset.ReadCSV(runInput)
		if err != nil {
			return err
		}
		log.Info().Int("rows", len(table.Rows)).Str("path", runInput).Msg("dataset loaded")
		if runSample > 0 {
			table = table.Sample(runSample, 42)
			log.Info().Int("rows", len(table.Rows)).Msg("sampled rows for processing")
		}
		texts, usedColumns := table.ContentTexts(runContentColumn)
		log.Info().Strs("columns", usedColumns).Msg("content columns selected")

		results, err := pipeline.New(strategies, led, pipeOpts...).Run(ctx, texts)
		if err != nil {
			return err
		}

		anonymized := make([]string, len(results))
		failures := 0
		for i, r := range results {
			anonymized[i] = r.Text
			if r.Status == audit.StatusFailed {
				failures++
			}
		}

		if err := dataset.WriteCSV(runOutput, table, "anonymized_content", anonymized); err != nil {
			return err
		}
		if err := led.Finalize(runLedger); err != nil {
			// The in-memory ledger survives a failed write; surface it so the
			// operator can re-point the path and keep the checkpoints.
			return err
		}

		logStats(led, len(results), failures, runID)
		return nil
	},
}

func logStats(led *ledger.Ledger, documents, failures int, runID string) {
	stats := led.Stats()
	pct := 0.0
	if documents > 0 {
		pct = float64(stats.Documents) / float64(documents) * 100
	}

	type catCount struct {
		name  string
		count int
	}
	counts := make([]catCount, 0, len(stats.PerCategory))
	for name, n := range stats.PerCategory {
		counts = append(counts, catCount{name, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})

	ev := log.Info().
		Str("run_id", runID).
		Int("documents", documents).
		Int("documents_with_pii", stats.Documents).
		Float64("pii_percent", pct).
		Int("entities", stats.TotalEntities).
		Int("failures", failures)
	for _, c := range counts {
		ev = ev.Int("category_"+c.name, c.count)
	}
	ev.Msg("run complete")
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "input CSV file (required)")
	runCmd.Flags().StringVar(&runOutput, "output", "anonymized.csv", "output CSV file")
	runCmd.Flags().StringVar(&runLedger, "ledger", "pii_ledger.json", "ledger output file")
	runCmd.Flags().StringVar(&runContentColumn, "content-column", "content", "column holding document text")
	runCmd.Flags().IntVar(&runSample, "sample", 0, "process only N randomly sampled rows (debug)")
	runCmd.Flags().StringSliceVar(&runTypes, "types", nil, "categories to anonymize (default: all)")
	runCmd.Flags().StringVar(&runPatternFile, "pattern-file", "", "recognizer override YAML layered over the built-in catalogue")
	runCmd.Flags().StringVar(&runResumeFrom, "resume-from", "", "prior ledger or checkpoint to load; already-seen documents are skipped")
	_ = runCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(runCmd)
}
