package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview-health/intake-cli/internal/model"
	"github.com/harborview-health/intake-cli/internal/pipeline"
	"github.com/harborview-health/intake-cli/internal/store"
	anthropicpkg "github.com/harborview-health/intake-cli/pkg/anthropic"
)

var (
	batchPattern string
	batchCharset string
	batchUseAPI  bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Analyze every transcript in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		q, err := loadQuestionnaire()
		if err != nil {
			return err
		}

		jobs, err := collectJobs(args[0], batchPattern, batchCharset)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			zap.L().Info("no transcripts matched", zap.String("dir", args[0]), zap.String("pattern", batchPattern))
			return nil
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// The flag decides the transport for this invocation; small
		// workloads still go direct under the batcher's threshold.
		acfg := cfg.Anthropic
		acfg.NoBatch = !batchUseAPI

		client := anthropicpkg.NewClient(acfg.Key)
		batcher := pipeline.NewBatcher(q, client, acfg, cfg.Batch.MaxConcurrentTranscripts)

		zap.L().Info("batch starting",
			zap.Int("transcripts", len(jobs)),
			zap.Bool("batch_api", batchUseAPI),
			zap.Int("concurrency", cfg.Batch.MaxConcurrentTranscripts),
		)

		outcome, err := batcher.RunAll(ctx, jobs)
		if err != nil {
			return eris.Wrap(err, "batch run")
		}

		recordOutcome(ctx, st, jobs, outcome)
		formatBatchSummary(os.Stdout, outcome)

		zap.L().Info("batch complete",
			zap.Int("jobs", len(outcome.Jobs)),
			zap.Int("failed", outcome.Failed()),
			zap.Float64("cost", outcome.Usage.Cost),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchPattern, "pattern", "*.txt", "glob for transcript files within the directory")
	batchCmd.Flags().StringVar(&batchCharset, "charset", "", "transcript charset when not UTF-8")
	batchCmd.Flags().BoolVar(&batchUseAPI, "batch-api", false, "submit through the Message Batches API instead of direct calls")
	rootCmd.AddCommand(batchCmd)
}

// collectJobs loads every file in dir whose name matches pattern.
func collectJobs(dir, pattern, charset string) ([]pipeline.Job, error) {
	if pattern == "" {
		pattern = "*"
	}
	if _, err := path.Match(pattern, "probe"); err != nil {
		return nil, eris.Wrapf(err, "bad pattern %q", pattern)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read dir %s", dir)
	}

	var jobs []pipeline.Job
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := path.Match(pattern, entry.Name()); !ok {
			continue
		}

		full := filepath.Join(dir, entry.Name())
		text, err := loadTranscript(full, charset)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, pipeline.Job{Source: full, Transcript: text})
	}
	return jobs, nil
}

// recordOutcome writes one run row per job. Store failures are logged,
// never fatal: the analysis already happened.
func recordOutcome(ctx context.Context, st store.Store, jobs []pipeline.Job, outcome *pipeline.BatchOutcome) {
	for i, jr := range outcome.Jobs {
		created, err := st.CreateRun(ctx, model.Run{
			TranscriptSource:    jr.Source,
			TranscriptSHA256:    hashText(jobs[i].Transcript),
			QuestionnaireSource: cfg.Questionnaire.Path,
			Model:               cfg.Anthropic.Model,
		})
		if err != nil {
			zap.L().Warn("failed to record run", zap.String("source", jr.Source), zap.Error(err))
			continue
		}

		if jr.Err != nil {
			err = st.FailRun(ctx, created.ID, jr.Err.Error())
		} else {
			err = st.CompleteRun(ctx, created.ID, jr.Answers, jr.Usage, jr.Duration.Milliseconds())
		}
		if err != nil {
			zap.L().Warn("failed to record run outcome", zap.String("run_id", created.ID), zap.Error(err))
		}
	}
}

// formatBatchSummary writes a per-transcript result table to w.
func formatBatchSummary(out io.Writer, outcome *pipeline.BatchOutcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATUS\tANSWERS\tERROR")

	for _, jr := range outcome.Jobs {
		status := "complete"
		errMsg := ""
		if jr.Err != nil {
			status = "failed"
			errMsg = jr.Err.Error()
			if len(errMsg) > 60 {
				errMsg = errMsg[:57] + "..."
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", filepath.Base(jr.Source), status, len(jr.Answers), errMsg)
	}
	_ = w.Flush()
}
