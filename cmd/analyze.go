package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview-health/intake-cli/internal/model"
	"github.com/harborview-health/intake-cli/internal/pipeline"
	"github.com/harborview-health/intake-cli/internal/store"
	"github.com/harborview-health/intake-cli/internal/transcript"
	anthropicpkg "github.com/harborview-health/intake-cli/pkg/anthropic"
)

var (
	analyzeTranscript string
	analyzeCharset    string
	analyzeOut        string
	analyzeNoSave     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a single visit transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		q, err := loadQuestionnaire()
		if err != nil {
			return err
		}

		text, err := loadTranscript(analyzeTranscript, analyzeCharset)
		if err != nil {
			return err
		}

		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		analyzer := pipeline.NewAnalyzer(q, client, cfg.Anthropic)

		// Record the run up front so a failed extraction still leaves a
		// failed row in the history.
		var st store.Store
		var runID string
		if !analyzeNoSave {
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			created, err := st.CreateRun(ctx, model.Run{
				TranscriptSource:    analyzeTranscript,
				TranscriptSHA256:    hashText(text),
				QuestionnaireSource: cfg.Questionnaire.Path,
				Model:               cfg.Anthropic.Model,
			})
			if err != nil {
				return eris.Wrap(err, "record run")
			}
			runID = created.ID
		}

		result, err := analyzer.Run(ctx, text)
		if err != nil {
			if runID != "" {
				if fErr := st.FailRun(ctx, runID, err.Error()); fErr != nil {
					zap.L().Warn("failed to record run failure", zap.Error(fErr))
				}
			}
			return eris.Wrap(err, "analyze")
		}

		if runID != "" {
			if err := st.CompleteRun(ctx, runID, result.Answers, result.Usage, result.Duration.Milliseconds()); err != nil {
				return eris.Wrap(err, "record answers")
			}
		} else {
			runID = result.RunID
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", runID),
			zap.Int("answers", len(result.Answers)),
			zap.Float64("cost", result.Usage.Cost),
		)

		if analyzeOut != "" {
			rs := &model.ResultSet{Entries: result.Answers}
			if err := exportResultSet(analyzeOut, analyzer.Index(), rs); err != nil {
				return err
			}
			zap.L().Info("export written", zap.String("path", analyzeOut))
		}

		out := struct {
			RunID      string              `json:"run_id"`
			Answers    []model.AnswerEntry `json:"answers"`
			Usage      model.TokenUsage    `json:"usage"`
			DurationMS int64               `json:"duration_ms"`
		}{runID, result.Answers, result.Usage, result.Duration.Milliseconds()}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTranscript, "transcript", "", "transcript file path (required)")
	analyzeCmd.Flags().StringVar(&analyzeCharset, "charset", "", "transcript charset when not UTF-8 (e.g. windows-1252)")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "write a review export (.csv or .xlsx) after analysis")
	analyzeCmd.Flags().BoolVar(&analyzeNoSave, "no-save", false, "skip recording the run in the store")
	_ = analyzeCmd.MarkFlagRequired("transcript")
	rootCmd.AddCommand(analyzeCmd)
}

// loadTranscript reads a transcript and applies the configured redaction
// before the text leaves the machine.
func loadTranscript(path, charset string) (string, error) {
	var text string
	var err error
	if charset != "" {
		text, err = transcript.LoadCharset(path, charset)
	} else {
		text, err = transcript.Load(path)
	}
	if err != nil {
		return "", err
	}

	if !cfg.Redact.Enabled {
		return text, nil
	}

	var red *transcript.Redactor
	if cfg.Redact.RulesPath != "" {
		red, err = transcript.NewRedactorFromFile(cfg.Redact.RulesPath)
	} else {
		red, err = transcript.NewRedactor()
	}
	if err != nil {
		return "", err
	}
	return red.Redact(text), nil
}

// hashText fingerprints the analyzed text for the run record.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
