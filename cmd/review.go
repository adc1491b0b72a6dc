package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview-health/intake-cli/internal/model"
	"github.com/harborview-health/intake-cli/internal/questionnaire"
)

var (
	reviewRunID string
	reviewPicks []string
	reviewOut   string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a run's answers and override selections",
	Long:  "Shows a stored run's answers. With --select N=value, replaces the selection of the Nth answer with one of its candidates and saves the result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, reviewRunID)
		if err != nil {
			return eris.Wrap(err, "review")
		}
		if run.Status != model.RunStatusComplete {
			return eris.Errorf("run %s is %s; only complete runs can be reviewed", reviewRunID, run.Status)
		}

		q, err := loadQuestionnaire()
		if err != nil {
			return err
		}
		index := questionnaire.BuildIndex(questionnaire.Flatten(q))

		rs := &model.ResultSet{Entries: run.Answers}

		if len(reviewPicks) > 0 {
			for _, pick := range reviewPicks {
				idx, value, err := parseSelection(pick)
				if err != nil {
					return err
				}
				if err := rs.Select(idx, value); err != nil {
					return err
				}
			}

			if err := st.UpdateRunAnswers(ctx, run.ID, rs.Entries); err != nil {
				return eris.Wrap(err, "save review")
			}
			zap.L().Info("selections saved",
				zap.String("run_id", run.ID),
				zap.Int("overrides", len(reviewPicks)),
			)
		}

		if reviewOut != "" {
			if err := exportResultSet(reviewOut, index, rs); err != nil {
				return err
			}
			zap.L().Info("export written", zap.String("path", reviewOut))
		}

		formatReview(os.Stdout, index, rs.Entries)
		return nil
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewRunID, "run", "", "run ID to review (required)")
	reviewCmd.Flags().StringArrayVar(&reviewPicks, "select", nil, "override selection, as N=value (repeatable)")
	reviewCmd.Flags().StringVar(&reviewOut, "out", "", "write a review export (.csv or .xlsx)")
	_ = reviewCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(reviewCmd)
}

// parseSelection splits an N=value override into its parts.
func parseSelection(pick string) (int, string, error) {
	idxStr, value, ok := strings.Cut(pick, "=")
	if !ok || idxStr == "" {
		return 0, "", eris.Errorf("bad --select %q (want N=value)", pick)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return 0, "", eris.Errorf("bad --select %q: %q is not a number", pick, idxStr)
	}
	return idx, value, nil
}

// formatReview writes the answers with their candidate sets to w.
func formatReview(out io.Writer, index questionnaire.Index, entries []model.AnswerEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tQUESTION\tANSWER\tCANDIDATES")

	for i, e := range entries {
		question := index.Lookup(e.LinkID)
		if question == "" {
			question = e.LinkID
		}
		if len(question) > 40 {
			question = question[:37] + "..."
		}

		candidates := ""
		if e.Kind == model.AnswerList {
			candidates = strings.Join(e.Candidates, " | ")
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, question, e.DisplayAnswer(), candidates)
	}
	_ = w.Flush()
}
