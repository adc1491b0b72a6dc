package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview-health/intake-cli/internal/model"
	"github.com/harborview-health/intake-cli/internal/pipeline"
	"github.com/harborview-health/intake-cli/internal/questionnaire"
)

var (
	exportRunID string
	exportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored run's answers as CSV or XLSX",
	Long:  "Writes the run's review table to --out (.csv or .xlsx by extension), or CSV to stdout when --out is omitted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, exportRunID)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if len(run.Answers) == 0 {
			return eris.Errorf("run %s has no answers to export (status %s)", exportRunID, run.Status)
		}

		q, err := loadQuestionnaire()
		if err != nil {
			return err
		}
		index := questionnaire.BuildIndex(questionnaire.Flatten(q))
		rs := &model.ResultSet{Entries: run.Answers}

		if exportOut == "" {
			return pipeline.WriteCSV(os.Stdout, index, rs)
		}

		if err := exportResultSet(exportOut, index, rs); err != nil {
			return err
		}
		zap.L().Info("export written",
			zap.String("run_id", run.ID),
			zap.String("path", exportOut),
			zap.Int("rows", len(rs.Entries)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "run ID to export (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file; .xlsx for a workbook, anything else for CSV")
	_ = exportCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(exportCmd)
}

// exportResultSet writes the review table to path, picking the format
// from the extension.
func exportResultSet(path string, index questionnaire.Index, rs *model.ResultSet) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return pipeline.ExportXLSX(path, index, rs)
	}
	return pipeline.ExportCSV(path, index, rs)
}
