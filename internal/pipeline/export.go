package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/harborview-health/intake-cli/internal/model"
	"github.com/harborview-health/intake-cli/internal/questionnaire"
)

// exportColumns defines the ordered review CSV output columns.
var exportColumns = []string{"Question", "Answer"}

// WriteCSV writes the result set as a review CSV. Every entry becomes a
// row: a question missing from the index falls back to the raw linkId,
// then to an empty cell, so no extracted answer disappears from review.
func WriteCSV(w io.Writer, index questionnaire.Index, rs *model.ResultSet) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(exportColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	for _, e := range rs.Entries {
		if err := cw.Write(buildRow(index, e)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}

	return nil
}

// ToCSV renders the result set as a CSV string.
func ToCSV(index questionnaire.Index, rs *model.ResultSet) (string, error) {
	var sb strings.Builder
	if err := WriteCSV(&sb, index, rs); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ExportCSV writes the review CSV to a file.
func ExportCSV(path string, index questionnaire.Index, rs *model.ResultSet) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer f.Close()

	return WriteCSV(f, index, rs)
}

// ExportXLSX writes the result set as a single-sheet workbook carrying
// the same rows as the CSV export.
func ExportXLSX(path string, index questionnaire.Index, rs *model.ResultSet) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Answers")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range exportColumns {
		header.AddCell().SetString(col)
	}
	for _, e := range rs.Entries {
		row := sheet.AddRow()
		for _, v := range buildRow(index, e) {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

// buildRow maps one answer entry to a review row.
func buildRow(index questionnaire.Index, e model.AnswerEntry) []string {
	question := index.Lookup(e.LinkID)
	if question == "" {
		question = e.LinkID
	}
	return []string{question, e.DisplayAnswer()}
}
