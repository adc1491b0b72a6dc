package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harborview-health/intake-cli/internal/questionnaire"
)

var questionsJSON bool

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List the questionnaire's flattened questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := loadQuestionnaire()
		if err != nil {
			return err
		}

		entries := questionnaire.Flatten(q)

		if questionsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		formatQuestions(os.Stdout, entries)
		return nil
	},
}

func init() {
	questionsCmd.Flags().BoolVar(&questionsJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(questionsCmd)
}

// formatQuestions writes the flattened question list to w.
func formatQuestions(out io.Writer, entries []questionnaire.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LINK_ID\tQUESTION")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", e.LinkID, e.Text)
	}
	_ = w.Flush()
}
