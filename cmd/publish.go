package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview-health/intake-cli/internal/questionnaire"
	"github.com/harborview-health/intake-cli/pkg/notion"
	sfpkg "github.com/harborview-health/intake-cli/pkg/salesforce"
)

var (
	publishRunID string
	publishTo    string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a run's answers to Notion or Salesforce",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		switch publishTo {
		case "notion", "salesforce":
			if err := cfg.Validate(publishTo); err != nil {
				return err
			}
		default:
			return eris.Errorf("unknown publish target %q (want notion or salesforce)", publishTo)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, publishRunID)
		if err != nil {
			return eris.Wrap(err, "publish")
		}
		if len(run.Answers) == 0 {
			return eris.Errorf("run %s has no answers to publish (status %s)", publishRunID, run.Status)
		}

		q, err := loadQuestionnaire()
		if err != nil {
			return err
		}
		index := questionnaire.BuildIndex(questionnaire.Flatten(q))

		switch publishTo {
		case "notion":
			client := notion.NewClient(cfg.Notion.Token)
			res, err := notion.PublishAnswers(ctx, client, cfg.Notion.AnswerDB, run.ID, index, run.Answers)
			if err != nil {
				return eris.Wrap(err, "publish to notion")
			}
			if cfg.Notion.RunDB != "" {
				if err := notion.PublishRunSummary(ctx, client, cfg.Notion.RunDB, run, res.Total()); err != nil {
					return eris.Wrap(err, "publish run summary")
				}
			}
			zap.L().Info("published to notion",
				zap.String("run_id", run.ID),
				zap.Int("created", res.Created),
				zap.Int("updated", res.Updated),
			)

		case "salesforce":
			sfClient, err := initSalesforce()
			if err != nil {
				return err
			}
			object := cfg.Salesforce.AnswerObject
			if object == "" {
				object = sfpkg.DefaultAnswerObject
			}
			if err := sfpkg.ValidateAnswerObject(ctx, sfClient, object); err != nil {
				return err
			}
			res, err := sfpkg.PublishAnswers(ctx, sfClient, object, run.ID, index, run.Answers)
			if err != nil {
				return eris.Wrap(err, "publish to salesforce")
			}
			zap.L().Info("published to salesforce",
				zap.String("run_id", run.ID),
				zap.Int("created", res.Created),
				zap.Int("updated", res.Updated),
				zap.Int("failed", res.Failed),
			)
		}

		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishRunID, "run", "", "run ID to publish (required)")
	publishCmd.Flags().StringVar(&publishTo, "to", "notion", "publish target: notion or salesforce")
	_ = publishCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(publishCmd)
}
