package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/harborview-health/intake-cli/internal/model"
)

// PublishRunSummary upserts one page for the run in the run-tracking
// database: transcript source as the title, status, answer count, and
// cost. Matched on the "Run ID" property, so republishing updates the
// existing page.
func PublishRunSummary(ctx context.Context, c Client, dbID string, run *model.Run, published int) error {
	props := buildRunProperties(run, published)

	existing, err := QueryRunPages(ctx, c, dbID, run.ID)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		pageID := string(existing[0].ID)
		if _, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props}); err != nil {
			return eris.Wrap(err, "notion: update run summary")
		}
		return nil
	}

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	}
	if _, err := c.CreatePage(ctx, req); err != nil {
		return eris.Wrap(err, "notion: create run summary")
	}
	return nil
}

func buildRunProperties(run *model.Run, published int) notionapi.Properties {
	title := run.TranscriptSource
	if title == "" {
		title = run.ID
	}

	answers := float64(len(run.Answers))
	publishedCount := float64(published)
	cost := run.Usage.Cost

	return notionapi.Properties{
		"Source": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: title}},
			},
		},
		"Run ID": notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: run.ID}},
			},
		},
		// Select rather than status: the API creates unknown select
		// options on write, while status options must pre-exist.
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(run.Status)},
		},
		"Model": notionapi.SelectProperty{
			Select: notionapi.Option{Name: run.Model},
		},
		"Answers": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: answers,
		},
		"Published": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: publishedCount,
		},
		"Cost": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: cost,
		},
	}
}
