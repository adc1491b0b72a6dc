package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/harborview-health/intake-cli/internal/model"
	"github.com/harborview-health/intake-cli/internal/questionnaire"
)

// PublishResult summarizes one publish operation.
type PublishResult struct {
	Created int
	Updated int
}

// Total returns the number of pages written.
func (r PublishResult) Total() int {
	return r.Created + r.Updated
}

// PublishAnswers writes one page per answer entry into the review database.
// Pages already published for the run (matched by Link ID) are updated in
// place, so republishing after a review pass never duplicates rows. Every
// entry is published, including ones whose linkId resolves to no question.
func PublishAnswers(ctx context.Context, c Client, dbID string, runID string, index questionnaire.Index, entries []model.AnswerEntry) (*PublishResult, error) {
	existing, err := QueryRunPages(ctx, c, dbID, runID)
	if err != nil {
		return nil, err
	}
	byLink := make(map[string]string, len(existing))
	for _, p := range existing {
		if link := richTextValue(p.Properties["Link ID"]); link != "" {
			byLink[link] = string(p.ID)
		}
	}

	res := &PublishResult{}
	for _, e := range entries {
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "notion: publish answers cancelled")
		}

		props := buildAnswerProperties(runID, index, e)

		if pageID, ok := byLink[e.LinkID]; ok && e.LinkID != "" {
			if _, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props}); err != nil {
				return res, eris.Wrap(err, "notion: update answer page")
			}
			res.Updated++
			continue
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: props,
		}
		if _, err := c.CreatePage(ctx, req); err != nil {
			return res, eris.Wrap(err, "notion: create answer page")
		}
		res.Created++
	}

	return res, nil
}

// buildAnswerProperties converts one answer entry to Notion page properties.
// The title column holds the question text, falling back to the raw linkId
// when the questionnaire does not resolve it.
func buildAnswerProperties(runID string, index questionnaire.Index, e model.AnswerEntry) notionapi.Properties {
	question := index.Lookup(e.LinkID)
	if question == "" {
		question = e.LinkID
	}

	props := notionapi.Properties{
		"Question": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: question}},
			},
		},
		"Answer": notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: e.DisplayAnswer()}},
			},
		},
		"Link ID": notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: e.LinkID}},
			},
		},
		"Run ID": notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: runID}},
			},
		},
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{
				Name: "For Review",
			},
		},
	}

	// Reviewers see the full candidate set for multi-choice questions.
	if e.Kind == model.AnswerList && len(e.Candidates) > 0 {
		props["Candidates"] = notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: strings.Join(e.Candidates, ", ")}},
			},
		}
	}

	return props
}

// richTextValue extracts the concatenated plain text of a rich_text
// property, tolerating both value and pointer forms.
func richTextValue(p notionapi.Property) string {
	var rts []notionapi.RichText
	switch v := p.(type) {
	case *notionapi.RichTextProperty:
		rts = v.RichText
	case notionapi.RichTextProperty:
		rts = v.RichText
	default:
		return ""
	}
	var b strings.Builder
	for _, rt := range rts {
		if rt.PlainText != "" {
			b.WriteString(rt.PlainText)
			continue
		}
		if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}
