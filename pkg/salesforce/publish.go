package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/harborview-health/intake-cli/internal/model"
	"github.com/harborview-health/intake-cli/internal/questionnaire"
)

// PublishResult reports how many answer records were written.
type PublishResult struct {
	Created int
	Updated int
	Failed  int
}

// Total returns the number of records touched, including failures.
func (r *PublishResult) Total() int {
	return r.Created + r.Updated + r.Failed
}

// PublishAnswers writes one answer record per entry to the given SObject,
// updating records that already exist for the run (matched on Link_Id__c)
// and inserting the rest. An empty object name falls back to
// DefaultAnswerObject.
func PublishAnswers(ctx context.Context, c Client, object string, runID string, index questionnaire.Index, entries []model.AnswerEntry) (*PublishResult, error) {
	if object == "" {
		object = DefaultAnswerObject
	}
	if runID == "" {
		return nil, eris.New("sf: run id is required")
	}

	res := &PublishResult{}
	if len(entries) == 0 {
		return res, nil
	}

	existing, err := FindAnswersByRunID(ctx, c, object, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sf: publish answers")
	}
	byLink := make(map[string]string, len(existing))
	for _, rec := range existing {
		if rec.LinkID != "" {
			byLink[rec.LinkID] = rec.ID
		}
	}

	var inserts []map[string]any
	var updates []CollectionRecord
	for _, e := range entries {
		fields := buildAnswerFields(runID, index, e)
		if id, ok := byLink[e.LinkID]; ok && e.LinkID != "" {
			updates = append(updates, CollectionRecord{ID: id, Fields: fields})
			continue
		}
		inserts = append(inserts, fields)
	}

	if len(inserts) > 0 {
		results, insErr := BulkInsertAnswers(ctx, c, object, inserts)
		ok, failed := countResults(results)
		res.Created += ok
		res.Failed += failed
		if insErr != nil {
			return res, eris.Wrap(insErr, "sf: publish answers")
		}
	}

	if len(updates) > 0 {
		results, updErr := BulkUpdateAnswers(ctx, c, object, updates)
		ok, failed := countResults(results)
		res.Updated += ok
		res.Failed += failed
		if updErr != nil {
			return res, eris.Wrap(updErr, "sf: publish answers")
		}
	}

	if res.Failed > 0 {
		return res, eris.New(fmt.Sprintf("sf: publish answers: %d of %d records failed", res.Failed, res.Total()))
	}
	return res, nil
}

// buildAnswerFields maps an answer entry onto the answer object's fields.
// The question text falls back to the raw linkId when the questionnaire
// index cannot resolve it.
func buildAnswerFields(runID string, index questionnaire.Index, e model.AnswerEntry) map[string]any {
	question := index.Lookup(e.LinkID)
	if question == "" {
		question = e.LinkID
	}

	fields := map[string]any{
		"Question__c": question,
		"Answer__c":   e.DisplayAnswer(),
		"Link_Id__c":  e.LinkID,
		"Run_Id__c":   runID,
		"Status__c":   "For Review",
	}
	if e.Kind == model.AnswerList && len(e.Candidates) > 0 {
		fields["Candidates__c"] = strings.Join(e.Candidates, ", ")
	}
	return fields
}

// countResults splits collection results into successes and failures.
func countResults(results []CollectionResult) (ok, failed int) {
	for _, r := range results {
		if r.Success {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}
