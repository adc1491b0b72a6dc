package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// BulkInsertAnswers splits records into batches of 200 (SF Collections API
// limit) and sends them via InsertCollection. On a batch error the results
// from batches that already succeeded are returned alongside the error.
func BulkInsertAnswers(ctx context.Context, c Client, object string, records []map[string]any) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(records); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		results, err := c.InsertCollection(ctx, object, batch)
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk insert %s batch %d-%d", object, start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}

// BulkUpdateAnswers splits records into batches of 200 and sends them via
// UpdateCollection.
func BulkUpdateAnswers(ctx context.Context, c Client, object string, records []CollectionRecord) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(records); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		results, err := c.UpdateCollection(ctx, object, batch)
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk update %s batch %d-%d", object, start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}
