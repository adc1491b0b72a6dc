package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultAnswerObject is the custom SObject that holds published intake answers.
const DefaultAnswerObject = "Intake_Answer__c"

// AnswerRecord represents a published intake answer row in Salesforce.
type AnswerRecord struct {
	ID         string `json:"Id" salesforce:"Id"`
	Question   string `json:"Question__c" salesforce:"Question__c"`
	Answer     string `json:"Answer__c" salesforce:"Answer__c"`
	LinkID     string `json:"Link_Id__c" salesforce:"Link_Id__c"`
	RunID      string `json:"Run_Id__c" salesforce:"Run_Id__c"`
	Candidates string `json:"Candidates__c" salesforce:"Candidates__c"`
	Status     string `json:"Status__c" salesforce:"Status__c"`
}

// answerFields are the SOQL fields selected for answer record queries.
var answerFields = []string{
	"Id", "Question__c", "Answer__c", "Link_Id__c", "Run_Id__c", "Candidates__c", "Status__c",
}

// FindAnswersByRunID queries Salesforce for answer records previously published
// for the given run. Returns an empty slice when none exist.
func FindAnswersByRunID(ctx context.Context, c Client, object string, runID string) ([]AnswerRecord, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE Run_Id__c = '%s'",
		strings.Join(answerFields, ", "),
		object,
		escapeSoql(runID),
	)

	var records []AnswerRecord
	if err := c.Query(ctx, soql, &records); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find answers for run %s", runID))
	}
	return records, nil
}

// requiredAnswerFields must exist on the answer object for publishing to work.
var requiredAnswerFields = []string{"Question__c", "Answer__c", "Link_Id__c", "Run_Id__c"}

// ValidateAnswerObject checks that the answer SObject exists in the org and
// carries the fields the publisher writes. Used to fail fast before queuing
// a collection insert.
func ValidateAnswerObject(ctx context.Context, c Client, object string) error {
	desc, err := c.DescribeSObject(ctx, object)
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: validate answer object %s", object))
	}

	have := make(map[string]bool, len(desc.Fields))
	for _, f := range desc.Fields {
		have[f.Name] = true
	}
	for _, name := range requiredAnswerFields {
		if !have[name] {
			return eris.New(fmt.Sprintf("sf: answer object %s is missing field %s", object, name))
		}
	}
	return nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
