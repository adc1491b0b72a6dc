package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSObjectField_AllFields(t *testing.T) {
	f := SObjectField{
		Name:       "Answer__c",
		Label:      "Answer",
		Type:       "string",
		Length:     255,
		Updateable: true,
	}
	assert.Equal(t, "Answer__c", f.Name)
	assert.Equal(t, "Answer", f.Label)
	assert.Equal(t, "string", f.Type)
	assert.Equal(t, 255, f.Length)
	assert.True(t, f.Updateable)
}

func TestSObjectDescription_AllFields(t *testing.T) {
	desc := SObjectDescription{
		Name:  "Intake_Answer__c",
		Label: "Intake Answer",
		Fields: []SObjectField{
			{Name: "Id", Label: "Record ID", Type: "id", Length: 18, Updateable: false},
			{Name: "Answer__c", Label: "Answer", Type: "string", Length: 255, Updateable: true},
		},
	}
	assert.Equal(t, "Intake_Answer__c", desc.Name)
	assert.Equal(t, "Intake Answer", desc.Label)
	require.Len(t, desc.Fields, 2)
}

func TestAnswerRecord_AllFields(t *testing.T) {
	r := AnswerRecord{
		ID:         "a01xx",
		Question:   "How bad is the pain?",
		Answer:     "moderate",
		LinkID:     "pain-level",
		RunID:      "run-42",
		Candidates: "mild, moderate, severe",
		Status:     "For Review",
	}
	assert.Equal(t, "a01xx", r.ID)
	assert.Equal(t, "How bad is the pain?", r.Question)
	assert.Equal(t, "moderate", r.Answer)
	assert.Equal(t, "pain-level", r.LinkID)
	assert.Equal(t, "run-42", r.RunID)
	assert.Equal(t, "mild, moderate, severe", r.Candidates)
	assert.Equal(t, "For Review", r.Status)
}

func TestCollectionRecord_Fields(t *testing.T) {
	r := CollectionRecord{
		ID:     "a01xx",
		Fields: map[string]any{"Answer__c": "updated"},
	}
	assert.Equal(t, "a01xx", r.ID)
	assert.Equal(t, "updated", r.Fields["Answer__c"])
}

func TestAnswerFields_AllPresent(t *testing.T) {
	expected := []string{
		"Id", "Question__c", "Answer__c", "Link_Id__c", "Run_Id__c", "Candidates__c", "Status__c",
	}
	assert.Equal(t, expected, answerFields)
}

func TestDefaultAnswerObject(t *testing.T) {
	assert.Equal(t, "Intake_Answer__c", DefaultAnswerObject)
}

func TestQueryResult_GenericType(t *testing.T) {
	qr := QueryResult[AnswerRecord]{
		Records: []AnswerRecord{
			{ID: "a01xx", LinkID: "pain-now"},
			{ID: "a01yy", LinkID: "pain-level"},
		},
	}
	require.Len(t, qr.Records, 2)
	assert.Equal(t, "a01xx", qr.Records[0].ID)
}

func TestMockClient_DefaultBehavior(t *testing.T) {
	mc := &mockClient{}

	// Query returns nil (no-op)
	err := mc.Query(context.Background(), "SELECT Id FROM Intake_Answer__c", nil)
	assert.NoError(t, err)

	// InsertOne returns default ID
	id, err := mc.InsertOne(context.Background(), "Intake_Answer__c", nil)
	assert.NoError(t, err)
	assert.Equal(t, "a01000000000001", id)

	// UpdateOne returns nil
	err = mc.UpdateOne(context.Background(), "Intake_Answer__c", "a01xx", nil)
	assert.NoError(t, err)

	// DescribeSObject returns basic description
	desc, err := mc.DescribeSObject(context.Background(), "Intake_Answer__c")
	assert.NoError(t, err)
	assert.Equal(t, "Intake_Answer__c", desc.Name)
}

func TestMockClient_UpdateCollectionDefault(t *testing.T) {
	mc := &mockClient{}
	records := []CollectionRecord{
		{ID: "a01xx", Fields: map[string]any{"Answer__c": "yes"}},
		{ID: "a01yy", Fields: map[string]any{"Answer__c": "no"}},
	}
	results, err := mc.UpdateCollection(context.Background(), "Intake_Answer__c", records)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Equal(t, "a01xx", results[0].ID)
	assert.Equal(t, "a01yy", results[1].ID)
}

func TestFindAnswersByRunID_ErrorPropagation(t *testing.T) {
	mc := &mockClient{
		queryFn: func(_ context.Context, _ string, _ any) error {
			return errors.New("timeout")
		},
	}

	records, err := FindAnswersByRunID(context.Background(), mc, "Intake_Answer__c", "run-42")
	assert.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "find answers for run")
}

func TestBulkUpdateAnswers_FieldsPassedCorrectly(t *testing.T) {
	var capturedRecords []CollectionRecord
	mc := &mockClient{
		updateCollectionFn: func(_ context.Context, sObject string, records []CollectionRecord) ([]CollectionResult, error) {
			assert.Equal(t, "Intake_Answer__c", sObject)
			capturedRecords = records
			results := make([]CollectionResult, len(records))
			for i, r := range records {
				results[i] = CollectionResult{ID: r.ID, Success: true}
			}
			return results, nil
		},
	}

	updates := []CollectionRecord{
		{ID: "a01xx", Fields: map[string]any{"Answer__c": "yes", "Status__c": "For Review"}},
		{ID: "a01yy", Fields: map[string]any{"Answer__c": "no"}},
	}

	results, err := BulkUpdateAnswers(context.Background(), mc, "Intake_Answer__c", updates)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, capturedRecords, 2)
	assert.Equal(t, "a01xx", capturedRecords[0].ID)
	assert.Equal(t, "yes", capturedRecords[0].Fields["Answer__c"])
	assert.Equal(t, "a01yy", capturedRecords[1].ID)
	assert.Equal(t, "no", capturedRecords[1].Fields["Answer__c"])
}
