package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview-health/intake-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedRun(source string) model.Run {
	return model.Run{
		TranscriptSource:    source,
		TranscriptSHA256:    "ab12cd34",
		QuestionnaireSource: "questionnaire.json",
		Model:               "claude-sonnet-4-5-20250929",
	}
}

// --- Runs ---

func TestSQLite_CreateRun_And_GetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, seedRun("visit-001.txt"))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.False(t, run.CreatedAt.IsZero())

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, fetched.ID)
	assert.Equal(t, "visit-001.txt", fetched.TranscriptSource)
	assert.Equal(t, "ab12cd34", fetched.TranscriptSHA256)
	assert.Equal(t, "questionnaire.json", fetched.QuestionnaireSource)
	assert.Equal(t, "claude-sonnet-4-5-20250929", fetched.Model)
	assert.Nil(t, fetched.Answers)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "no-such-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, seedRun("visit-001.txt"))
	require.NoError(t, err)

	answers := []model.AnswerEntry{
		model.NewScalarAnswer("pain-now", "yes"),
		model.NewListAnswer("pain-level", []string{"moderate", "severe"}),
	}
	usage := model.TokenUsage{InputTokens: 900, OutputTokens: 45, Cost: 0.0031}
	err = st.CompleteRun(ctx, run.ID, answers, usage, 4200)
	require.NoError(t, err)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, fetched.Status)
	assert.Empty(t, fetched.Error)
	require.Len(t, fetched.Answers, 2)
	assert.Equal(t, "pain-now", fetched.Answers[0].LinkID)
	assert.Equal(t, "yes", fetched.Answers[0].Scalar)
	assert.Equal(t, model.AnswerList, fetched.Answers[1].Kind)
	assert.Equal(t, []string{"moderate", "severe"}, fetched.Answers[1].Candidates)
	assert.Equal(t, 900, fetched.Usage.InputTokens)
	assert.Equal(t, 0.0031, fetched.Usage.Cost)
	assert.Equal(t, int64(4200), fetched.DurationMS)
}

func TestSQLite_CompleteRun_ClearsPriorError(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, seedRun("visit-001.txt"))
	require.NoError(t, err)

	require.NoError(t, st.FailRun(ctx, run.ID, "extraction call: overloaded"))
	require.NoError(t, st.CompleteRun(ctx, run.ID, []model.AnswerEntry{
		model.NewScalarAnswer("pain-now", "no"),
	}, model.TokenUsage{InputTokens: 100}, 900))

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, fetched.Status)
	assert.Empty(t, fetched.Error)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.CompleteRun(ctx, "no-such-run", nil, model.TokenUsage{}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, seedRun("visit-001.txt"))
	require.NoError(t, err)

	err = st.FailRun(ctx, run.ID, "extraction call: overloaded")
	require.NoError(t, err)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, fetched.Status)
	assert.Equal(t, "extraction call: overloaded", fetched.Error)
	assert.Nil(t, fetched.Answers)
}

func TestSQLite_FailRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.FailRun(ctx, "no-such-run", "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_UpdateRunAnswers(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, seedRun("visit-001.txt"))
	require.NoError(t, err)

	original := []model.AnswerEntry{model.NewListAnswer("pain-level", []string{"mild", "moderate"})}
	require.NoError(t, st.CompleteRun(ctx, run.ID, original, model.TokenUsage{}, 100))

	// Simulate a review selection and persist the edited set.
	edited := original
	sel := "moderate"
	edited[0].Selected = &sel
	require.NoError(t, st.UpdateRunAnswers(ctx, run.ID, edited))

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Answers, 1)
	require.NotNil(t, fetched.Answers[0].Selected)
	assert.Equal(t, "moderate", *fetched.Answers[0].Selected)
	// Status is untouched by an answers-only update.
	assert.Equal(t, model.RunStatusComplete, fetched.Status)
}

func TestSQLite_UpdateRunAnswers_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.UpdateRunAnswers(ctx, "no-such-run", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateRun(ctx, seedRun("visit-001.txt"))
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, seedRun("visit-002.txt"))
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLite_ListRuns_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, seedRun("visit-001.txt"))
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.ID, nil, model.TokenUsage{}, 50))

	// A second run that stays running.
	_, err = st.CreateRun(ctx, seedRun("visit-002.txt"))
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete, Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestSQLite_ListRuns_FilterBySource(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	target, err := st.CreateRun(ctx, seedRun("visit-001.txt"))
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, seedRun("visit-002.txt"))
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Source: "visit-001.txt", Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, target.ID, runs[0].ID)
}

func TestSQLite_ListRuns_Limit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := st.CreateRun(ctx, seedRun("visit.txt"))
		require.NoError(t, err)
	}

	runs, err := st.ListRuns(ctx, RunFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

// --- Migrate ---

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Migrate was already called in newTestSQLiteStore; calling again should not error.
	err := st.Migrate(ctx)
	require.NoError(t, err)
}
