package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview-health/intake-cli/internal/config"
	"github.com/harborview-health/intake-cli/internal/model"
	"github.com/harborview-health/intake-cli/internal/questionnaire"
	"github.com/harborview-health/intake-cli/pkg/anthropic"
)

// BusyError reports an analysis requested while another is still in
// flight on the same session.
type BusyError struct{}

func (e *BusyError) Error() string {
	return "pipeline: an analysis is already in flight for this session"
}

// Analyzer is one analysis session. It owns the question index and the
// result set, rebuilding both on every run: prior results are discarded
// when a run starts, and only a fully parsed run installs new ones, so
// the session never holds a partial result set. One analysis may be in
// flight at a time; concurrent Run calls fail fast with *BusyError.
type Analyzer struct {
	q      *questionnaire.Questionnaire
	client anthropic.Client
	cfg    config.AnthropicConfig

	mu      sync.Mutex
	busy    bool
	index   questionnaire.Index
	results *model.ResultSet
}

// NewAnalyzer builds a session over one questionnaire.
func NewAnalyzer(q *questionnaire.Questionnaire, client anthropic.Client, cfg config.AnthropicConfig) *Analyzer {
	return &Analyzer{q: q, client: client, cfg: cfg}
}

// Result is the outcome of one analysis run.
type Result struct {
	RunID    string
	Answers  []model.AnswerEntry
	Usage    model.TokenUsage
	Duration time.Duration
}

// Run analyzes one transcript end to end: build the prompt, call the
// model, decode the reply, and install the normalized result set on the
// session. Failures keep their kind (transport failures as
// *anthropic.TransportError, undecodable output as *FormatError) and
// leave the session empty.
func (a *Analyzer) Run(ctx context.Context, transcript string) (*Result, error) {
	if err := a.acquire(); err != nil {
		return nil, err
	}
	defer a.release()

	start := time.Now()
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID))

	// Discard prior state up front so a failed run leaves the session
	// empty rather than holding stale answers.
	a.setState(nil, nil)

	index := questionnaire.BuildIndex(questionnaire.Flatten(a.q))
	prompt := BuildPrompt(string(a.q.Raw()), transcript)

	log.Info("extraction request",
		zap.String("model", a.cfg.Model),
		zap.Int("questions", len(index)),
		zap.Int("prompt_bytes", len(prompt)))

	raw, usage, err := a.extract(ctx, prompt)
	if err != nil {
		return nil, err
	}

	entries, err := ParseAnswers(raw)
	if err != nil {
		log.Warn("unusable extraction output", zap.Error(err))
		return nil, err
	}

	results := &model.ResultSet{Entries: entries}
	results.Normalize()
	a.setState(index, results)

	log.Info("extraction complete",
		zap.Int("answers", len(entries)),
		zap.Duration("duration", time.Since(start)))

	return &Result{
		RunID:    runID,
		Answers:  results.Entries,
		Usage:    usage,
		Duration: time.Since(start),
	}, nil
}

// extract performs the run's single model call. No retries here:
// transport failures surface to the caller as-is.
func (a *Analyzer) extract(ctx context.Context, prompt string) (string, model.TokenUsage, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: systemText}},
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}

	resp, err := a.client.CreateMessage(ctx, req)
	if err != nil {
		return "", model.TokenUsage{}, eris.Wrap(err, "pipeline: extraction call")
	}
	resp.Usage.LogCost(a.cfg.Model, "analyze")

	return resp.Text(), usageFrom(resp.Usage, a.cfg.Model), nil
}

// Index returns the question index installed by the most recent
// successful run, or nil.
func (a *Analyzer) Index() questionnaire.Index {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index
}

// Results returns the session's current result set, or nil when no run
// has succeeded yet.
func (a *Analyzer) Results() *model.ResultSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.results
}

func (a *Analyzer) acquire() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.busy {
		return &BusyError{}
	}
	a.busy = true
	return nil
}

func (a *Analyzer) release() {
	a.mu.Lock()
	a.busy = false
	a.mu.Unlock()
}

func (a *Analyzer) setState(index questionnaire.Index, results *model.ResultSet) {
	a.mu.Lock()
	a.index = index
	a.results = results
	a.mu.Unlock()
}
