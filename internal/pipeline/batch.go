package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harborview-health/intake-cli/internal/config"
	"github.com/harborview-health/intake-cli/internal/model"
	"github.com/harborview-health/intake-cli/internal/questionnaire"
	"github.com/harborview-health/intake-cli/pkg/anthropic"
)

const directRetryAttempts = 3

// Job is one transcript queued for extraction.
type Job struct {
	Source     string // origin label, usually the file path
	Transcript string
}

// JobResult is the outcome of one job. A failed job carries Err and no
// answers; jobs never carry partial results. In batch-API mode Duration
// is the shared wall-clock time until results became available.
type JobResult struct {
	Source   string
	Answers  []model.AnswerEntry
	Usage    model.TokenUsage
	Duration time.Duration
	Err      error
}

// BatchOutcome aggregates one multi-transcript run. Jobs holds one
// result per input job, in input order; Usage totals every call made,
// including the cache primer.
type BatchOutcome struct {
	Jobs  []JobResult
	Usage model.TokenUsage
}

// Failed counts jobs that did not produce answers.
func (o *BatchOutcome) Failed() int {
	n := 0
	for _, j := range o.Jobs {
		if j.Err != nil {
			n++
		}
	}
	return n
}

// Batcher runs extraction across many transcripts against a single
// questionnaire. Small workloads fan out as direct calls; larger ones
// go through the Message Batches API, with a primer request warming the
// prompt cache the batch items then read from.
type Batcher struct {
	q      *questionnaire.Questionnaire
	client anthropic.Client
	cfg    config.AnthropicConfig
	limit  int
}

// NewBatcher builds a batch runner. maxConcurrent caps direct-mode
// concurrency; values below one fall back to a serial run.
func NewBatcher(q *questionnaire.Questionnaire, client anthropic.Client, cfg config.AnthropicConfig, maxConcurrent int) *Batcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Batcher{q: q, client: client, cfg: cfg, limit: maxConcurrent}
}

// RunAll processes every job and reports per-job outcomes. One job
// failing never aborts the others; only workload-level failures (batch
// creation, polling, result collection) abort the run.
func (b *Batcher) RunAll(ctx context.Context, jobs []Job) (*BatchOutcome, error) {
	if len(jobs) == 0 {
		return &BatchOutcome{}, nil
	}

	system := anthropic.BuildCachedSystemBlocks(systemText)
	items := make([]anthropic.BatchRequestItem, len(jobs))
	for i, job := range jobs {
		items[i] = anthropic.BatchRequestItem{
			CustomID: fmt.Sprintf("job-%d", i),
			Params:   b.request(system, job.Transcript),
		}
	}

	if b.cfg.NoBatch || len(jobs) <= b.cfg.SmallBatchThreshold {
		return b.runDirect(ctx, jobs, items)
	}
	return b.runBatch(ctx, jobs, items)
}

// runDirect fans the jobs out as individual calls with bounded
// concurrency. Individual failures land in the job's result instead of
// failing the group.
func (b *Batcher) runDirect(ctx context.Context, jobs []Job, items []anthropic.BatchRequestItem) (*BatchOutcome, error) {
	out := &BatchOutcome{Jobs: make([]JobResult, len(jobs))}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)

	var mu sync.Mutex // guards out.Usage
	for i := range jobs {
		g.Go(func() error {
			res := JobResult{Source: jobs[i].Source}
			start := time.Now()

			resp, err := b.send(gCtx, items[i].Params, jobs[i].Source)
			if err != nil {
				res.Err = err
			} else {
				res.Usage = usageFrom(resp.Usage, b.cfg.Model)
				res.Answers, res.Err = decodeAnswers(resp.Text())
				mu.Lock()
				out.Usage.Add(res.Usage)
				mu.Unlock()
			}
			res.Duration = time.Since(start)

			out.Jobs[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

// runBatch submits the jobs through the Message Batches API and matches
// results back to jobs by custom ID.
func (b *Batcher) runBatch(ctx context.Context, jobs []Job, items []anthropic.BatchRequestItem) (*BatchOutcome, error) {
	out := &BatchOutcome{Jobs: make([]JobResult, len(jobs))}
	batchStart := time.Now()

	// Fire the primer asynchronously so cache warming overlaps with
	// batch submission and early polling.
	var primerUsage model.TokenUsage
	var primerWg sync.WaitGroup
	primerWg.Add(1)
	go func() {
		defer primerWg.Done()
		resp, err := anthropic.PrimerRequest(ctx, b.client, items[0].Params)
		if err != nil {
			zap.L().Warn("batch: primer failed", zap.Error(err))
		} else if resp != nil {
			primerUsage = usageFrom(resp.Usage, b.cfg.Model)
		}
	}()

	batch, err := b.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		primerWg.Wait()
		return nil, eris.Wrap(err, "batch: create")
	}
	zap.L().Info("batch submitted",
		zap.String("batch_id", batch.ID),
		zap.Int("jobs", len(jobs)))

	var pollOpts []anthropic.PollOption
	if len(items) < 20 {
		pollOpts = append(pollOpts, anthropic.WithPollCap(10*time.Second))
	}
	if _, err := anthropic.PollBatch(ctx, b.client, batch.ID, pollOpts...); err != nil {
		primerWg.Wait()
		return nil, eris.Wrap(err, "batch: poll")
	}

	iter, err := b.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		primerWg.Wait()
		return nil, eris.Wrap(err, "batch: get results")
	}
	results, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		primerWg.Wait()
		return nil, eris.Wrap(err, "batch: collect results")
	}

	primerWg.Wait()
	out.Usage.Add(primerUsage)
	elapsed := time.Since(batchStart)

	for i, job := range jobs {
		res := JobResult{Source: job.Source, Duration: elapsed}

		resp, ok := results[items[i].CustomID]
		if !ok || resp == nil {
			res.Err = eris.New("batch: no result returned for job")
		} else {
			res.Usage = usageFrom(resp.Usage, b.cfg.Model)
			res.Answers, res.Err = decodeAnswers(resp.Text())
			out.Usage.Add(res.Usage)
		}

		out.Jobs[i] = res
	}

	return out, nil
}

// send performs one direct extraction call with retry and exponential
// backoff.
func (b *Batcher) send(ctx context.Context, req anthropic.MessageRequest, source string) (*anthropic.MessageResponse, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt < directRetryAttempts; attempt++ {
		resp, err := b.client.CreateMessage(ctx, req)
		if err == nil {
			resp.Usage.LogCost(b.cfg.Model, "batch")
			return resp, nil
		}
		lastErr = err

		if attempt < directRetryAttempts-1 {
			zap.L().Warn("batch: extraction failed, retrying",
				zap.String("source", source),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}
	}
	return nil, eris.Wrap(lastErr, "batch: extraction call")
}

func (b *Batcher) request(system []anthropic.SystemBlock, transcript string) anthropic.MessageRequest {
	temp := 0.0
	return anthropic.MessageRequest{
		Model:       b.cfg.Model,
		MaxTokens:   b.cfg.MaxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: BuildPrompt(string(b.q.Raw()), transcript)}},
		Temperature: &temp,
	}
}

// decodeAnswers parses raw model output and normalizes the entries.
func decodeAnswers(raw string) ([]model.AnswerEntry, error) {
	entries, err := ParseAnswers(raw)
	if err != nil {
		return nil, err
	}
	rs := &model.ResultSet{Entries: entries}
	rs.Normalize()
	return rs.Entries, nil
}

// usageFrom converts SDK usage counters and prices them for the model.
func usageFrom(u anthropic.TokenUsage, modelID string) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:         int(u.InputTokens),
		OutputTokens:        int(u.OutputTokens),
		CacheCreationTokens: int(u.CacheCreationInputTokens),
		CacheReadTokens:     int(u.CacheReadInputTokens),
		Cost:                u.EstimateCost(modelID),
	}
}
