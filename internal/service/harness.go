package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vitalis-ai/vitalis/internal/domain/agent"
	"github.com/vitalis-ai/vitalis/internal/domain/evaluation"
	"github.com/vitalis-ai/vitalis/internal/domain/profile"
	"github.com/vitalis-ai/vitalis/internal/domain/scenario"
	"github.com/vitalis-ai/vitalis/internal/domain/trace"
	"github.com/vitalis-ai/vitalis/internal/port/database"
)

// Harness evaluates every candidate against every scenario with bounded
// concurrency and persists one immutable result per pair.
type Harness struct {
	runner        *Runner
	store         database.Store
	toolWeight    float64
	outcomeWeight float64
	maxParallel   int64
	runTimeout    time.Duration
	log           *slog.Logger
}

// NewHarness creates an evaluation harness. toolWeight and outcomeWeight
// must sum to 1 (validated at config load).
func NewHarness(
	runner *Runner,
	store database.Store,
	toolWeight, outcomeWeight float64,
	maxParallel int,
	runTimeout time.Duration,
	log *slog.Logger,
) *Harness {
	if maxParallel < 1 {
		maxParallel = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Harness{
		runner:        runner,
		store:         store,
		toolWeight:    toolWeight,
		outcomeWeight: outcomeWeight,
		maxParallel:   int64(maxParallel),
		runTimeout:    runTimeout,
		log:           log,
	}
}

// Evaluate runs all (candidate, scenario) pairs and returns the persisted
// results. A run failure scores the pair 0; it never aborts the round.
func (h *Harness) Evaluate(ctx context.Context, p *profile.UserProfile, candidates []agent.Config) ([]evaluation.Result, error) {
	suite := scenario.BuiltinSuite(personaFor(p))

	var (
		mu      sync.Mutex
		results []evaluation.Result
	)
	sem := semaphore.NewWeighted(h.maxParallel)
	g, gctx := errgroup.WithContext(ctx)

	for ci := range candidates {
		for si := range suite {
			cand, sc := &candidates[ci], &suite[si]
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)

				res := h.runPair(gctx, p, cand, sc)
				if err := h.store.CreateEvaluationResult(gctx, &res); err != nil {
					return fmt.Errorf("persist result %s/%s: %w", cand.ID, sc.ID, err)
				}

				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runPair executes one candidate against one scenario and scores the trace.
func (h *Harness) runPair(ctx context.Context, p *profile.UserProfile, cand *agent.Config, sc *scenario.Scenario) evaluation.Result {
	runCtx := ctx
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	res := evaluation.Result{
		UserID:      p.ID,
		CandidateID: cand.ID,
		ScenarioID:  sc.ID,
	}

	tr, err := h.runner.RunTask(runCtx, cand, p, sc.Prompt, trace.OriginEvaluation, sc.ID)
	if tr != nil {
		res.TraceID = tr.ID
		res.ToolCalls = tr.ToolCallCount()
	}
	if err != nil || tr == nil || !tr.Completed {
		// Step-limit and transport failures alike score zero; the trace
		// records which it was.
		h.log.Warn("evaluation run failed",
			"candidate_id", cand.ID,
			"scenario_id", sc.ID,
			"error", err,
		)
		return res
	}

	res.ToolScore = sc.ToolScore(tr.ToolsUsed())
	res.OutcomeScore = sc.OutcomeScore(tr.Response)
	res.Score = h.toolWeight*res.ToolScore + h.outcomeWeight*res.OutcomeScore
	return res
}

// SelectWinner aggregates results and picks the deployment winner.
func (h *Harness) SelectWinner(results []evaluation.Result) (evaluation.Summary, bool) {
	return evaluation.SelectWinner(evaluation.Summarize(results))
}
