// Package council is the Pipeline Driver: it sequences the five council
// stages, holds the response cache and statistics counters, and is the single
// entry point a host surface calls (spec §4.1).
package council

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"dev.helix.agent/council/internal/aggregate"
	"dev.helix.agent/council/internal/cache"
	councilerrors "dev.helix.agent/council/internal/errors"
	"dev.helix.agent/council/internal/health"
	"dev.helix.agent/council/internal/invoker"
	"dev.helix.agent/council/internal/jsonrecovery"
	"dev.helix.agent/council/internal/metrics"
	"dev.helix.agent/council/internal/models"
	"dev.helix.agent/council/internal/paraphrase"
	"dev.helix.agent/council/internal/review"
	"dev.helix.agent/council/internal/stage"
	"dev.helix.agent/council/internal/stats"
	"dev.helix.agent/council/internal/synthesis"
)

const (
	minQueryLen = 5
	maxQueryLen = 1000
)

// labeledProber adapts an invoker.Invoker to health.Prober.
type labeledProber struct{ inv invoker.Invoker }

func (p labeledProber) Label() string                            { return p.inv.Label() }
func (p labeledProber) HealthCheck(ctx context.Context) bool      { return p.inv.HealthCheck(ctx) }

// Driver sequences the council pipeline over an injected set of invokers.
// All dependencies (invokers, cache, logger) are constructed by the caller
// and passed in; Driver holds no global state of its own beyond the cache
// store and the statistics counters (spec §9's "replace singletons with
// dependency injection").
type Driver struct {
	log    *logrus.Logger
	cache  *cache.ResponseCache
	stats  *stats.Counter
	metric *metrics.Metrics

	stage1Invokers    []invoker.Invoker
	paraphraseInvoker invoker.Invoker
	reviewerInvokers  []invoker.Invoker
	chairmanInvoker   invoker.Invoker // nil when Chairman stage is disabled

	stage1Parallel    bool
	reviewersParallel bool
}

// New builds a Driver from its dependencies. stage1Invokers and
// reviewerInvokers are dispatched in the order given; that order also
// determines models_used ordering (spec §5).
func New(
	log *logrus.Logger,
	respCache *cache.ResponseCache,
	statsCounter *stats.Counter,
	metricsRegistry prometheus.Registerer,
	stage1Invokers []invoker.Invoker,
	paraphraseInvoker invoker.Invoker,
	reviewerInvokers []invoker.Invoker,
	chairmanInvoker invoker.Invoker,
	stage1Parallel, reviewersParallel bool,
) *Driver {
	return &Driver{
		log:               log,
		cache:             respCache,
		stats:             statsCounter,
		metric:            metrics.New(metricsRegistry),
		stage1Invokers:    stage1Invokers,
		paraphraseInvoker: paraphraseInvoker,
		reviewerInvokers:  reviewerInvokers,
		chairmanInvoker:   chairmanInvoker,
		stage1Parallel:    stage1Parallel,
		reviewersParallel: reviewersParallel,
	}
}

// Run executes the full pipeline for query under options, returning the
// complete result or a classified error. requestID is used verbatim if
// non-empty; otherwise a fresh one is generated.
func (d *Driver) Run(ctx context.Context, query string, options models.QueryOptions, requestID string) (models.PipelineResult, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	start := time.Now()
	d.stats.RecordQueryStart()

	query, err := normalizeQuery(query)
	if err != nil {
		d.stats.RecordFailure()
		return models.PipelineResult{}, err
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	if options.UseCache {
		if cached, hit := d.cache.Get(ctx, query, options); hit {
			d.stats.RecordCacheHit()
			d.metric.CacheHits.Inc()
			cached.Metadata.CacheHit = true
			d.log.WithField("request_id", requestID).Info("returning cached response")
			return cached, nil
		}
		d.metric.CacheMisses.Inc()
	}

	var timings []models.StageTiming
	record := func(stageName string, elapsed time.Duration) {
		timings = append(timings, models.StageTiming{Stage: stageName, Duration: elapsed})
		d.metric.StageDuration.WithLabelValues(stageName).Observe(elapsed.Seconds())
	}

	stage1Start := time.Now()
	opinions, err := d.runStage1(ctx, query, options)
	record("stage1", time.Since(stage1Start))
	if err != nil {
		d.stats.RecordFailure()
		d.metric.PipelineResults.WithLabelValues("error").Inc()
		return models.PipelineResult{}, err
	}

	paraphraseStart := time.Now()
	claims := d.runParaphrase(ctx, opinions)
	record("paraphrase", time.Since(paraphraseStart))

	reviewStart := time.Now()
	verdicts, err := d.runReview(ctx, query, claims, options)
	record("review", time.Since(reviewStart))
	if err != nil {
		d.stats.RecordFailure()
		d.metric.PipelineResults.WithLabelValues("error").Inc()
		return models.PipelineResult{}, err
	}

	aggStart := time.Now()
	agg := aggregate.Aggregate(claims, verdicts)
	record("aggregation", time.Since(aggStart))

	synthesisStart := time.Now()
	finalAnswer := synthesis.Synthesize(ctx, d.chairmanInvoker, query, opinions, claims, verdicts, agg)
	record("synthesis", time.Since(synthesisStart))

	processingTime := time.Since(start)
	result := models.PipelineResult{
		Query:             query,
		Stage1Opinions:    opinions,
		ParaphrasedClaims: claims,
		ReviewerVerdicts:  verdicts,
		Aggregation:       agg,
		FinalAnswer:       finalAnswer,
		Metadata: models.Metadata{
			RequestID:      requestID,
			ProcessingTime: processingTime,
			ModelsUsed:     d.modelsUsed(),
			CacheHit:       false,
			Errors:         []string{},
			Warnings:       []string{},
			StageTimings:   timings,
			Timestamp:      time.Now().UTC(),
		},
	}

	if options.UseCache {
		d.cache.Set(ctx, query, options, result)
	}

	d.stats.RecordSuccess(processingTime)
	d.metric.PipelineResults.WithLabelValues("success").Inc()
	return result, nil
}

// normalizeQuery trims query and rejects it if it falls outside the
// documented 5-1000 character bound (spec §3).
func normalizeQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", &councilerrors.PipelineError{Stage: "validation", Message: "query must not be empty", Kind: councilerrors.KindBadInput}
	}
	if len(trimmed) < minQueryLen || len(trimmed) > maxQueryLen {
		return "", &councilerrors.PipelineError{
			Stage:   "validation",
			Message: fmt.Sprintf("query length %d outside allowed range [%d,%d]", len(trimmed), minQueryLen, maxQueryLen),
			Kind:    councilerrors.KindBadInput,
		}
	}
	return trimmed, nil
}

type stage1Wire struct {
	AnswerText string            `json:"answer_text"`
	Claims     []string          `json:"claims"`
	Citations  []models.Citation `json:"citations"`
}

func (d *Driver) runStage1(ctx context.Context, query string, options models.QueryOptions) ([]models.Stage1Opinion, error) {
	if len(d.stage1Invokers) == 0 {
		return nil, councilerrors.NewPipelineError("stage1", "no Stage-1 invokers configured")
	}

	calls := make([]stage.Call[models.Stage1Opinion], len(d.stage1Invokers))
	for i, inv := range d.stage1Invokers {
		inv := inv
		calls[i] = func(ctx context.Context) (models.Stage1Opinion, error) {
			return d.callStage1(ctx, inv, query)
		}
	}

	parallel := options.EnableParallel && d.stage1Parallel
	var outcomes []stage.Outcome[models.Stage1Opinion]
	if parallel {
		outcomes = stage.Dispatch(ctx, calls)
	} else {
		outcomes = stage.DispatchSequential(ctx, calls)
	}

	var opinions []models.Stage1Opinion
	var lastErr error
	for _, o := range outcomes {
		if o.Err != nil {
			d.log.WithError(o.Err).Warn("stage1 invoker failed")
			lastErr = o.Err
			if !options.SkipFailedModels {
				return nil, o.Err
			}
			continue
		}
		opinions = append(opinions, o.Value)
	}

	if len(opinions) == 0 {
		return nil, councilerrors.NewPipelineErrorFromCause("stage1", "All Stage-1 models failed", lastErr)
	}
	return opinions, nil
}

func (d *Driver) callStage1(ctx context.Context, inv invoker.Invoker, query string) (models.Stage1Opinion, error) {
	prompt := invoker.Prompt{Text: stage1Prompt(query), Temperature: 0.2}
	raw, err := inv.Generate(ctx, prompt)
	if err != nil {
		d.metric.InvokerCalls.WithLabelValues(inv.Label(), "failed").Inc()
		return models.Stage1Opinion{}, err
	}
	d.metric.InvokerCalls.WithLabelValues(inv.Label(), "success").Inc()

	var parsed stage1Wire
	if !jsonrecovery.Extract(raw, &parsed) {
		return models.Stage1Opinion{
			ModelLabel: inv.Label(),
			AnswerText: truncate(raw, 500),
			Claims:     []string{},
			Citations:  []models.Citation{},
			Meta:       models.Stage1Meta{ParseError: true},
		}, nil
	}

	if parsed.Claims == nil {
		parsed.Claims = []string{}
	}
	if parsed.Citations == nil {
		parsed.Citations = []models.Citation{}
	}
	return models.Stage1Opinion{
		ModelLabel: inv.Label(),
		AnswerText: parsed.AnswerText,
		Claims:     parsed.Claims,
		Citations:  parsed.Citations,
		Meta:       models.Stage1Meta{ParseError: false},
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func stage1Prompt(query string) string {
	return fmt.Sprintf(
		"Answer the following question. Respond with a JSON object of the form "+
			"{\"answer_text\": \"...\", \"claims\": [\"...\"], \"citations\": [{\"source\": \"...\", \"url\": \"...\", \"snippet\": \"...\"}]}.\n\nQuestion: %s",
		query,
	)
}

// runParaphrase extracts claims from every opinion in order, dropping
// opinions whose extraction yields nothing (spec §4.3's silent-drop policy).
func (d *Driver) runParaphrase(ctx context.Context, opinions []models.Stage1Opinion) []models.ParaphrasedClaim {
	var all []models.ParaphrasedClaim
	for _, op := range opinions {
		claims := paraphrase.Extract(ctx, d.paraphraseInvoker, op.ModelLabel, op.AnswerText)
		all = append(all, claims...)
	}
	return all
}

func (d *Driver) runReview(ctx context.Context, query string, claims []models.ParaphrasedClaim, options models.QueryOptions) ([]models.ReviewerVerdict, error) {
	if len(d.reviewerInvokers) == 0 {
		return nil, councilerrors.NewPipelineError("review", "no reviewers configured")
	}

	// review.Review never fails outright — it degrades to an uncertain
	// fallback verdict on invoker error — so callers below always receive a
	// usable ReviewerVerdict. The invoker error, when there was one, rides
	// alongside via reviewCause purely so a whole-stage failure can still be
	// classified by its last underlying cause.
	reviewCauses := make([]error, len(d.reviewerInvokers))
	calls := make([]stage.Call[models.ReviewerVerdict], len(d.reviewerInvokers))
	for i, inv := range d.reviewerInvokers {
		i, inv := i, inv
		calls[i] = func(ctx context.Context) (models.ReviewerVerdict, error) {
			verdict, cause := review.Review(ctx, inv, inv.Label(), query, claims)
			reviewCauses[i] = cause
			return verdict, nil
		}
	}

	parallel := options.EnableParallel && d.reviewersParallel
	var outcomes []stage.Outcome[models.ReviewerVerdict]
	if parallel {
		outcomes = stage.Dispatch(ctx, calls)
	} else {
		outcomes = stage.DispatchSequential(ctx, calls)
	}

	var verdicts []models.ReviewerVerdict
	var lastErr error
	totalReviews := 0
	for i, o := range outcomes {
		if o.Err != nil {
			d.log.WithError(o.Err).Warn("reviewer failed")
			continue
		}
		if reviewCauses[i] != nil {
			d.log.WithError(reviewCauses[i]).Warn("reviewer fell back after invoker error")
			lastErr = reviewCauses[i]
		}
		verdicts = append(verdicts, o.Value)
		totalReviews += len(o.Value.Reviews)
	}

	if totalReviews == 0 {
		return nil, councilerrors.NewPipelineErrorFromCause("review", "All reviewers failed", lastErr)
	}
	return verdicts, nil
}

// modelsUsed reports configured invoker labels in enabled-flag order
// (Stage-1 local/remote, paraphrase, reviewer A/B, chairman), independent
// of whether a given call succeeded at runtime (spec §5).
func (d *Driver) modelsUsed() []string {
	var labels []string
	for _, inv := range d.stage1Invokers {
		labels = append(labels, inv.Label())
	}
	if d.paraphraseInvoker != nil {
		labels = append(labels, d.paraphraseInvoker.Label())
	}
	for _, inv := range d.reviewerInvokers {
		labels = append(labels, inv.Label())
	}
	if d.chairmanInvoker != nil {
		labels = append(labels, d.chairmanInvoker.Label())
	}
	return labels
}

// CheckHealth probes every configured backend and returns the rolled-up
// report.
func (d *Driver) CheckHealth(ctx context.Context) health.Report {
	var probers []health.Prober
	for _, inv := range d.stage1Invokers {
		probers = append(probers, labeledProber{inv})
	}
	if d.paraphraseInvoker != nil {
		probers = append(probers, labeledProber{d.paraphraseInvoker})
	}
	for _, inv := range d.reviewerInvokers {
		probers = append(probers, labeledProber{inv})
	}
	if d.chairmanInvoker != nil {
		probers = append(probers, labeledProber{d.chairmanInvoker})
	}

	report := health.Check(ctx, probers)

	var online float64
	for _, s := range report.Backends {
		if s == health.StatusOnline {
			online++
		}
	}
	d.metric.BackendsOnline.Set(online)
	return report
}

// GetStatistics returns the process-lifetime statistics snapshot.
func (d *Driver) GetStatistics(ctx context.Context) stats.Snapshot {
	return d.stats.Snapshot(d.cache.Stats(ctx))
}

// ClearCache flushes every cached response.
func (d *Driver) ClearCache(ctx context.Context) error {
	return d.cache.Clear(ctx)
}

// Cleanup releases the cache's underlying connection. Invokers own no
// long-lived resources beyond the shared *http.Client they were built with.
func (d *Driver) Cleanup() error {
	d.log.Info("cleaning up pipeline resources")
	return d.cache.Close()
}
