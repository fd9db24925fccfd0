// Package assistant runs the query pipeline: rank records against the
// current index snapshot, build sources, compose the answer, and record
// analytics. Responses are optionally cached in Redis per snapshot
// fingerprint.
package assistant

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/answer"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/index"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/tracing"
)

// Snapshotter hands out a snapshot no older than the last invalidation.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*index.Snapshot, error)
}

// Tracker receives analytics events. *analytics.Collector satisfies it.
type Tracker interface {
	Track(event any)
}

// Response is the body of POST /query. Sources is never nil so it encodes
// as [] when nothing matched.
type Response struct {
	Answer  string          `json:"answer"`
	Sources []answer.Source `json:"sources"`

	// degraded marks an answer from a fallback composer.
	degraded bool
}

type Service struct {
	index     Snapshotter
	composers answer.Set
	cfg       config.RetrievalConfig
	cache     *AnswerCache
	tracker   Tracker
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Service)

// WithCache enables the Redis answer cache.
func WithCache(c *AnswerCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithTracker(t Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(idx Snapshotter, composers answer.Set, cfg config.RetrievalConfig, opts ...Option) *Service {
	s := &Service{
		index:     idx,
		composers: composers,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClampTopK maps a requested top_k onto [0, MaxTopK].
func (s *Service) ClampTopK(topK int) int {
	if topK < 0 {
		return 0
	}
	if s.cfg.MaxTopK > 0 && topK > s.cfg.MaxTopK {
		return s.cfg.MaxTopK
	}
	return topK
}

// Answer ranks the corpus against query and composes an answer from the
// best topK records. An empty corpus or a query with no known terms is not
// an error. Only store failures and cancellation are returned.
func (s *Service) Answer(ctx context.Context, query string, topK int, useLLM bool) (*Response, error) {
	start := s.now()
	topK = s.ClampTopK(topK)
	composer := s.composers.Pick(useLLM)
	log := logger.FromContext(ctx)

	sctx, span := tracing.StartChildSpan(ctx, "index.snapshot")
	snap, err := s.index.Snapshot(sctx)
	if err != nil {
		span.End()
		s.observe(ctx, query, topK, composer.Name(), nil, false, start, err)
		log.Error("index snapshot failed", "error", err)
		return nil, err
	}
	span.SetAttr("generation", snap.Generation())
	span.SetAttr("records", snap.Len())
	span.End()

	compute := func(ctx context.Context) (*Response, error) {
		return s.compute(ctx, snap, composer, query, topK)
	}

	var (
		resp *Response
		hit  bool
	)
	if s.cache != nil {
		cctx, cspan := tracing.StartChildSpan(ctx, "cache.lookup")
		key := CacheKey{Fingerprint: snap.Fingerprint(), Query: query, TopK: topK, Composer: composer.Name()}
		resp, hit, err = s.cache.GetOrCompute(cctx, key, compute)
		cspan.SetAttr("hit", hit)
		cspan.End()
	} else {
		resp, err = compute(ctx)
	}
	if err != nil {
		s.observe(ctx, query, topK, composer.Name(), nil, false, start, err)
		return nil, err
	}
	s.observe(ctx, query, topK, composer.Name(), resp.Sources, hit, start, nil)
	return resp, nil
}

func (s *Service) compute(ctx context.Context, snap *index.Snapshot, composer answer.Composer, query string, topK int) (*Response, error) {
	_, span := tracing.StartChildSpan(ctx, "index.search")
	results := snap.Search(query, topK)
	span.SetAttr("results", len(results))
	span.End()

	sources := make([]answer.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, answer.Source{
			Type:    r.Kind,
			ID:      r.ID,
			Score:   r.Score,
			Title:   r.Title,
			Name:    r.Name,
			Snippet: answer.Snippet(r.Text, s.cfg.SnippetLength),
		})
	}

	actx, aspan := tracing.StartChildSpan(ctx, "answer.compose")
	aspan.SetAttr("composer", composer.Name())
	text, err := composer.Generate(actx, query, sources)
	degraded := errors.Is(err, answer.ErrDegraded)
	aspan.SetAttr("degraded", degraded)
	aspan.End()
	if err != nil && !degraded {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, apperrors.Newf(apperrors.ErrComposerFailed, http.StatusBadGateway, "answer composer %s failed", composer.Name())
	}
	return &Response{Answer: text, Sources: sources, degraded: degraded}, nil
}

func (s *Service) observe(ctx context.Context, query string, topK int, composer string, sources []answer.Source, hit bool, start time.Time, err error) {
	elapsed := s.now().Sub(start)
	var topScore float64
	if len(sources) > 0 {
		topScore = sources[0].Score
	}

	if s.metrics != nil {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
		case topScore == 0:
			outcome = "zero_result"
		}
		s.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
		status := "none"
		if s.cache != nil {
			status = "miss"
			if hit {
				status = "hit"
			}
		}
		s.metrics.QueryLatency.WithLabelValues(status).Observe(elapsed.Seconds())
		if err == nil {
			s.metrics.QueryResults.Observe(float64(len(sources)))
		}
	}

	if s.tracker != nil {
		s.tracker.Track(analytics.QueryEvent{
			Query:     query,
			TopK:      topK,
			Returned:  len(sources),
			TopScore:  topScore,
			LatencyMs: elapsed.Milliseconds(),
			CacheHit:  hit,
			Composer:  composer,
			Failed:    err != nil,
			Timestamp: start.UTC(),
			RequestID: logger.RequestID(ctx),
		})
	}
}

// Purge drops every cached answer. It is a no-op without a cache.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.Purge(ctx)
}
