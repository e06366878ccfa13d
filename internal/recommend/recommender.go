// Package recommend turns a free-text preference into ranked movie recommendations.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/eiga/internal/catalog"
	"github.com/hyperjump/eiga/internal/config"
	"github.com/hyperjump/eiga/internal/embedding"
	"github.com/hyperjump/eiga/internal/metrics"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/vector"
	"go.uber.org/zap"
)

// CatalogProvider returns the catalog snapshot to rank against.
type CatalogProvider interface {
	Current() (*catalog.Catalog, error)
}

// Recommender embeds a query, ranks the catalog and attaches metadata.
type Recommender struct {
	catalogs CatalogProvider
	embedder embedding.Embedder
	config   *config.RecommendConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recommender) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records request outcomes and latencies to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recommender) { r.metrics = m }
}

// NewRecommender creates a recommender. cfg supplies limits and the poster base URL.
func NewRecommender(catalogs CatalogProvider, embedder embedding.Embedder, cfg *config.RecommendConfig, opts ...Option) *Recommender {
	r := &Recommender{
		catalogs: catalogs,
		embedder: embedder,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend returns the top movies for q without modifying it. A zero limit uses the
// configured default; larger limits are capped at the configured maximum. Ranking
// errors (ErrDimensionMismatch, ErrEmptyCatalog) are returned wrapped, never with
// partial results.
func (r *Recommender) Recommend(ctx context.Context, q *models.RecommendQuery) (resp *models.RecommendResponse, err error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveRecommendation(statusFor(err), time.Since(start))
	}()

	query := *q
	if err := query.Validate(); err != nil {
		return nil, err
	}
	query.Limit, err = r.normalizeLimit(q.Limit)
	if err != nil {
		return nil, err
	}

	cat, err := r.catalogs.Current()
	if err != nil {
		return nil, err
	}

	embedStart := time.Now()
	queryVec, err := r.embedder.Embed(ctx, query.Query)
	if err != nil {
		return nil, &EmbedError{Err: err}
	}
	r.metrics.ObserveEmbed(time.Since(embedStart))

	matches, err := vector.Rank(queryVec, cat.Matrix(), query.Limit)
	if err != nil {
		return nil, fmt.Errorf("ranking failed: %w", err)
	}

	resp, err = r.buildResponse(cat, query.Query, matches)
	if err != nil {
		return nil, err
	}
	resp.QueryTime = time.Since(start).Milliseconds()

	r.logger.Debug("recommendations served",
		zap.String("request_id", resp.RequestID),
		zap.Int("limit", query.Limit),
		zap.Int("results", resp.Total),
		zap.Duration("duration", time.Since(start)))
	return resp, nil
}

// Similar returns the movies whose embeddings are closest to the catalog movie at
// position. The movie itself is never part of the result. No query is embedded.
func (r *Recommender) Similar(ctx context.Context, position, limit int) (resp *models.RecommendResponse, err error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveRecommendation(statusFor(err), time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, err = r.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	cat, err := r.catalogs.Current()
	if err != nil {
		return nil, err
	}
	return r.similar(cat, position, limit, start)
}

// SimilarToTitle resolves title against the current catalog and returns movies similar to it.
func (r *Recommender) SimilarToTitle(ctx context.Context, title string, limit int) (resp *models.RecommendResponse, err error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveRecommendation(statusFor(err), time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, err = r.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	cat, err := r.catalogs.Current()
	if err != nil {
		return nil, err
	}
	seed, err := cat.FindTitle(title)
	if err != nil {
		return nil, err
	}
	return r.similar(cat, seed.Position, limit, start)
}

func (r *Recommender) similar(cat *catalog.Catalog, position, limit int, start time.Time) (*models.RecommendResponse, error) {
	seed, ok := cat.Movie(position)
	if !ok {
		return nil, fmt.Errorf("%w: %d", catalog.ErrUnknownPosition, position)
	}
	row, err := cat.Matrix().Row(position)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", catalog.ErrUnknownPosition, position)
	}
	// One extra slot so dropping the seed still leaves limit results.
	matches, err := vector.Rank(row, cat.Matrix(), limit+1)
	if err != nil {
		return nil, fmt.Errorf("ranking failed: %w", err)
	}
	kept := matches[:0]
	for _, m := range matches {
		if m.Index != position {
			kept = append(kept, m)
		}
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}

	resp, err := r.buildResponse(cat, seed.Title, kept)
	if err != nil {
		return nil, err
	}
	resp.Seed = &seed
	resp.QueryTime = time.Since(start).Milliseconds()
	r.logger.Debug("similar movies served",
		zap.String("request_id", resp.RequestID),
		zap.Int("position", position),
		zap.Int("results", resp.Total))
	return resp, nil
}

// normalizeLimit applies the configured default and cap to a requested limit.
func (r *Recommender) normalizeLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, fmt.Errorf("%w: got %d", models.ErrInvalidLimit, limit)
	}
	if limit == 0 {
		limit = r.config.DefaultLimit
		if limit <= 0 {
			limit = models.DefaultLimit
		}
	}
	if limit > models.MaxLimit {
		limit = models.MaxLimit
	}
	if r.config.MaxLimit > 0 && limit > r.config.MaxLimit {
		limit = r.config.MaxLimit
	}
	return limit, nil
}

func (r *Recommender) buildResponse(cat *catalog.Catalog, query string, matches []vector.Match) (*models.RecommendResponse, error) {
	resp := &models.RecommendResponse{
		RequestID:       uuid.New().String(),
		Query:           query,
		Recommendations: make([]*models.Recommendation, 0, len(matches)),
		CatalogSize:     cat.Len(),
	}
	for i, m := range matches {
		movie, ok := cat.Movie(m.Index)
		if !ok {
			return nil, fmt.Errorf("%w: no metadata for index %d", catalog.ErrMisaligned, m.Index)
		}
		resp.Recommendations = append(resp.Recommendations, &models.Recommendation{
			Rank:         i + 1,
			Movie:        &movie,
			Score:        m.Score,
			MatchPercent: models.MatchPercent(m.Score),
			PosterURL:    PosterURL(r.config.PosterBaseURL, movie.PosterPath),
		})
	}
	resp.Total = len(resp.Recommendations)
	return resp, nil
}

// EmbedError marks a failure of the embedding provider.
type EmbedError struct {
	Err error
}

func (e *EmbedError) Error() string { return "failed to embed query: " + e.Err.Error() }

func (e *EmbedError) Unwrap() error { return e.Err }

// PosterURL joins base and path, or returns "" when the movie has no poster.
func PosterURL(base, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func statusFor(err error) string {
	var embedErr *EmbedError
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, models.ErrEmptyQuery), errors.Is(err, models.ErrInvalidLimit):
		return metrics.StatusInvalid
	case errors.Is(err, catalog.ErrTitleNotFound), errors.Is(err, catalog.ErrUnknownPosition):
		return metrics.StatusInvalid
	case errors.Is(err, catalog.ErrNotLoaded), errors.Is(err, vector.ErrEmptyCatalog):
		return metrics.StatusUnavailable
	case errors.As(err, &embedErr):
		return metrics.StatusEmbedError
	default:
		return metrics.StatusRankingError
	}
}
