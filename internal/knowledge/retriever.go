package knowledge

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/nova/internal/llm"
	"github.com/MikeSquared-Agency/nova/internal/metrics"
)

const (
	DefaultTopK      = 2
	DefaultThreshold = 0.5
	DefaultTimeout   = 2 * time.Second
)

type RetrieverConfig struct {
	TopK      int
	Threshold float64
	Timeout   time.Duration
	Metrics   *metrics.Metrics
}

// Retriever turns a free-text query into a digest of similar past solutions.
// Retrieval is best-effort: any failure yields no digest.
type Retriever struct {
	embedder  llm.Embedder
	store     Store
	topK      int
	threshold float64
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewRetriever(embedder llm.Embedder, store Store, cfg RetrieverConfig, logger *slog.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Retriever{
		embedder:  embedder,
		store:     store,
		topK:      cfg.TopK,
		threshold: cfg.Threshold,
		timeout:   cfg.Timeout,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// Retrieve returns the digest for query, or false when nothing relevant was
// found or retrieval failed.
func (r *Retriever) Retrieve(ctx context.Context, query string) (string, bool) {
	if strings.TrimSpace(query) == "" {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	matches, err := r.Search(ctx, query)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		r.metrics.RecordRetrieval(outcome)
		r.logger.Warn("knowledge retrieval failed", "error", err)
		return "", false
	}
	if len(matches) == 0 {
		r.metrics.RecordRetrieval("miss")
		return "", false
	}

	r.metrics.RecordRetrieval("hit")
	return FormatDigest(matches), true
}

// Search embeds query and returns up to topK cards at or above the
// threshold, most similar first.
func (r *Retriever) Search(ctx context.Context, query string) ([]Match, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &RetrievalError{Stage: "embed", Err: err}
	}
	if len(vec) == 0 {
		return nil, &RetrievalError{Stage: "embed", Err: errors.New("empty embedding")}
	}

	matches, err := r.store.SimilaritySearch(ctx, vec, r.threshold, r.topK)
	if err != nil {
		return nil, &RetrievalError{Stage: "search", Err: err}
	}

	// Stores are not trusted to honor threshold, order and limit.
	kept := matches[:0:0]
	for _, m := range matches {
		if m.Similarity >= r.threshold {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Similarity > kept[j].Similarity
	})
	if len(kept) > r.topK {
		kept = kept[:r.topK]
	}
	return kept, nil
}

// FormatDigest renders one line per match.
func FormatDigest(matches []Match) string {
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, m.Card.IndustryContext+": "+m.Card.ProblemAbstract+" -> "+m.Card.SolutionPattern)
	}
	return strings.Join(lines, "\n")
}
