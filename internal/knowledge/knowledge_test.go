package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nova/internal/llm"
	"github.com/MikeSquared-Agency/nova/internal/spec"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEmbedder returns a fixed vector per text, or err when set.
type fakeEmbedder struct {
	vecs  map[string][]float32
	err   error
	delay time.Duration
	calls []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vecs[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

// unitAt returns a 2-d unit vector whose cosine with (1,0) is sim.
func unitAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func card(industry, abstract, pattern string, vec []float32) *SolutionCard {
	return &SolutionCard{
		ID:              uuid.New(),
		ProblemAbstract: abstract,
		SolutionPattern: pattern,
		IndustryContext: industry,
		Embedding:       vec,
	}
}

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(2)
	for _, c := range []*SolutionCard{
		card("Handwerk", "Angebote manuell aus Excel", "Angebotsgenerator aus Vorlagen", unitAt(0.8)),
		card("Logistik", "Lieferscheine abtippen", "OCR-Pipeline mit Validierung", unitAt(0.6)),
		card("Gastronomie", "Dienstplan per WhatsApp", "Schichtplanungs-App", unitAt(0.3)),
	} {
		if err := s.InsertCard(context.Background(), c); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return s
}

func TestMemoryStore_ThresholdAndOrder(t *testing.T) {
	s := seededStore(t)

	got, err := s.SimilaritySearch(context.Background(), []float32{1, 0}, 0.5, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if math.Abs(got[0].Similarity-0.8) > 1e-6 || math.Abs(got[1].Similarity-0.6) > 1e-6 {
		t.Errorf("expected similarities [0.8 0.6], got [%g %g]", got[0].Similarity, got[1].Similarity)
	}
	if got[0].Card.IndustryContext != "Handwerk" {
		t.Errorf("expected Handwerk first, got %s", got[0].Card.IndustryContext)
	}
}

func TestMemoryStore_TiesPreferMostRecent(t *testing.T) {
	s := NewMemoryStore(2)
	older := card("A", "older", "p", []float32{1, 0})
	newer := card("B", "newer", "p", []float32{1, 0})
	_ = s.InsertCard(context.Background(), older)
	_ = s.InsertCard(context.Background(), newer)

	got, _ := s.SimilaritySearch(context.Background(), []float32{1, 0}, 0.5, 1)
	if len(got) != 1 || got[0].Card.ID != newer.ID {
		t.Errorf("expected most recently inserted card on a tie")
	}
}

func TestMemoryStore_Rejects(t *testing.T) {
	s := NewMemoryStore(3)
	if err := s.InsertCard(context.Background(), card("x", "a", "b", []float32{1, 0})); err == nil {
		t.Error("expected dimension mismatch error")
	}

	c := card("x", "a", "b", []float32{1, 0, 0})
	if err := s.InsertCard(context.Background(), c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertCard(context.Background(), c); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestMemoryStore_SkipsCardsWithoutEmbedding(t *testing.T) {
	s := NewMemoryStore(2)
	_ = s.InsertCard(context.Background(), card("x", "a", "b", nil))
	got, _ := s.SimilaritySearch(context.Background(), []float32{1, 0}, 0, 5)
	if len(got) != 0 {
		t.Errorf("expected no matches for unembedded card, got %d", len(got))
	}
	if s.Len() != 1 {
		t.Errorf("expected card to be stored, Len=%d", s.Len())
	}
}

func TestRetriever_Digest(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, seededStore(t), RetrieverConfig{}, discardLogger())

	digest, ok := r.Retrieve(context.Background(), "Ich schreibe Angebote von Hand")
	if !ok {
		t.Fatal("expected a digest")
	}
	want := "Handwerk: Angebote manuell aus Excel -> Angebotsgenerator aus Vorlagen\n" +
		"Logistik: Lieferscheine abtippen -> OCR-Pipeline mit Validierung"
	if digest != want {
		t.Errorf("digest mismatch:\n got: %q\nwant: %q", digest, want)
	}
}

func TestRetriever_NoDigest(t *testing.T) {
	tests := []struct {
		name     string
		embedder *fakeEmbedder
		store    Store
		query    string
	}{
		{"embed failure", &fakeEmbedder{err: errors.New("down")}, NewMemoryStore(2), "q"},
		{"empty store", &fakeEmbedder{}, NewMemoryStore(2), "q"},
		{"empty vector", &fakeEmbedder{vecs: map[string][]float32{"q": {}}}, NewMemoryStore(2), "q"},
		{"blank query", &fakeEmbedder{}, NewMemoryStore(2), "   "},
		{"timeout", &fakeEmbedder{delay: time.Second}, NewMemoryStore(2), "q"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRetriever(tc.embedder, tc.store, RetrieverConfig{Timeout: 20 * time.Millisecond}, discardLogger())
			if digest, ok := r.Retrieve(context.Background(), tc.query); ok || digest != "" {
				t.Errorf("expected no digest, got %q", digest)
			}
		})
	}
}

// looseStore ignores threshold and limit, to check the retriever re-filters.
type looseStore struct{ matches []Match }

func (l *looseStore) InsertCard(context.Context, *SolutionCard) error { return nil }
func (l *looseStore) SimilaritySearch(context.Context, []float32, float64, int) ([]Match, error) {
	return l.matches, nil
}

func TestRetriever_RefiltersStoreResults(t *testing.T) {
	store := &looseStore{matches: []Match{
		{Card: SolutionCard{IndustryContext: "low"}, Similarity: 0.2},
		{Card: SolutionCard{IndustryContext: "mid"}, Similarity: 0.55},
		{Card: SolutionCard{IndustryContext: "top"}, Similarity: 0.9},
		{Card: SolutionCard{IndustryContext: "high"}, Similarity: 0.7},
	}}
	r := NewRetriever(&fakeEmbedder{}, store, RetrieverConfig{}, discardLogger())

	got, err := r.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].Card.IndustryContext != "top" || got[1].Card.IndustryContext != "high" {
		t.Errorf("expected [top high], got %+v", got)
	}
}

func TestRetriever_SearchErrorIsRetrievalError(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{err: llm.ErrNotConfigured}, NewMemoryStore(2), RetrieverConfig{}, discardLogger())
	_, err := r.Search(context.Background(), "q")
	var re *RetrievalError
	if !errors.As(err, &re) || re.Stage != "embed" {
		t.Fatalf("expected embed RetrievalError, got %v", err)
	}
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Error("expected wrapped ErrNotConfigured")
	}
}

func completedSpec() *spec.Specification {
	return &spec.Specification{
		ID:            uuid.New(),
		ProjectNumber: "2026-014",
		Title:         "Angebotsautomatisierung",
		Industry:      "Handwerk",
		Status:        spec.StatusCompleted,
	}
}

func TestWriter_Commit(t *testing.T) {
	store := NewMemoryStore(2)
	emb := &fakeEmbedder{vecs: map[string][]float32{"Angebote dauern zu lange": {0, 1}}}
	w := NewWriter(emb, store, nil, discardLogger())
	sp := completedSpec()

	c, err := w.Commit(context.Background(), sp, Summary{
		ProblemAbstract:      "  Angebote dauern zu lange ",
		SolutionPattern:      "Vorlagenbasierter Generator",
		FunctionalityProfile: []string{"pdf export", "pdf export", ""},
		UseCaseTags:          []string{"angebote"},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.SourceSpecificationID == nil || *c.SourceSpecificationID != sp.ID {
		t.Error("expected card to reference the specification")
	}
	if c.IndustryContext != spec.NotSpecified {
		t.Errorf("expected blank industry to become %q, got %q", spec.NotSpecified, c.IndustryContext)
	}
	if len(c.FunctionalityProfile) != 1 {
		t.Errorf("expected deduplicated profile, got %v", c.FunctionalityProfile)
	}
	if len(c.Embedding) != 2 || emb.calls[0] != "Angebote dauern zu lange" {
		t.Errorf("expected problem abstract to be embedded, calls=%v", emb.calls)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 stored card, got %d", store.Len())
	}
}

func TestWriter_EmbeddingFailureStillStores(t *testing.T) {
	store := NewMemoryStore(2)
	w := NewWriter(&fakeEmbedder{err: errors.New("rate limited")}, store, nil, discardLogger())

	c, err := w.Commit(context.Background(), completedSpec(), Summary{ProblemAbstract: "a", SolutionPattern: "b"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.Embedding != nil {
		t.Error("expected nil embedding")
	}
	if store.Len() != 1 {
		t.Error("expected card to be stored")
	}
	got, _ := store.SimilaritySearch(context.Background(), []float32{1, 0}, 0, 5)
	if len(got) != 0 {
		t.Error("expected unembedded card to be excluded from search")
	}
}

func TestWriter_Rejects(t *testing.T) {
	w := NewWriter(&fakeEmbedder{}, NewMemoryStore(2), nil, discardLogger())

	if _, err := w.Commit(context.Background(), completedSpec(), Summary{SolutionPattern: "b"}); !errors.Is(err, ErrInvalidSummary) {
		t.Errorf("expected ErrInvalidSummary, got %v", err)
	}

	draft := completedSpec()
	draft.Status = spec.StatusApproved
	if _, err := w.Commit(context.Background(), draft, Summary{ProblemAbstract: "a", SolutionPattern: "b"}); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("expected ErrNotCompleted, got %v", err)
	}
}

func TestWriter_CorrectionSupersedes(t *testing.T) {
	store := NewMemoryStore(2)
	w := NewWriter(&fakeEmbedder{}, store, nil, discardLogger())
	sp := completedSpec()

	first, _ := w.Commit(context.Background(), sp, Summary{ProblemAbstract: "a", SolutionPattern: "b"})
	second, err := w.Commit(context.Background(), sp, Summary{ProblemAbstract: "a2", SolutionPattern: "b2", Supersedes: &first.ID})
	if err != nil {
		t.Fatalf("commit correction: %v", err)
	}
	if second.ID == first.ID || second.Supersedes == nil || *second.Supersedes != first.ID {
		t.Error("expected a new card superseding the first")
	}
	if store.Len() != 2 {
		t.Errorf("expected both cards kept, got %d", store.Len())
	}
}

// structuredGen answers GenerateJSON with a fixed payload.
type structuredGen struct {
	payload string
	prompt  llm.Prompt
	schema  llm.Schema
}

func (g *structuredGen) Generate(context.Context, llm.Prompt) (string, error) {
	return "", errors.New("unexpected free-text call")
}

func (g *structuredGen) GenerateJSON(_ context.Context, p llm.Prompt, s llm.Schema) (json.RawMessage, error) {
	g.prompt, g.schema = p, s
	return json.RawMessage(g.payload), nil
}

type textGen struct{ text string }

func (g textGen) Generate(context.Context, llm.Prompt) (string, error) { return g.text, nil }

func TestSummarizer_Structured(t *testing.T) {
	gen := &structuredGen{payload: `{"problem_abstract":"p","solution_pattern":"s","functionality_profile":["x"],"use_case_tags":["t"]}`}
	s := NewSummarizer(gen, nil, discardLogger())
	sp := completedSpec()

	sum, err := s.Summarize(context.Background(), sp)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.ProblemAbstract != "p" || sum.SolutionPattern != "s" {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.IndustryContext != "Handwerk" {
		t.Errorf("expected industry to default to the specification's, got %q", sum.IndustryContext)
	}
	if gen.schema.Name != summarySchema.Name {
		t.Errorf("expected summary schema, got %q", gen.schema.Name)
	}
	if !strings.Contains(gen.prompt.Turns[0].Text, "Angebotsautomatisierung") {
		t.Error("expected specification in the prompt")
	}
}

func TestSummarizer_FreeTextFallback(t *testing.T) {
	s := NewSummarizer(textGen{text: "Klar:\n```json\n{\"problem_abstract\":\"p\",\"solution_pattern\":\"s\"}\n```"}, nil, discardLogger())
	sum, err := s.Summarize(context.Background(), completedSpec())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.ProblemAbstract != "p" {
		t.Errorf("unexpected summary %+v", sum)
	}

	s = NewSummarizer(textGen{text: "no json"}, nil, discardLogger())
	if _, err := s.Summarize(context.Background(), completedSpec()); !errors.Is(err, llm.ErrNoJSONObject) {
		t.Errorf("expected ErrNoJSONObject, got %v", err)
	}
}
