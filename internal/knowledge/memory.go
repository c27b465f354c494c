package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Inserts only append, so readers see a
// consistent prefix of the slice.
type MemoryStore struct {
	mu         sync.RWMutex
	cards      []SolutionCard
	dimensions int
}

// NewMemoryStore creates a store that accepts embeddings of the given length.
// dimensions <= 0 accepts any length fixed by the first embedded card.
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{dimensions: dimensions}
}

func (m *MemoryStore) InsertCard(_ context.Context, card *SolutionCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if card.Embedding != nil {
		if m.dimensions <= 0 {
			m.dimensions = len(card.Embedding)
		}
		if len(card.Embedding) != m.dimensions {
			return fmt.Errorf("embedding has %d dimensions, want %d", len(card.Embedding), m.dimensions)
		}
	}
	for _, c := range m.cards {
		if c.ID == card.ID {
			return fmt.Errorf("card %s already exists", card.ID)
		}
	}

	stored := *card
	stored.Embedding = append([]float32(nil), card.Embedding...)
	m.cards = append(m.cards, stored)
	return nil
}

func (m *MemoryStore) SimilaritySearch(_ context.Context, query []float32, threshold float64, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	type scored struct {
		Match
		seq int
	}
	var hits []scored
	for i, c := range m.cards {
		if c.Embedding == nil {
			continue
		}
		sim := CosineSimilarity(query, c.Embedding)
		if sim < threshold {
			continue
		}
		hits = append(hits, scored{Match: Match{Card: c, Similarity: sim}, seq: i})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].seq > hits[j].seq
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	out := make([]Match, len(hits))
	for i, h := range hits {
		out[i] = h.Match
	}
	return out, nil
}

// Len returns the number of stored cards.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cards)
}
