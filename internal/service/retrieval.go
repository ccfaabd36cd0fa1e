package service

import (
	"context"

	"github.com/mwanachuomind/backend/internal/domain"
)

const (
	defaultWidenFactor   = 4
	defaultMinCandidates = 20
	defaultMaxCandidates = 200
)

// ChunkSearcher is the raw similarity search primitive. It filters by at
// most one document; broader scopes are composed on top of it.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, embedding []float32, documentID string, threshold float32, limit int) ([]domain.RetrievedChunk, error)
	ListDocumentIDsByCourse(ctx context.Context, courseID string) ([]string, error)
}

// RetrievalConfig tunes similarity search admission. Thresholds and result
// counts are configuration; no single value is canonical.
type RetrievalConfig struct {
	Threshold float32
	TopK      int
	// Scoped values apply when the query targets a single document or note.
	ScopedThreshold float32
	ScopedTopK      int
	// WidenFactor is the over-fetch multiplier for course-wide scope, where
	// the raw primitive cannot filter by document-set membership.
	WidenFactor int
}

// DefaultRetrievalConfig provides sane retrieval defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Threshold:       0.5,
		TopK:            5,
		ScopedThreshold: 0.3,
		ScopedTopK:      10,
		WidenFactor:     defaultWidenFactor,
	}
}

// Params resolves the effective threshold and result count for a scope.
func (cfg RetrievalConfig) Params(filters domain.ScopeFilters) (float32, int) {
	if filters.EntityID() != "" {
		return cfg.ScopedThreshold, cfg.ScopedTopK
	}
	return cfg.Threshold, cfg.TopK
}

// RetrievalService performs scoped similarity search over persisted chunks.
type RetrievalService struct {
	repo ChunkSearcher
	cfg  RetrievalConfig
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(repo ChunkSearcher, cfg RetrievalConfig) *RetrievalService {
	if cfg.WidenFactor <= 0 {
		cfg.WidenFactor = defaultWidenFactor
	}
	return &RetrievalService{repo: repo, cfg: cfg}
}

// Config returns the retrieval tuning in effect.
func (s *RetrievalService) Config() RetrievalConfig {
	return s.cfg
}

// Search returns the chunks most similar to the query embedding within the
// requested scope, ordered by descending score. Returning fewer than topK
// results is expected when little content clears the threshold.
func (s *RetrievalService) Search(ctx context.Context, embedding []float32, filters domain.ScopeFilters, threshold float32, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	if entityID := filters.EntityID(); entityID != "" {
		results, err := s.repo.SearchChunks(ctx, embedding, entityID, threshold, topK)
		if err != nil {
			return nil, domain.NewSearchError(err)
		}
		return results, nil
	}

	if filters.CourseID == "" {
		results, err := s.repo.SearchChunks(ctx, embedding, "", threshold, topK)
		if err != nil {
			return nil, domain.NewSearchError(err)
		}
		return results, nil
	}

	// Course-wide scope: the raw primitive only filters by a single
	// document, so over-fetch and filter to the course's documents locally,
	// preserving rank order, then re-truncate.
	docIDs, err := s.repo.ListDocumentIDsByCourse(ctx, filters.CourseID)
	if err != nil {
		return nil, domain.NewSearchError(err)
	}
	if len(docIDs) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	candidateLimit := topK * s.cfg.WidenFactor
	if candidateLimit < defaultMinCandidates {
		candidateLimit = defaultMinCandidates
	}
	if candidateLimit > defaultMaxCandidates {
		candidateLimit = defaultMaxCandidates
	}

	candidates, err := s.repo.SearchChunks(ctx, embedding, "", threshold, candidateLimit)
	if err != nil {
		return nil, domain.NewSearchError(err)
	}

	allowed := make(map[string]struct{}, len(docIDs))
	for _, id := range docIDs {
		allowed[id] = struct{}{}
	}

	results := make([]domain.RetrievedChunk, 0, topK)
	for _, c := range candidates {
		if _, ok := allowed[c.DocumentID]; !ok {
			continue
		}
		results = append(results, c)
		if len(results) == topK {
			break
		}
	}

	return results, nil
}
