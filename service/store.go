package service

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/julienmessagingme/newdevis-sub000/config"
	"github.com/julienmessagingme/newdevis-sub000/model"
)

// ErrTenantMismatch is returned when a request targets an analysis owned by
// another tenant.
var ErrTenantMismatch = errors.New("analysis belongs to another tenant")

// AnalysisStore is an in-memory store for quote analyses.
// In production, this should be replaced with a database.
//
// Merge runs as a single critical section, so two concurrent submissions for
// the two attestation types of the same analysis can never lose each other's
// write: each merge patches only its own type key and recomputes the overall
// verdict from whatever the sibling holds at that point.
type AnalysisStore struct {
	analyses    map[string]*model.Analysis
	mu          sync.RWMutex
	maxAnalyses int // Maximum analyses to keep, 0 = unlimited
}

var (
	globalStore *AnalysisStore
	storeOnce   sync.Once
)

// NewAnalysisStore creates a standalone store, mainly for tests.
func NewAnalysisStore(maxAnalyses int) *AnalysisStore {
	if maxAnalyses < 0 {
		maxAnalyses = 0
	}
	return &AnalysisStore{
		analyses:    make(map[string]*model.Analysis),
		maxAnalyses: maxAnalyses,
	}
}

// InitAnalysisStore initializes the global analysis store with configuration.
func InitAnalysisStore(cfg *config.StoreConfig) {
	storeOnce.Do(func() {
		globalStore = NewAnalysisStore(cfg.MaxAnalyses)
		slog.Info("analysis store initialized", "max_analyses", globalStore.maxAnalyses)
	})
}

// GetAnalysisStore returns the global analysis store. The fallback goes
// through the same storeOnce as InitAnalysisStore, so concurrent first calls
// can never produce two stores.
func GetAnalysisStore() *AnalysisStore {
	storeOnce.Do(func() {
		globalStore = NewAnalysisStore(500)
	})
	return globalStore
}

// Merge upserts one attestation type's result into the analysis record,
// leaving the sibling type untouched, and recomputes the overall verdict.
// The record is created on first merge. Returns a copy of the merged record.
func (s *AnalysisStore) Merge(id, tenant string, typ model.AttestationType, result *model.AttestationResult) (*model.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.analyses[id]
	if !ok {
		a = &model.Analysis{
			ID:        id,
			Tenant:    tenant,
			CreatedAt: time.Now(),
		}
		s.analyses[id] = a
	} else if a.Tenant != tenant {
		return nil, ErrTenantMismatch
	}

	a.SetResult(typ, result)
	a.Overall = OverallVerdict(a)
	a.UpdatedAt = time.Now()

	s.cleanupIfNeeded(id)

	return a.Clone(), nil
}

// Get returns a copy of the analysis, nil if unknown.
func (s *AnalysisStore) Get(id string) *model.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.analyses[id]
	if !ok {
		return nil
	}
	return a.Clone()
}

// Delete removes an analysis record.
func (s *AnalysisStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.analyses, id)
}

// Count returns the number of analyses in the store.
func (s *AnalysisStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.analyses)
}

// cleanupIfNeeded evicts the oldest analyses when the store exceeds its
// capacity, never evicting the record just touched.
// Must be called with lock held.
func (s *AnalysisStore) cleanupIfNeeded(keep string) {
	if s.maxAnalyses <= 0 {
		return // Unlimited
	}
	if len(s.analyses) <= s.maxAnalyses {
		return
	}

	analyses := make([]*model.Analysis, 0, len(s.analyses))
	for _, a := range s.analyses {
		if a.ID != keep {
			analyses = append(analyses, a)
		}
	}
	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].CreatedAt.Before(analyses[j].CreatedAt)
	})

	removeCount := len(s.analyses) - s.maxAnalyses
	for i := 0; i < removeCount && i < len(analyses); i++ {
		slog.Info("auto-cleaning old analysis",
			"analysis_id", analyses[i].ID,
			"created_at", analyses[i].CreatedAt,
		)
		delete(s.analyses, analyses[i].ID)
	}
}
