package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finance-agent/internal/jobs"
)

// Store keeps job records in memory. Safe for concurrent use; state is lost
// on restart, which is acceptable for recompute jobs since they are cheap to
// re-trigger.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.RecomputePatternJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.RecomputePatternJob)}
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.RecomputePatternJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.RecomputePatternJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	cp := *job
	return &cp, nil
}

func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.RecomputePatternJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.RecomputePatternJob
	for _, job := range s.jobs {
		if filter.Category != "" && job.Category != filter.Category {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		cp := *job
		result = append(result, &cp)
	}

	// Map iteration order is random; newest first keeps listings stable.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.RecomputePatternJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)
