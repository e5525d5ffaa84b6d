package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"punchgate/internal/payroll/models"
	id "punchgate/pkg/domain"
	"punchgate/pkg/platform/sentinel"
)

// NewMemoryHandle builds a fully in-memory tenant handle for tests/dev.
func NewMemoryHandle(tenantID id.TenantID, name string) *Handle {
	return &Handle{
		TenantID:  tenantID,
		Name:      name,
		Batches:   NewMemoryBatchStore(),
		Timecards: NewMemoryTimecardStore(),
	}
}

// MemoryBatchStore keeps payroll batches in memory.
type MemoryBatchStore struct {
	mu      sync.RWMutex
	batches map[id.BatchID]*models.PayrollBatch
}

func NewMemoryBatchStore() *MemoryBatchStore {
	return &MemoryBatchStore{batches: make(map[id.BatchID]*models.PayrollBatch)}
}

func (s *MemoryBatchStore) Create(_ context.Context, batch *models.PayrollBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; ok {
		return fmt.Errorf("batch already exists: %w", sentinel.ErrConflict)
	}
	s.batches[batch.ID] = cloneBatch(batch)
	return nil
}

func (s *MemoryBatchStore) FindByID(_ context.Context, batchID id.BatchID) (*models.PayrollBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if batch, ok := s.batches[batchID]; ok {
		return cloneBatch(batch), nil
	}
	return nil, fmt.Errorf("batch not found: %w", sentinel.ErrNotFound)
}

func (s *MemoryBatchStore) FindLockingByTimecard(_ context.Context, timecardID id.TimecardID) ([]*models.PayrollBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []*models.PayrollBatch
	for _, batch := range s.batches {
		if batch.Status.Locks() && batch.HasMember(timecardID) {
			matches = append(matches, cloneBatch(batch))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func (s *MemoryBatchStore) Transition(_ context.Context, batchID id.BatchID, next models.BatchStatus, now time.Time) (*models.PayrollBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch not found: %w", sentinel.ErrNotFound)
	}
	if err := batch.Transition(next, now); err != nil {
		return nil, err
	}
	return cloneBatch(batch), nil
}

func cloneBatch(b *models.PayrollBatch) *models.PayrollBatch {
	copied := *b
	copied.MemberTimecardIDs = append([]id.TimecardID(nil), b.MemberTimecardIDs...)
	return &copied
}

// MemoryTimecardStore keeps timecards in memory.
type MemoryTimecardStore struct {
	mu        sync.RWMutex
	timecards map[id.TimecardID]*models.Timecard
}

func NewMemoryTimecardStore() *MemoryTimecardStore {
	return &MemoryTimecardStore{timecards: make(map[id.TimecardID]*models.Timecard)}
}

func (s *MemoryTimecardStore) Create(_ context.Context, timecard *models.Timecard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timecards[timecard.ID]; ok {
		return fmt.Errorf("timecard already exists: %w", sentinel.ErrConflict)
	}
	s.timecards[timecard.ID] = cloneTimecard(timecard)
	return nil
}

func (s *MemoryTimecardStore) FindByID(_ context.Context, timecardID id.TimecardID) (*models.Timecard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if timecard, ok := s.timecards[timecardID]; ok {
		return cloneTimecard(timecard), nil
	}
	return nil, fmt.Errorf("timecard not found: %w", sentinel.ErrNotFound)
}

func (s *MemoryTimecardStore) ListByUser(_ context.Context, userID id.UserID, start, end time.Time) ([]*models.Timecard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []*models.Timecard
	for _, timecard := range s.timecards {
		if timecard.UserID != userID {
			continue
		}
		if timecard.PeriodEnd.Before(start) || timecard.PeriodStart.After(end) {
			continue
		}
		matches = append(matches, cloneTimecard(timecard))
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].PeriodStart.Before(matches[j].PeriodStart)
	})
	return matches, nil
}

func (s *MemoryTimecardStore) UpdatePunch(_ context.Context, timecardID id.TimecardID, punch models.Punch, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	timecard, ok := s.timecards[timecardID]
	if !ok {
		return fmt.Errorf("timecard not found: %w", sentinel.ErrNotFound)
	}
	existing := timecard.FindPunch(punch.ID)
	if existing == nil {
		return fmt.Errorf("punch not found: %w", sentinel.ErrNotFound)
	}
	*existing = punch
	timecard.UpdatedAt = now
	return nil
}

func cloneTimecard(t *models.Timecard) *models.Timecard {
	copied := *t
	copied.Punches = append([]models.Punch(nil), t.Punches...)
	return &copied
}
