// Package triggerstore 内存实现（测试与 dry-run 用）
package triggerstore

import (
	"context"
	"sort"
	"sync"

	"deploy-admin/internal/model"
)

// MemoryStore 内存触发记录存储
//
// 不跨进程持久化，仅用于测试和 dry-run。
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.TriggerRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.TriggerRecord)}
}

func (s *MemoryStore) Get(ctx context.Context, name string) (*model.TriggerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *MemoryStore) Put(ctx context.Context, record *model.TriggerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.Name] = *record
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*model.TriggerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]*model.TriggerRecord, 0, len(names))
	for _, name := range names {
		record := s.records[name]
		records = append(records, &record)
	}
	return records, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
