// Package file JSON 状态文件存储
//
// 默认后端，适用于单操作者在本机执行 provisioning 的场景。
// 全部记录保存在一个 JSON 文件中，写入通过临时文件 + 原子重命名完成，
// 中断的运行不会留下半写状态。
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"deploy-admin/internal/model"
	"deploy-admin/internal/triggerstore"
)

// Store JSON 文件触发记录存储
type Store struct {
	path string
	mu   sync.Mutex
}

var _ triggerstore.Store = (*Store)(nil)

// stateFile 状态文件的磁盘格式
type stateFile struct {
	Records map[string]*model.TriggerRecord `json:"records"`
}

// New 创建文件存储；父目录不存在时自动创建
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Get(ctx context.Context, name string) (*model.TriggerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	record, ok := state.Records[name]
	if !ok {
		return nil, triggerstore.ErrNotFound
	}
	return record, nil
}

func (s *Store) Put(ctx context.Context, record *model.TriggerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	state.Records[record.Name] = record
	return s.save(state)
}

func (s *Store) List(ctx context.Context) ([]*model.TriggerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(state.Records))
	for name := range state.Records {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]*model.TriggerRecord, 0, len(names))
	for _, name := range names {
		records = append(records, state.Records[name])
	}
	return records, nil
}

func (s *Store) Close() error {
	return nil
}

// load 读取状态文件；文件不存在视为空状态
func (s *Store) load() (*stateFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &stateFile{Records: make(map[string]*model.TriggerRecord)}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	if state.Records == nil {
		state.Records = make(map[string]*model.TriggerRecord)
	}
	return &state, nil
}

// save 原子写入状态文件
func (s *Store) save(state *stateFile) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".trigger-state-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}
