// Package redis Redis 触发记录存储
//
// 适用于已有共享 Redis 的团队；记录以 JSON 串存储，不设置 TTL
// （触发记录必须跨运行存活，过期等价于丢失发布历史）。
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"deploy-admin/internal/model"
	"deploy-admin/internal/triggerstore"
)

// keyTriggerRecord 记录 Key 前缀
const keyTriggerRecord = "trigger_record:"

// Store Redis 触发记录存储
type Store struct {
	client *redis.Client
}

var _ triggerstore.Store = (*Store)(nil)

// New 创建 Redis 存储实例
func New(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[TriggerStore] Connected to Redis at %s", addr)
	return &Store{client: client}, nil
}

func (s *Store) Get(ctx context.Context, name string) (*model.TriggerRecord, error) {
	data, err := s.client.Get(ctx, keyTriggerRecord+name).Bytes()
	if err == redis.Nil {
		return nil, triggerstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trigger record %s: %w", name, err)
	}

	var record model.TriggerRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse trigger record %s: %w", name, err)
	}
	return &record, nil
}

func (s *Store) Put(ctx context.Context, record *model.TriggerRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyTriggerRecord+record.Name, data, 0).Err(); err != nil {
		return fmt.Errorf("put trigger record %s: %w", record.Name, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*model.TriggerRecord, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, keyTriggerRecord+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan trigger records: %w", err)
	}
	sort.Strings(keys)

	records := make([]*model.TriggerRecord, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var record model.TriggerRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("parse trigger record at %s: %w", key, err)
		}
		records = append(records, &record)
	}
	return records, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
