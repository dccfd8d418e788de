// Package minio 对象存储触发记录后端
//
// 每个制品一个 JSON 对象，Key 为 triggers/<name>.json。
// 适用于 provisioning 状态需要放在共享对象存储（如自建 MinIO 或
// S3 兼容服务）的场景。
package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"deploy-admin/internal/model"
	"deploy-admin/internal/triggerstore"
)

// keyPrefix 对象 Key 前缀
const keyPrefix = "triggers/"

// Config MinIO 连接配置
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store 对象存储触发记录后端
type Store struct {
	mc     *minio.Client
	bucket string
}

var _ triggerstore.Store = (*Store)(nil)

// New 创建 MinIO 存储；bucket 不存在时自动创建
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "deploy-admin"
	}

	exists, err := mc.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		log.Printf("[TriggerStore] Created bucket: %s", bucket)
	}

	return &Store{mc: mc, bucket: bucket}, nil
}

// objectKey 制品名称到对象 Key
func objectKey(name string) string {
	return keyPrefix + name + ".json"
}

func (s *Store) Get(ctx context.Context, name string) (*model.TriggerRecord, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, objectKey(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get trigger record %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, triggerstore.ErrNotFound
		}
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
	_, err = s.mc.PutObject(ctx, s.bucket, objectKey(record.Name),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
	if err != nil {
		return fmt.Errorf("put trigger record %s: %w", record.Name, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*model.TriggerRecord, error) {
	listCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var names []string
	for obj := range s.mc.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:    keyPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list trigger records: %w", obj.Err)
		}
		name := strings.TrimSuffix(path.Base(obj.Key), ".json")
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]*model.TriggerRecord, 0, len(names))
	for _, name := range names {
		record, err := s.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Store) Close() error {
	return nil
}
