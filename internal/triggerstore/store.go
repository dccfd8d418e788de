// Package triggerstore 定义构建触发记录的持久化抽象
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖 Store 接口，不知道具体实现
//   - 具体实现在子包中：file/, sqlite/, postgres/, redis/, minio/
//   - 初始化时通过依赖注入传入实现
//
// 记录以制品名称为 Key；各制品的记录互不相交，单次 provisioning
// 过程内无需加锁。
package triggerstore

import (
	"context"
	"errors"

	"deploy-admin/internal/model"
)

// ErrNotFound 制品尚无触发记录（首次发布前的正常状态）
var ErrNotFound = errors.New("trigger record not found")

// Store 触发记录存储接口
type Store interface {
	// Get 按制品名称读取记录；不存在时返回 ErrNotFound
	Get(ctx context.Context, name string) (*model.TriggerRecord, error)

	// Put 写入或覆盖记录（仅在发布成功后调用）
	Put(ctx context.Context, record *model.TriggerRecord) error

	// List 返回全部记录（诊断用）
	List(ctx context.Context) ([]*model.TriggerRecord, error)

	// Close 释放底层连接
	Close() error
}

// ShouldPublish 判断制品是否需要重建发布
//
// 返回 true 的条件：尚无触发记录，或记录中的指纹与新指纹不一致。
// 幂等：输入与存储状态不变时，重复调用结论不变。
func ShouldPublish(ctx context.Context, store Store, name string, fp model.Fingerprint) (bool, error) {
	record, err := store.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !record.Matches(fp), nil
}
