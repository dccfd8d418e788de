// Package triggerstore 存储抽象与发布判定测试
package triggerstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deploy-admin/internal/model"
)

// TestShouldPublish_FirstSeen 从未发布过的制品必须发布
func TestShouldPublish_FirstSeen(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fp := model.Fingerprint(strings.Repeat("a", 64))

	ok, err := ShouldPublish(ctx, store, "dashboard", fp)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestShouldPublish_Unchanged 记录成功写入后同指纹不再发布
func TestShouldPublish_Unchanged(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fp := model.Fingerprint(strings.Repeat("a", 64))

	require.NoError(t, store.Put(ctx, &model.TriggerRecord{
		Name:        "dashboard",
		Fingerprint: fp,
		PublishedAt: time.Now(),
	}))

	ok, err := ShouldPublish(ctx, store, "dashboard", fp)
	require.NoError(t, err)
	assert.False(t, ok)

	// 幂等：重复判定结论不变
	ok, err = ShouldPublish(ctx, store, "dashboard", fp)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestShouldPublish_Changed 指纹变化触发发布
func TestShouldPublish_Changed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, &model.TriggerRecord{
		Name:        "orchestration",
		Fingerprint: model.Fingerprint(strings.Repeat("a", 64)),
	}))

	ok, err := ShouldPublish(ctx, store, "orchestration", model.Fingerprint(strings.Repeat("b", 64)))
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestShouldPublish_RetryAfterFailure 发布失败未推进记录时，下次运行重新判定为需要发布
func TestShouldPublish_RetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fp := model.Fingerprint(strings.Repeat("c", 64))

	// 第一次判定：需要发布
	ok, err := ShouldPublish(ctx, store, "dashboard", fp)
	require.NoError(t, err)
	assert.True(t, ok)

	// 发布失败：记录未写入。源码未变，重算得到同一指纹，仍需发布
	ok, err = ShouldPublish(ctx, store, "dashboard", fp)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestMemoryStore_CRUD 内存存储基本操作
func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "dashboard")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := &model.TriggerRecord{
		Name:        "dashboard",
		Fingerprint: model.Fingerprint(strings.Repeat("d", 64)),
		ImageRef:    "localhost:5000/dashboard:dddddddddddd",
		PublishedAt: time.Now(),
	}
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "dashboard")
	require.NoError(t, err)
	assert.Equal(t, rec.Fingerprint, got.Fingerprint)
	assert.Equal(t, rec.ImageRef, got.ImageRef)

	// Get 返回副本，修改不影响存储内容
	got.Fingerprint = "tampered"
	again, err := store.Get(ctx, "dashboard")
	require.NoError(t, err)
	assert.Equal(t, rec.Fingerprint, again.Fingerprint)

	// List 按名称有序
	require.NoError(t, store.Put(ctx, &model.TriggerRecord{Name: "orchestration"}))
	require.NoError(t, store.Put(ctx, &model.TriggerRecord{Name: "base-image"}))
	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "base-image", all[0].Name)
	assert.Equal(t, "dashboard", all[1].Name)
	assert.Equal(t, "orchestration", all[2].Name)
}
