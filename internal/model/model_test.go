// Package model 核心数据模型测试
package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestArtifactDescriptor_Validate 验证制品描述的合法性检查
func TestArtifactDescriptor_Validate(t *testing.T) {
	// 合法描述
	d := ArtifactDescriptor{
		Name:            "dashboard",
		SourceRoots:     []string{"dashboard"},
		ExtraFiles:      []string{"dashboard/Dockerfile", "dashboard/requirements.txt"},
		ExcludePrefixes: []string{"logs/"},
	}
	require.NoError(t, d.Validate())

	// 名称为空
	d = ArtifactDescriptor{SourceRoots: []string{"src"}}
	assert.Error(t, d.Validate())

	// 名称含非法字符（会破坏镜像引用）
	d = ArtifactDescriptor{Name: "Dash_Board", SourceRoots: []string{"src"}}
	assert.Error(t, d.Validate())

	// 没有任何文件来源
	d = ArtifactDescriptor{Name: "empty"}
	assert.Error(t, d.Validate())

	// 仅有 ExtraFiles 也合法（纯 Dockerfile 制品）
	d = ArtifactDescriptor{Name: "base", ExtraFiles: []string{"Dockerfile"}}
	assert.NoError(t, d.Validate())

	// 空字符串的 source root
	d = ArtifactDescriptor{Name: "bad", SourceRoots: []string{""}}
	assert.Error(t, d.Validate())
}

// TestFingerprint_Short 验证短指纹前缀
func TestFingerprint_Short(t *testing.T) {
	fp := Fingerprint(strings.Repeat("a", 64))
	assert.Len(t, fp.Short(), ShortFingerprintLen)
	assert.Equal(t, strings.Repeat("a", 12), fp.Short())

	// 短于前缀长度时原样返回
	assert.Equal(t, "abc", Fingerprint("abc").Short())
	assert.True(t, Fingerprint("").IsZero())
}

// TestFingerprint_Equal 验证相等性使用完整摘要
func TestFingerprint_Equal(t *testing.T) {
	a := Fingerprint("3f2a91c04d1e" + strings.Repeat("0", 52))
	b := Fingerprint("3f2a91c04d1e" + strings.Repeat("1", 52))

	// 短前缀相同但完整摘要不同：不相等
	assert.Equal(t, a.Short(), b.Short())
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))
}

// TestTriggerRecord_Matches 验证触发记录的指纹匹配
func TestTriggerRecord_Matches(t *testing.T) {
	fp := Fingerprint(strings.Repeat("b", 64))
	rec := &TriggerRecord{
		Name:        "orchestration",
		Fingerprint: fp,
		ImageRef:    "registry.example.com/spotify/orchestration:" + fp.Short(),
		PublishedAt: time.Now(),
	}

	assert.True(t, rec.Matches(fp))
	assert.False(t, rec.Matches(Fingerprint(strings.Repeat("c", 64))))

	// nil 记录不匹配任何指纹（首次发布场景）
	var missing *TriggerRecord
	assert.False(t, missing.Matches(fp))
}

// TestImageRef 验证镜像引用拼装
func TestImageRef(t *testing.T) {
	assert.Equal(t, "registry.example.com/spotify/dashboard:latest",
		ImageRef("registry.example.com", "spotify", "dashboard", "latest"))
	assert.Equal(t, "localhost:5000/dashboard:3f2a91c04d1e",
		ImageRef("localhost:5000", "", "dashboard", "3f2a91c04d1e"))
}
