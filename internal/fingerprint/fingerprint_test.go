// Package fingerprint 指纹计算的确定性测试
package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deploy-admin/internal/model"
)

// writeFile 写入测试文件（自动创建父目录）
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// newFixture 构建标准测试目录：a.txt ("hello") 和 b/c.txt ("world")
func newFixture(t *testing.T) (string, *model.ArtifactDescriptor) {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(root, "a.txt"), "hello")
	writeFile(t, filepath.Join(root, "b", "c.txt"), "world")

	return root, &model.ArtifactDescriptor{
		Name:        "dashboard",
		SourceRoots: []string{root},
	}
}

// TestCompute_Deterministic 相同内容两次计算得到相同指纹
func TestCompute_Deterministic(t *testing.T) {
	_, desc := newFixture(t)

	fp1, err := Compute(desc)
	require.NoError(t, err)
	fp2, err := Compute(desc)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, string(fp1), 64) // 完整 SHA-256 十六进制
	assert.Len(t, fp1.Short(), model.ShortFingerprintLen)
}

// TestCompute_ContentChange 任意文件的任意字节变化都改变指纹
func TestCompute_ContentChange(t *testing.T) {
	root, desc := newFixture(t)

	before, err := Compute(desc)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "b", "c.txt"), "world!")
	after, err := Compute(desc)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

// TestCompute_AddRemoveRename 文件集合变化总是改变指纹
func TestCompute_AddRemoveRename(t *testing.T) {
	root, desc := newFixture(t)

	base, err := Compute(desc)
	require.NoError(t, err)

	// 新增文件
	writeFile(t, filepath.Join(root, "d.txt"), "new")
	added, err := Compute(desc)
	require.NoError(t, err)
	assert.NotEqual(t, base, added)

	// 删除文件回到原集合
	require.NoError(t, os.Remove(filepath.Join(root, "d.txt")))
	removed, err := Compute(desc)
	require.NoError(t, err)
	assert.Equal(t, base, removed)

	// 重命名（内容不变，路径参与摘要）
	require.NoError(t, os.Rename(filepath.Join(root, "a.txt"), filepath.Join(root, "a2.txt")))
	renamed, err := Compute(desc)
	require.NoError(t, err)
	assert.NotEqual(t, base, renamed)
}

// TestCompute_ExcludePrefix 排除前缀下的文件不影响指纹
func TestCompute_ExcludePrefix(t *testing.T) {
	root, desc := newFixture(t)
	desc.ExcludePrefixes = []string{"logs/"}

	before, err := Compute(desc)
	require.NoError(t, err)

	// 指纹计算之后出现的日志文件：重算结果不变
	writeFile(t, filepath.Join(root, "logs", "run.log"), "2026-08-30 pass ok")
	after, err := Compute(desc)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// 非排除路径下新增文件：指纹变化
	writeFile(t, filepath.Join(root, "b", "extra.txt"), "x")
	changed, err := Compute(desc)
	require.NoError(t, err)
	assert.NotEqual(t, before, changed)
}

// TestCompute_ExcludePrefixWithRoot 带 source root 的排除前缀写法同样生效
func TestCompute_ExcludePrefixWithRoot(t *testing.T) {
	root, desc := newFixture(t)
	desc.ExcludePrefixes = []string{filepath.ToSlash(filepath.Join(root, ".streamlit", "secrets"))}

	before, err := Compute(desc)
	require.NoError(t, err)

	// 排除目录下新增密文文件：指纹不变
	writeFile(t, filepath.Join(root, ".streamlit", "secrets", "creds.toml"), "client_id = 'x'")
	after, err := Compute(desc)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// 同目录的非排除文件仍参与
	writeFile(t, filepath.Join(root, ".streamlit", "config.toml"), "[theme]")
	changed, err := Compute(desc)
	require.NoError(t, err)
	assert.NotEqual(t, before, changed)
}

// TestCompute_ExtraFiles 显式引用文件参与指纹且不受排除过滤
func TestCompute_ExtraFiles(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "src")
	dockerfile := filepath.Join(dir, "Dockerfile")
	writeFile(t, filepath.Join(root, "main.py"), "print('hi')")
	writeFile(t, dockerfile, "FROM python:3.12-slim")

	desc := &model.ArtifactDescriptor{
		Name:        "orchestration",
		SourceRoots: []string{root},
		ExtraFiles:  []string{dockerfile},
	}

	before, err := Compute(desc)
	require.NoError(t, err)

	// Dockerfile 变化触发指纹变化
	writeFile(t, dockerfile, "FROM python:3.13-slim")
	after, err := Compute(desc)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

// TestCompute_SourceUnavailable 缺失输入必须失败而不是跳过
func TestCompute_SourceUnavailable(t *testing.T) {
	dir := t.TempDir()

	// source root 不存在
	desc := &model.ArtifactDescriptor{
		Name:        "dashboard",
		SourceRoots: []string{filepath.Join(dir, "missing")},
	}
	_, err := Compute(desc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	// 显式引用文件不存在
	root := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(root, "a.txt"), "hello")
	desc = &model.ArtifactDescriptor{
		Name:        "dashboard",
		SourceRoots: []string{root},
		ExtraFiles:  []string{filepath.Join(dir, "missing", "Dockerfile")},
	}
	_, err = Compute(desc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

// TestCompute_MultipleRoots 多个 source root 全部参与
func TestCompute_MultipleRoots(t *testing.T) {
	dir := t.TempDir()
	rootA := filepath.Join(dir, "app")
	rootB := filepath.Join(dir, "shared")
	writeFile(t, filepath.Join(rootA, "main.py"), "app")
	writeFile(t, filepath.Join(rootB, "util.py"), "util")

	desc := &model.ArtifactDescriptor{
		Name:        "dashboard",
		SourceRoots: []string{rootA, rootB},
	}

	before, err := Compute(desc)
	require.NoError(t, err)

	writeFile(t, filepath.Join(rootB, "util.py"), "util v2")
	after, err := Compute(desc)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

// TestExcluded 排除前缀匹配规则
func TestExcluded(t *testing.T) {
	prefixes := []string{"logs/", "data_warehouse"}

	assert.True(t, excluded("logs/run.log", prefixes))
	assert.True(t, excluded("logs", prefixes))
	assert.True(t, excluded("data_warehouse/spotify.duckdb", prefixes))
	assert.False(t, excluded("logsx/run.log", prefixes)) // 前缀必须在路径边界上
	assert.False(t, excluded("src/logs.py", prefixes))
	assert.False(t, excluded("main.py", nil))
}
