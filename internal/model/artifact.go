// Package model 定义核心数据模型
//
// artifact.go 包含可部署制品相关的数据模型定义：
//   - ArtifactDescriptor：制品描述（指纹计算的输入）
//   - Fingerprint：源码内容指纹
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ============================================================================
// ArtifactDescriptor - 制品描述
// ============================================================================

// ArtifactDescriptor 描述一个可部署的容器镜像制品
//
// 指纹计算的文件选择规则：
//   - SourceRoots 下的所有文件递归参与（受 ExcludePrefixes 过滤）
//   - ExtraFiles 逐个显式参与（不受排除规则过滤）
//
// 字段说明：
//   - Name：制品名称，同时作为 Trigger 记录的 Key 和镜像仓库名的组成部分
//   - SourceRoots：参与指纹计算的源码目录（有序）
//   - ExtraFiles：单独引用的文件，如 Dockerfile、依赖清单（有序）
//   - ExcludePrefixes：枚举源码目录时跳过的相对路径前缀（如 logs/）
type ArtifactDescriptor struct {
	Name            string   `json:"name" yaml:"name"`
	SourceRoots     []string `json:"source_roots" yaml:"source_roots"`
	ExtraFiles      []string `json:"extra_files,omitempty" yaml:"extra_files"`
	ExcludePrefixes []string `json:"exclude_prefixes,omitempty" yaml:"exclude_prefixes"`
}

// namePattern 制品名称约束：小写字母数字和连字符
// 名称直接用于镜像仓库路径和存储 Key，必须保持两边都合法
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Validate 验证制品描述的合法性
func (d *ArtifactDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("artifact name is required")
	}
	if !namePattern.MatchString(d.Name) {
		return fmt.Errorf("artifact name %q is invalid: must match %s", d.Name, namePattern)
	}
	if len(d.SourceRoots) == 0 && len(d.ExtraFiles) == 0 {
		return fmt.Errorf("artifact %s: at least one source root or extra file is required", d.Name)
	}
	for _, p := range d.SourceRoots {
		if p == "" {
			return fmt.Errorf("artifact %s: empty source root", d.Name)
		}
	}
	for _, p := range d.ExtraFiles {
		if p == "" {
			return fmt.Errorf("artifact %s: empty extra file", d.Name)
		}
	}
	return nil
}

// ============================================================================
// Fingerprint - 源码内容指纹
// ============================================================================

// ShortFingerprintLen 镜像 Tag 使用的指纹前缀长度（十六进制字符数）
const ShortFingerprintLen = 12

// Fingerprint 源码内容的确定性摘要（完整十六进制 SHA-256）
//
// 相等性比较使用完整摘要；镜像 Tag 使用 Short() 前缀。
// 相同的文件集合与文件内容总是产生相同的指纹，与文件系统枚举顺序无关。
type Fingerprint string

// Short 返回用于镜像 Tag 的指纹前缀
func (f Fingerprint) Short() string {
	s := string(f)
	if len(s) <= ShortFingerprintLen {
		return s
	}
	return s[:ShortFingerprintLen]
}

// Equal 比较完整摘要
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f == other
}

// IsZero 是否为空指纹
func (f Fingerprint) IsZero() bool {
	return f == ""
}

// String 实现 fmt.Stringer
func (f Fingerprint) String() string {
	return string(f)
}

// ImageRef 构建完整镜像引用，如 registry.example.com/spotify/dashboard:3f2a91c04d1e
func ImageRef(registry, namespace, name, tag string) string {
	parts := []string{registry}
	if namespace != "" {
		parts = append(parts, namespace)
	}
	parts = append(parts, name)
	return strings.Join(parts, "/") + ":" + tag
}
