// Package fingerprint 计算制品源码树的确定性内容指纹
//
// 指纹决定镜像是否需要重建：内容未变则指纹不变，发布步骤被跳过。
// 计算规则：
//  1. 递归枚举每个 source root 下的全部文件，跳过匹配排除前缀的路径
//     （前缀相对于 source root 书写，带 root 的写法同样生效）
//  2. 逐个追加显式引用的文件（不做排除过滤）
//  3. 按归一化路径字典序排序，保证与文件系统枚举顺序无关
//  4. 逐文件计算内容 SHA-256，连同路径头按序写入最终摘要
//
// 路径参与最终摘要，所以新增、删除、重命名文件都会改变指纹。
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deploy-admin/internal/model"
)

// ErrSourceUnavailable 指纹输入缺失
//
// source root 或显式引用文件不存在时必须失败，不能静默跳过：
// 否则缺失的文件会算出一个不反映真实内容的指纹，导致过期镜像被永久复用。
var ErrSourceUnavailable = errors.New("fingerprint source unavailable")

// selectedFile 参与指纹计算的单个文件
type selectedFile struct {
	// key 归一化后的排序与摘要路径：source root 内的文件为
	// "<root>/<relpath>"，显式引用文件为其配置路径本身，统一为斜杠分隔
	key string
	// abs 读取内容用的文件系统路径
	abs string
}

// Compute 计算制品描述对应的内容指纹
//
// 纯函数：只读文件系统，无副作用。对相同的文件集合与内容，
// 任何平台、任何枚举顺序下结果一致。
func Compute(desc *model.ArtifactDescriptor) (model.Fingerprint, error) {
	if err := desc.Validate(); err != nil {
		return "", err
	}

	files, err := selectFiles(desc)
	if err != nil {
		return "", err
	}

	// 按归一化路径排序，排除文件系统枚举顺序的影响
	sort.Slice(files, func(i, j int) bool { return files[i].key < files[j].key })

	final := sha256.New()
	for _, f := range files {
		digest, err := fileDigest(f.abs)
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", f.abs, err)
		}
		// 路径头 + 内容摘要：重命名文件（内容不变）也会改变指纹
		fmt.Fprintf(final, "%s\x00%s\n", f.key, digest)
	}

	return model.Fingerprint(hex.EncodeToString(final.Sum(nil))), nil
}

// selectFiles 枚举参与指纹计算的文件集合
func selectFiles(desc *model.ArtifactDescriptor) ([]selectedFile, error) {
	var files []selectedFile

	for _, root := range desc.SourceRoots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("%w: source root %s: %v", ErrSourceUnavailable, root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: source root %s is not a directory", ErrSourceUnavailable, root)
		}

		rootKey := filepath.ToSlash(filepath.Clean(root))
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			rel = filepath.ToSlash(rel)

			// 排除前缀既匹配 root 内的相对路径，也匹配带 root 的写法
			if excluded(rel, desc.ExcludePrefixes) || excluded(rootKey+"/"+rel, desc.ExcludePrefixes) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() {
				// 套接字、设备文件等无法稳定哈希，符号链接跟随会破坏
				// 跨机器的确定性，一律不参与
				return nil
			}

			files = append(files, selectedFile{
				key: rootKey + "/" + rel,
				abs: path,
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	for _, extra := range desc.ExtraFiles {
		info, err := os.Stat(extra)
		if err != nil {
			return nil, fmt.Errorf("%w: extra file %s: %v", ErrSourceUnavailable, extra, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: extra file %s is a directory", ErrSourceUnavailable, extra)
		}
		files = append(files, selectedFile{
			key: filepath.ToSlash(filepath.Clean(extra)),
			abs: extra,
		})
	}

	return files, nil
}

// excluded 判断相对路径是否匹配任一排除前缀
func excluded(rel string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(filepath.ToSlash(p), "/")
		if p == "" {
			continue
		}
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}

// fileDigest 计算单个文件内容的 SHA-256
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
