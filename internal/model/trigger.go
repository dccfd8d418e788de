// Package model 定义核心数据模型
//
// trigger.go 包含构建触发记录的数据模型：
//   - TriggerRecord：制品最近一次成功发布所使用的指纹
package model

import "time"

// TriggerRecord 记录制品最近一次成功发布的指纹
//
// 生命周期：
//   - 首次成功发布时创建
//   - 每次 provisioning 过程中与新计算的指纹比较
//   - 仅在新的发布成功后推进到新指纹；发布失败时保持原值，
//     下次运行自然重试
//
// 记录由 provisioning 状态存储持有，发布出去的镜像本身不会修改它。
type TriggerRecord struct {
	Name        string      `json:"name" db:"name"`                 // 制品名称（主键）
	Fingerprint Fingerprint `json:"fingerprint" db:"fingerprint"`   // 最近发布的完整指纹
	ImageRef    string      `json:"image_ref,omitempty" db:"image_ref"` // 发布的镜像引用（带短指纹 Tag）
	PublishedAt time.Time   `json:"published_at" db:"published_at"` // 发布时间
}

// Matches 判断记录中的指纹是否与新计算的指纹一致
func (r *TriggerRecord) Matches(fp Fingerprint) bool {
	return r != nil && r.Fingerprint.Equal(fp)
}
