// Package runtime 定义部署目标的容器运行时抽象
//
// provisioning 过程的最后一步：让每个部署目标以最新发布的镜像
// （浮动 latest Tag）运行，挂载共享数据卷并注入环境变量。
package runtime

import "context"

// Mount 数据卷挂载
type Mount struct {
	Source   string // 宿主路径或卷名
	Target   string // 容器内固定路径（如 /mnt/data）
	ReadOnly bool
}

// TargetConfig 一个部署目标的期望状态
type TargetConfig struct {
	Name    string            // 容器名（稳定，重建时复用）
	Image   string            // 镜像引用（浮动 latest Tag）
	PortMap map[int]int       // 宿主端口 -> 容器端口
	Mounts  []Mount           // 数据卷挂载
	Env     map[string]string // 注入的环境变量（普通配置 + 密文配置）
}

// InstanceState 实例状态
type InstanceState string

const (
	StateRunning InstanceState = "running"
	StateExited  InstanceState = "exited"
	StateUnknown InstanceState = "unknown"
)

// InstanceStatus 实例状态详情
type InstanceStatus struct {
	ID       string
	State    InstanceState
	ExitCode int
	Error    string
}

// Runtime 容器运行时
type Runtime interface {
	// Name 运行时名称
	Name() string

	// Ensure 拉取目标镜像并以期望配置重建容器，返回实例 ID
	// 同名旧容器先移除；latest 是浮动 Tag，每次都重新拉取
	Ensure(ctx context.Context, target *TargetConfig) (string, error)

	// Remove 移除目标容器
	Remove(ctx context.Context, name string) error

	// Status 查询目标容器状态
	Status(ctx context.Context, name string) (*InstanceStatus, error)

	// Close 释放连接
	Close() error
}
