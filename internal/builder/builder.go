// Package builder 定义镜像构建发布的后端抽象
//
// 后端职责：给定构建上下文目录、Dockerfile 路径和 Tag 列表，
// 构建镜像并推送到 registry。两个实现：
//   - docker/：走 Docker Engine API
//   - cli/：shell-out 到 docker/podman CLI
//
// 构建是长时间阻塞操作（分钟级），registry 凭据通过临时凭据目录
// 作用域化传入，任何退出路径（成功或失败）都会释放，避免在运行
// 之间泄漏本机构建工具状态。
package builder

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrPublishFailed 外部构建/发布动作失败
//
// 对本次运行致命；触发记录未推进，下次运行以相同指纹自然重试。
var ErrPublishFailed = errors.New("publish failed")

// ErrCredentialMissing 必需的 registry 凭据缺失（在任何构建尝试之前检查）
var ErrCredentialMissing = errors.New("registry credential missing")

// PublishError 发布失败详情
type PublishError struct {
	Backend  string // 后端名称
	ExitCode int    // CLI 后端的退出码；API 后端为 -1
	Err      error
}

func (e *PublishError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("publish failed (backend %s, exit %d): %v", e.Backend, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("publish failed (backend %s): %v", e.Backend, e.Err)
}

func (e *PublishError) Unwrap() error { return ErrPublishFailed }

// Request 一次构建发布请求
type Request struct {
	ContextDir string            // 构建上下文目录
	Dockerfile string            // Dockerfile 路径（相对于上下文）
	Tags       []string          // 完整镜像引用列表（短指纹 Tag + latest）
	BuildArgs  map[string]string // 构建参数
	CredDir    string            // 作用域化的凭据目录（DOCKER_CONFIG 布局）
	Logs       io.Writer         // 构建日志输出；nil 表示丢弃
}

// Result 构建发布结果
type Result struct {
	ImageRef string // 主引用（短指纹 Tag）
}

// Backend 构建发布后端
type Backend interface {
	// Name 后端名称（docker / cli）
	Name() string

	// BuildAndPush 构建镜像并推送全部 Tag；失败返回 *PublishError
	BuildAndPush(ctx context.Context, req *Request) (*Result, error)
}

// Credentials registry 登录凭据
type Credentials struct {
	Registry string
	Username string
	Password string
}

// Validate 检查凭据完整性
func (c *Credentials) Validate() error {
	if c.Registry == "" {
		return fmt.Errorf("%w: registry host", ErrCredentialMissing)
	}
	if c.Username == "" {
		return fmt.Errorf("%w: username for %s", ErrCredentialMissing, c.Registry)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password for %s", ErrCredentialMissing, c.Registry)
	}
	return nil
}

// AuthHeader 构建 Docker Engine API 的 X-Registry-Auth 头
func (c *Credentials) AuthHeader() (string, error) {
	payload, err := json.Marshal(map[string]string{
		"username":      c.Username,
		"password":      c.Password,
		"serveraddress": c.Registry,
	})
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(payload), nil
}

// dockerConfig DOCKER_CONFIG 目录中 config.json 的格式
type dockerConfig struct {
	Auths map[string]dockerAuth `json:"auths"`
}

type dockerAuth struct {
	Auth string `json:"auth"`
}

// CredentialsFromDir 从作用域化凭据目录还原登录凭据
//
// API 后端用它从 WithCredentialDir 写入的 config.json 取回凭据，
// 保证两个后端消费同一份作用域化的登录材料。
func CredentialsFromDir(dir string) (*Credentials, error) {
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: read credential dir: %v", ErrCredentialMissing, err)
	}

	var cfg dockerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse credential config: %w", err)
	}
	for registry, entry := range cfg.Auths {
		raw, err := base64.StdEncoding.DecodeString(entry.Auth)
		if err != nil {
			return nil, fmt.Errorf("decode auth for %s: %w", registry, err)
		}
		username, password, ok := strings.Cut(string(raw), ":")
		if !ok {
			return nil, fmt.Errorf("malformed auth entry for %s", registry)
		}
		return &Credentials{Registry: registry, Username: username, Password: password}, nil
	}
	return nil, fmt.Errorf("%w: no auth entry in credential dir", ErrCredentialMissing)
}

// WithCredentialDir 在作用域化的临时凭据目录下执行 fn
//
// 目录按 DOCKER_CONFIG 布局写入 config.json，fn 返回后无条件删除，
// 包括 panic 路径。凭据只落在临时目录，不进入持久状态。
func WithCredentialDir(creds *Credentials, fn func(dir string) error) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "deploy-admin-creds-*")
	if err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	defer os.RemoveAll(dir)

	auth := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
	cfg := dockerConfig{Auths: map[string]dockerAuth{
		creds.Registry: {Auth: auth},
	}}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dir+"/config.json", data, 0600); err != nil {
		return fmt.Errorf("write credential config: %w", err)
	}

	return fn(dir)
}
