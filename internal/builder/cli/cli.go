// Package cli shell-out 构建发布后端
//
// 调用本机的 docker 或 podman CLI 完成 build + push。
// DOCKER_CONFIG 指向作用域化的凭据目录，CLI 使用其中的
// config.json 登录信息；退出码非零时带进 PublishError。
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"deploy-admin/internal/builder"
)

// Backend CLI 后端
type Backend struct {
	// command 构建工具可执行文件（docker / podman）
	command string
}

var _ builder.Backend = (*Backend)(nil)

// New 创建 CLI 后端；command 为空时默认 docker
func New(command string) (*Backend, error) {
	if command == "" {
		command = "docker"
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("build tool %s not found in PATH: %w", command, err)
	}
	return &Backend{command: command}, nil
}

// Name 返回后端名称
func (b *Backend) Name() string {
	return "cli"
}

// BuildAndPush 构建镜像并推送全部 Tag
func (b *Backend) BuildAndPush(ctx context.Context, req *builder.Request) (*builder.Result, error) {
	logs := req.Logs
	if logs == nil {
		logs = io.Discard
	}

	args := []string{"build", "--file", req.Dockerfile}
	for _, tag := range req.Tags {
		args = append(args, "--tag", tag)
	}
	for k, v := range req.BuildArgs {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, req.ContextDir)

	if err := b.run(ctx, req.CredDir, logs, args...); err != nil {
		return nil, err
	}
	for _, tag := range req.Tags {
		if err := b.run(ctx, req.CredDir, logs, "push", tag); err != nil {
			return nil, err
		}
	}

	return &builder.Result{ImageRef: req.Tags[0]}, nil
}

// run 执行一条构建工具命令，环境中仅注入作用域化的 DOCKER_CONFIG
func (b *Backend) run(ctx context.Context, credDir string, logs io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, b.command, args...)
	cmd.Stdout = logs
	cmd.Stderr = logs
	cmd.Env = os.Environ()
	if credDir != "" {
		cmd.Env = append(cmd.Env, "DOCKER_CONFIG="+credDir)
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &builder.PublishError{
				Backend:  b.Name(),
				ExitCode: exitErr.ExitCode(),
				Err:      fmt.Errorf("%s %s: %w", b.command, args[0], err),
			}
		}
		return &builder.PublishError{Backend: b.Name(), ExitCode: -1, Err: err}
	}
	return nil
}
