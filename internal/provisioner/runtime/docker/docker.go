// Package docker 实现 Docker 容器运行时
//
// 用于把发布后的镜像部署为本机容器实例
package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"

	"deploy-admin/internal/provisioner/runtime"
)

// Runtime Docker 容器运行时
type Runtime struct {
	client *client.Client
}

var _ runtime.Runtime = (*Runtime)(nil)

// New 创建 Docker 运行时
func New() (*Runtime, error) {
	cli, err := client.New(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Runtime{client: cli}, nil
}

// Name 返回运行时名称
func (r *Runtime) Name() string {
	return "docker"
}

// Close 关闭运行时
func (r *Runtime) Close() error {
	return r.client.Close()
}

// Ping 检查 Docker 连接
func (r *Runtime) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx, client.PingOptions{})
	return err
}

// Ensure 拉取镜像并以期望配置重建容器
func (r *Runtime) Ensure(ctx context.Context, target *runtime.TargetConfig) (string, error) {
	// latest 是浮动 Tag，必须每次拉取才能指向最新发布
	pullResp, err := r.client.ImagePull(ctx, target.Image, client.ImagePullOptions{})
	if err != nil {
		return "", fmt.Errorf("pull %s: %w", target.Image, err)
	}
	_, err = io.Copy(io.Discard, pullResp)
	pullResp.Close()
	if err != nil {
		return "", fmt.Errorf("pull %s: %w", target.Image, err)
	}

	// 同名旧容器先移除（重建语义）
	if err := r.Remove(ctx, target.Name); err != nil {
		return "", err
	}

	// 构建端口映射
	exposedPorts := make(network.PortSet)
	portBindings := make(network.PortMap)
	for hostPort, containerPort := range target.PortMap {
		port := network.MustParsePort(fmt.Sprintf("%d/tcp", containerPort))
		exposedPorts[port] = struct{}{}
		portBindings[port] = []network.PortBinding{
			{HostPort: fmt.Sprintf("%d", hostPort)},
		}
	}

	// 构建挂载配置
	var binds []string
	for _, m := range target.Mounts {
		bind := fmt.Sprintf("%s:%s", m.Source, m.Target)
		if m.ReadOnly {
			bind += ":ro"
		}
		binds = append(binds, bind)
	}

	// 构建环境变量
	var env []string
	for k, v := range target.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	result, err := r.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Name:  target.Name,
		Image: target.Image,
		Config: &container.Config{
			Env:          env,
			ExposedPorts: exposedPorts,
		},
		HostConfig: &container.HostConfig{
			Binds:        binds,
			PortBindings: portBindings,
			RestartPolicy: container.RestartPolicy{
				Name: container.RestartPolicyUnlessStopped,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", target.Name, err)
	}

	if _, err := r.client.ContainerStart(ctx, result.ID, client.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container %s: %w", target.Name, err)
	}
	return result.ID, nil
}

// Remove 移除目标容器（不存在时视为成功）
func (r *Runtime) Remove(ctx context.Context, name string) error {
	_, err := r.client.ContainerRemove(ctx, name, client.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: false,
	})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", name, err)
	}
	return nil
}

// Status 获取目标容器状态
func (r *Runtime) Status(ctx context.Context, name string) (*runtime.InstanceStatus, error) {
	result, err := r.client.ContainerInspect(ctx, name, client.ContainerInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return &runtime.InstanceStatus{
				State: runtime.StateUnknown,
				Error: "container not found",
			}, nil
		}
		return nil, err
	}

	state := runtime.StateUnknown
	switch string(result.Container.State.Status) {
	case "running", "restarting":
		state = runtime.StateRunning
	case "exited", "dead":
		state = runtime.StateExited
	}

	return &runtime.InstanceStatus{
		ID:       result.Container.ID,
		State:    state,
		ExitCode: result.Container.State.ExitCode,
		Error:    result.Container.State.Error,
	}, nil
}
