// Package docker Docker Engine API 构建发布后端
//
// 通过 moby client 完成镜像构建与推送：上下文目录打成 tar 流，
// ImageBuild 一次带上全部 Tag，逐 Tag ImagePush。
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/moby/moby/client"

	"deploy-admin/internal/builder"
)

// Backend Docker Engine API 后端
type Backend struct {
	client *client.Client
}

var _ builder.Backend = (*Backend)(nil)

// New 创建 Docker API 后端
func New() (*Backend, error) {
	cli, err := client.New(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Backend{client: cli}, nil
}

// Name 返回后端名称
func (b *Backend) Name() string {
	return "docker"
}

// Close 关闭客户端连接
func (b *Backend) Close() error {
	return b.client.Close()
}

// Ping 检查 Docker 连接
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.client.Ping(ctx, client.PingOptions{})
	return err
}

// BuildAndPush 构建镜像并推送全部 Tag
func (b *Backend) BuildAndPush(ctx context.Context, req *builder.Request) (*builder.Result, error) {
	logs := req.Logs
	if logs == nil {
		logs = io.Discard
	}

	buildCtx, err := tarContext(req.ContextDir)
	if err != nil {
		return nil, &builder.PublishError{Backend: b.Name(), ExitCode: -1, Err: err}
	}
	defer buildCtx.Close()

	resp, err := b.client.ImageBuild(ctx, buildCtx, client.ImageBuildOptions{
		Tags:        req.Tags,
		Dockerfile:  req.Dockerfile,
		BuildArgs:   buildArgs(req.BuildArgs),
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return nil, &builder.PublishError{Backend: b.Name(), ExitCode: -1, Err: fmt.Errorf("image build: %w", err)}
	}
	defer resp.Body.Close()

	if err := streamBuildLog(resp.Body, logs); err != nil {
		return nil, &builder.PublishError{Backend: b.Name(), ExitCode: -1, Err: err}
	}

	// 推送凭据取自作用域化凭据目录，与 CLI 后端共用同一份登录材料
	creds, err := builder.CredentialsFromDir(req.CredDir)
	if err != nil {
		return nil, &builder.PublishError{Backend: b.Name(), ExitCode: -1, Err: err}
	}
	auth, err := creds.AuthHeader()
	if err != nil {
		return nil, &builder.PublishError{Backend: b.Name(), ExitCode: -1, Err: err}
	}
	for _, tag := range req.Tags {
		pushResp, err := b.client.ImagePush(ctx, tag, client.ImagePushOptions{
			RegistryAuth: auth,
		})
		if err != nil {
			return nil, &builder.PublishError{Backend: b.Name(), ExitCode: -1, Err: fmt.Errorf("push %s: %w", tag, err)}
		}
		err = streamBuildLog(pushResp, logs)
		pushResp.Close()
		if err != nil {
			return nil, &builder.PublishError{Backend: b.Name(), ExitCode: -1, Err: fmt.Errorf("push %s: %w", tag, err)}
		}
	}

	return &builder.Result{ImageRef: req.Tags[0]}, nil
}

// buildArgs 转换为 Engine API 期望的指针 Map
func buildArgs(args map[string]string) map[string]*string {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]*string, len(args))
	for k, v := range args {
		v := v
		out[k] = &v
	}
	return out
}

// buildMessage Engine 构建/推送日志流的单条消息
type buildMessage struct {
	Stream string `json:"stream"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// streamBuildLog 解码 JSON 消息流并转写日志；daemon 上报的错误转为失败
func streamBuildLog(r io.Reader, logs io.Writer) error {
	dec := json.NewDecoder(r)
	for {
		var msg buildMessage
		if err := dec.Decode(&msg); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("decode build output: %w", err)
		}
		if msg.Error != "" {
			return fmt.Errorf("daemon reported: %s", msg.Error)
		}
		if msg.Stream != "" {
			io.WriteString(logs, msg.Stream)
		} else if msg.Status != "" {
			fmt.Fprintln(logs, msg.Status)
		}
	}
}
