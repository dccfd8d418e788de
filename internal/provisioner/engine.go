// Package provisioner 实现单次 provisioning 过程的编排
//
// 一次 Run 是同步的 run-to-completion 过程：
//  1. 前置检查（部署目标引用的密文、registry 凭据）
//  2. 逐制品：计算指纹 → 比对触发记录 → 需要时构建发布 → 推进记录
//  3. 部署目标以浮动 latest Tag 重建容器实例
//  4. 汇总操作者输出（UI 地址、实例 ID）
//
// 任何错误都向上传播并中止本次运行；单个制品不存在部分成功：
// 要么其触发记录推进到新指纹，要么保持原样。
package provisioner

import (
	"context"
	"fmt"
	"os"
	"time"

	"deploy-admin/internal/builder"
	"deploy-admin/internal/config"
	"deploy-admin/internal/fingerprint"
	"deploy-admin/internal/model"
	"deploy-admin/internal/provisioner/runtime"
	"deploy-admin/internal/triggerstore"
	"deploy-admin/pkg/logging"
)

// Options 单次运行的选项
type Options struct {
	DryRun bool            // 只报告决策，不做任何变更
	Force  bool            // 指纹未变也强制发布
	Only   map[string]bool // 非空时仅处理这些制品
}

// Engine 编排一次 provisioning 过程
type Engine struct {
	cfg     *config.Config
	store   triggerstore.Store
	backend builder.Backend
	runtime runtime.Runtime // 部署未启用时可为 nil
	logger  *logging.Logger
	opts    Options
}

// NewEngine 创建编排引擎
func NewEngine(cfg *config.Config, store triggerstore.Store, backend builder.Backend,
	rt runtime.Runtime, logger *logging.Logger, opts Options) *Engine {
	if logger == nil {
		logger = logging.Default("provisioner")
	}
	return &Engine{
		cfg:     cfg,
		store:   store,
		backend: backend,
		runtime: rt,
		logger:  logger,
		opts:    opts,
	}
}

// ArtifactResult 单个制品的处理结果
type ArtifactResult struct {
	Name        string
	Fingerprint model.Fingerprint
	Published   bool   // 本次是否执行了发布
	ImageRef    string // 短指纹 Tag 的镜像引用
}

// Outputs 运行结束后暴露给操作者的信息
type Outputs struct {
	URLs      map[string]string // 目标名 -> 对外 URL（配置了 url_port 的目标）
	Instances map[string]string // 目标名 -> 实例 ID
}

// PassResult 一次运行的汇总
type PassResult struct {
	Artifacts []ArtifactResult
	Outputs   Outputs
}

// Run 执行一次 provisioning 过程
func (e *Engine) Run(ctx context.Context) (*PassResult, error) {
	e.logger.Info("starting provisioning pass",
		"registry", e.cfg.Registry.Host,
		"state_backend", e.cfg.State.Backend,
		"dry_run", e.opts.DryRun)

	// 前置检查：缺失的密文在任何构建尝试之前报错
	if !e.opts.DryRun {
		if missing := e.cfg.MissingSecrets(); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %v", builder.ErrCredentialMissing, missing)
		}
	}

	// 未知的制品名直接报错，而不是跳出一次空运行
	if len(e.opts.Only) > 0 {
		known := make(map[string]bool, len(e.cfg.Artifacts))
		for i := range e.cfg.Artifacts {
			known[e.cfg.Artifacts[i].Name] = true
		}
		for name := range e.opts.Only {
			if !known[name] {
				return nil, fmt.Errorf("unknown artifact: %s", name)
			}
		}
	}

	result := &PassResult{Outputs: Outputs{
		URLs:      make(map[string]string),
		Instances: make(map[string]string),
	}}

	for i := range e.cfg.Artifacts {
		art := &e.cfg.Artifacts[i]
		if len(e.opts.Only) > 0 && !e.opts.Only[art.Name] {
			continue
		}
		res, err := e.resolveArtifact(ctx, art)
		if err != nil {
			return nil, err
		}
		result.Artifacts = append(result.Artifacts, *res)
	}

	if e.cfg.Deploy.Enabled && !e.opts.DryRun {
		if err := e.deploy(ctx, &result.Outputs); err != nil {
			return nil, err
		}
	}

	e.logger.Info("provisioning pass complete", "artifacts", len(result.Artifacts))
	return result, nil
}

// resolveArtifact 处理单个制品：指纹 → 判定 → 发布 → 推进记录
func (e *Engine) resolveArtifact(ctx context.Context, art *config.ArtifactConfig) (*ArtifactResult, error) {
	logger := e.logger.WithArtifact(art.Name)

	start := time.Now()
	fp, err := fingerprint.Compute(art.Descriptor())
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", art.Name, err)
	}
	logger.WithDuration(time.Since(start)).Info("fingerprint computed", "fingerprint", fp.Short())

	publish, err := triggerstore.ShouldPublish(ctx, e.store, art.Name, fp)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", art.Name, err)
	}
	if e.opts.Force {
		publish = true
	}

	res := &ArtifactResult{
		Name:        art.Name,
		Fingerprint: fp,
		ImageRef:    e.imageRef(art.Name, fp.Short()),
	}

	if !publish {
		logger.Info("fingerprint unchanged, publish skipped")
		return res, nil
	}
	if e.opts.DryRun {
		logger.Info("[dry-run] would build and publish", "image", res.ImageRef)
		return res, nil
	}

	if err := e.publish(ctx, art, fp); err != nil {
		return nil, err
	}

	// 发布成功后才推进触发记录；失败路径记录保持原值，下次运行重试
	record := &model.TriggerRecord{
		Name:        art.Name,
		Fingerprint: fp,
		ImageRef:    res.ImageRef,
		PublishedAt: time.Now().UTC(),
	}
	if err := e.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("artifact %s: advance trigger record: %w", art.Name, err)
	}

	res.Published = true
	logger.Info("published", "image", res.ImageRef)
	return res, nil
}

// publish 在作用域化凭据目录下执行外部构建发布动作
func (e *Engine) publish(ctx context.Context, art *config.ArtifactConfig, fp model.Fingerprint) error {
	creds := &builder.Credentials{
		Registry: e.cfg.Registry.Host,
		Username: e.cfg.RegistryUsername,
		Password: e.cfg.RegistryPassword,
	}
	return builder.WithCredentialDir(creds, func(dir string) error {
		_, err := e.backend.BuildAndPush(ctx, &builder.Request{
			ContextDir: art.ContextDir,
			Dockerfile: art.Dockerfile,
			Tags: []string{
				e.imageRef(art.Name, fp.Short()),
				e.imageRef(art.Name, "latest"),
			},
			CredDir: dir,
			Logs:    os.Stdout,
		})
		if err != nil {
			return fmt.Errorf("artifact %s: %w", art.Name, err)
		}
		return nil
	})
}

// deploy 让每个部署目标以最新发布的镜像运行
func (e *Engine) deploy(ctx context.Context, outputs *Outputs) error {
	if e.runtime == nil {
		return fmt.Errorf("deploy enabled but no container runtime configured")
	}

	for _, t := range e.cfg.Deploy.Targets {
		env := make(map[string]string, len(t.Env)+len(t.Secrets))
		for k, v := range t.Env {
			env[k] = v
		}
		// 密文注入容器环境，但不出现在日志里
		for _, key := range t.Secrets {
			env[key] = e.cfg.Secrets[key]
		}

		target := &runtime.TargetConfig{
			Name:    t.Name,
			Image:   e.imageRef(t.Artifact, "latest"),
			PortMap: t.Ports,
			Env:     env,
			Mounts: []runtime.Mount{{
				Source: e.cfg.Deploy.DataVolume,
				Target: e.cfg.Deploy.MountPath,
			}},
		}

		e.logger.Info("deploying target", "target", t.Name, "image", target.Image)
		id, err := e.runtime.Ensure(ctx, target)
		if err != nil {
			return fmt.Errorf("deploy target %s: %w", t.Name, err)
		}
		outputs.Instances[t.Name] = id

		if t.URLPort > 0 {
			outputs.URLs[t.Name] = fmt.Sprintf("http://localhost:%d", t.URLPort)
		}
	}
	return nil
}

// imageRef 组装镜像引用
func (e *Engine) imageRef(name, tag string) string {
	return model.ImageRef(e.cfg.Registry.Host, e.cfg.Registry.Namespace, name, tag)
}
