package provisioner

import (
	"context"
	"fmt"
	"os"

	"deploy-admin/internal/builder"
	buildercli "deploy-admin/internal/builder/cli"
	builderdocker "deploy-admin/internal/builder/docker"
	"deploy-admin/internal/config"
	"deploy-admin/internal/provisioner/runtime"
	runtimedocker "deploy-admin/internal/provisioner/runtime/docker"
	"deploy-admin/internal/triggerstore"
	filestore "deploy-admin/internal/triggerstore/file"
	miniostore "deploy-admin/internal/triggerstore/minio"
	pgstore "deploy-admin/internal/triggerstore/postgres"
	redisstore "deploy-admin/internal/triggerstore/redis"
	sqlitestore "deploy-admin/internal/triggerstore/sqlite"
)

// OpenStore 根据配置创建触发记录存储
// 数据库类后端的密码只从环境变量读取，不进入配置文件
func OpenStore(ctx context.Context, cfg *config.Config) (triggerstore.Store, error) {
	switch cfg.State.Backend {
	case "file":
		return filestore.New(cfg.State.File)
	case "sqlite":
		return sqlitestore.Open(cfg.State.SQLite)
	case "postgres":
		return pgstore.Open(cfg.DatabaseURL(os.Getenv("POSTGRES_PASSWORD")))
	case "redis":
		return redisstore.New(cfg.RedisAddr(), os.Getenv("REDIS_PASSWORD"), cfg.State.Redis.DB)
	case "minio":
		return miniostore.New(ctx, miniostore.Config{
			Endpoint:  cfg.State.MinIO.Endpoint,
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    cfg.State.MinIO.Bucket,
			UseSSL:    cfg.State.MinIO.UseSSL,
		})
	case "memory":
		return triggerstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", cfg.State.Backend)
	}
}

// OpenBackend 根据配置创建构建发布后端
// override 非空时覆盖配置中的后端选择（命令行 --backend）
func OpenBackend(cfg *config.Config, override string) (builder.Backend, error) {
	name := cfg.Registry.Backend
	if override != "" {
		name = override
	}
	switch name {
	case "docker", "":
		return builderdocker.New()
	case "cli":
		return buildercli.New(cfg.Registry.Tool)
	default:
		return nil, fmt.Errorf("unsupported build backend: %s", name)
	}
}

// OpenRuntime 创建容器运行时；部署未启用时返回 nil
func OpenRuntime(cfg *config.Config) (runtime.Runtime, error) {
	if !cfg.Deploy.Enabled {
		return nil, nil
	}
	return runtimedocker.New()
}
