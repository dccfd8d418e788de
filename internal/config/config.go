// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（registry 密码、Spotify API 凭据）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 敏感信息只从环境变量读取，不写入 YAML，不出现在日志和状态存储中。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"deploy-admin/internal/model"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Registry  RegistryConfig   `yaml:"registry"`
	State     StateConfig      `yaml:"state"`
	Artifacts []ArtifactConfig `yaml:"artifacts"`
	Deploy    DeployConfig     `yaml:"deploy"`
	Log       LogConfig        `yaml:"log"`
}

// RegistryConfig 镜像仓库配置
type RegistryConfig struct {
	Host      string `yaml:"host"`
	Namespace string `yaml:"namespace"`
	Backend   string `yaml:"backend"` // docker（Engine API）或 cli（shell-out）
	Tool      string `yaml:"tool"`    // cli 后端使用的命令（docker / podman）
}

// StateConfig 触发记录存储配置
type StateConfig struct {
	Backend  string         `yaml:"backend"` // file / sqlite / postgres / redis / minio
	File     string         `yaml:"file"`
	SQLite   string         `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	MinIO    MinIOConfig    `yaml:"minio"`
}

type PostgresConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`
}

type MinIOConfig struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	UseSSL   bool   `yaml:"use_ssl"`
}

// ArtifactConfig 制品配置（指纹描述 + 构建上下文）
type ArtifactConfig struct {
	Name            string   `yaml:"name"`
	SourceRoots     []string `yaml:"source_roots"`
	ExtraFiles      []string `yaml:"extra_files"`
	ExcludePrefixes []string `yaml:"exclude_prefixes"`
	ContextDir      string   `yaml:"context_dir"`
	Dockerfile      string   `yaml:"dockerfile"`
}

// Descriptor 转换为指纹计算用的制品描述
func (a *ArtifactConfig) Descriptor() *model.ArtifactDescriptor {
	return &model.ArtifactDescriptor{
		Name:            a.Name,
		SourceRoots:     a.SourceRoots,
		ExtraFiles:      a.ExtraFiles,
		ExcludePrefixes: a.ExcludePrefixes,
	}
}

// DeployConfig 部署目标配置
type DeployConfig struct {
	Enabled    bool           `yaml:"enabled"`
	DataVolume string         `yaml:"data_volume"` // 共享数据卷（宿主路径或卷名）
	MountPath  string         `yaml:"mount_path"`  // 容器内固定挂载路径
	Targets    []TargetConfig `yaml:"targets"`
}

// TargetConfig 单个部署目标
type TargetConfig struct {
	Name     string            `yaml:"name"`     // 容器名
	Artifact string            `yaml:"artifact"` // 引用的制品名称
	Ports    map[int]int       `yaml:"ports"`    // 宿主端口 -> 容器端口
	Env      map[string]string `yaml:"env"`      // 普通配置环境变量
	Secrets  []string          `yaml:"secrets"`  // 需要注入的密文环境变量名
	URLPort  int               `yaml:"url_port"` // 对外 URL 使用的宿主端口
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env       Environment
	Registry  RegistryConfig
	State     StateConfig
	Artifacts []ArtifactConfig
	Deploy    DeployConfig
	Log       LogConfig

	// 敏感信息（仅从环境变量读取）
	RegistryUsername string
	RegistryPassword string
	Secrets          map[string]string // 部署目标可引用的密文环境变量
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// secretEnvKeys 可注入部署目标的密文环境变量名
var secretEnvKeys = []string{
	"SPOTIPY_CLIENT_ID",
	"SPOTIPY_CLIENT_SECRET",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
// configDirs 非空时优先于默认搜索路径
func Load(configDirs ...string) (*Config, error) {
	// 加载 .env
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// 解析环境
	env := parseEnv(getEnv("APP_ENV", "dev"))

	// 加载 YAML 配置
	yamlCfg, err := loadYAMLConfig(env, configDirs)
	if err != nil {
		return nil, err
	}

	// 从环境变量获取敏感信息
	secrets := make(map[string]string)
	for _, key := range secretEnvKeys {
		if v := os.Getenv(key); v != "" {
			secrets[key] = v
		}
	}

	cfg := &Config{
		Env:              env,
		Registry:         yamlCfg.Registry,
		State:            yamlCfg.State,
		Artifacts:        yamlCfg.Artifacts,
		Deploy:           yamlCfg.Deploy,
		Log:              yamlCfg.Log,
		RegistryUsername: os.Getenv("REGISTRY_USERNAME"),
		RegistryPassword: os.Getenv("REGISTRY_PASSWORD"),
		Secrets:          secrets,
	}

	// 环境变量覆盖 YAML
	if host := os.Getenv("REGISTRY_HOST"); host != "" {
		cfg.Registry.Host = host
	}
	if backend := os.Getenv("STATE_BACKEND"); backend != "" {
		cfg.State.Backend = backend
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：common.yaml → {env}.yaml（环境特定配置覆盖公共配置）
func loadYAMLConfig(env Environment, extraDirs []string) (*YAMLConfig, error) {
	cfg := &YAMLConfig{}

	paths := make([]string, 0, len(extraDirs)+len(configPaths))
	for _, d := range extraDirs {
		if d != "" {
			paths = append(paths, d)
		}
	}
	paths = append(paths, configPaths...)

	for _, base := range paths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			break
		}
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range paths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			break
		}
	}

	return cfg, nil
}

// applyDefaults 填充默认值
func (c *Config) applyDefaults() {
	if c.Registry.Backend == "" {
		c.Registry.Backend = "docker"
	}
	if c.Registry.Tool == "" {
		c.Registry.Tool = "docker"
	}
	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.File == "" {
		c.State.File = "state/triggers.json"
	}
	if c.State.Postgres.SSLMode == "" {
		c.State.Postgres.SSLMode = "disable"
	}
	if c.Deploy.MountPath == "" {
		c.Deploy.MountPath = "/mnt/data"
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.Artifacts) == 0 {
		return fmt.Errorf("no artifacts configured")
	}
	names := make(map[string]bool, len(c.Artifacts))
	for i := range c.Artifacts {
		a := &c.Artifacts[i]
		if err := a.Descriptor().Validate(); err != nil {
			return err
		}
		if names[a.Name] {
			return fmt.Errorf("duplicate artifact name %s", a.Name)
		}
		names[a.Name] = true
		if a.ContextDir == "" {
			return fmt.Errorf("artifact %s: context_dir is required", a.Name)
		}
		if a.Dockerfile == "" {
			return fmt.Errorf("artifact %s: dockerfile is required", a.Name)
		}
	}
	for _, t := range c.Deploy.Targets {
		if !names[t.Artifact] {
			return fmt.Errorf("deploy target %s references unknown artifact %s", t.Name, t.Artifact)
		}
	}
	return nil
}

// MissingSecrets 返回部署目标引用但环境中缺失的密文变量名
// 部署未启用时密文不会被消费，返回空
func (c *Config) MissingSecrets() []string {
	if !c.Deploy.Enabled {
		return nil
	}
	var missing []string
	seen := make(map[string]bool)
	for _, t := range c.Deploy.Targets {
		for _, key := range t.Secrets {
			if c.Secrets[key] == "" && !seen[key] {
				missing = append(missing, key)
				seen[key] = true
			}
		}
	}
	return missing
}

// DatabaseURL 构建 PostgreSQL 连接字符串
func (c *Config) DatabaseURL(password string) string {
	pg := c.State.Postgres
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pg.User, password, pg.Host, pg.Port, pg.Name, pg.SSLMode)
}

// RedisAddr Redis 地址
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.State.Redis.Host, c.State.Redis.Port)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（不含任何敏感信息）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Registry: %s, State: %s, Artifacts: %d, Secrets: %d set}",
		c.Env, c.Registry.Host, c.State.Backend, len(c.Artifacts), len(c.Secrets))
}
