// Package config 配置加载测试
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir 切换工作目录（测试结束后还原）
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

// writeConfig 在临时目录写入 configs/{name}.yaml
func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", name), []byte(content), 0644))
}

const baseYAML = `
registry:
  host: localhost:5000
  namespace: spotify
artifacts:
  - name: dashboard
    source_roots: [dashboard]
    extra_files: [dashboard/Dockerfile]
    exclude_prefixes: [logs/]
    context_dir: dashboard
    dockerfile: Dockerfile
`

// TestLoad_Defaults YAML 缺省字段由默认值填充
func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "common.yaml", baseYAML)
	chdir(t, dir)
	t.Setenv("APP_ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "docker", cfg.Registry.Backend)
	assert.Equal(t, "file", cfg.State.Backend)
	assert.Equal(t, "state/triggers.json", cfg.State.File)
	assert.Equal(t, "/mnt/data", cfg.Deploy.MountPath)
	require.Len(t, cfg.Artifacts, 1)
	assert.Equal(t, "dashboard", cfg.Artifacts[0].Name)
}

// TestLoad_EnvOverride 环境变量覆盖 YAML 配置
func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "common.yaml", baseYAML)
	chdir(t, dir)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("REGISTRY_HOST", "registry.example.com")
	t.Setenv("STATE_BACKEND", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, "registry.example.com", cfg.Registry.Host)
	assert.Equal(t, "sqlite", cfg.State.Backend)
}

// TestLoad_EnvSpecificOverridesCommon {env}.yaml 覆盖 common.yaml
func TestLoad_EnvSpecificOverridesCommon(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "common.yaml", baseYAML)
	writeConfig(t, dir, "test.yaml", "registry:\n  host: test-registry:5000\n")
	chdir(t, dir)
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsTest())
	assert.Equal(t, "test-registry:5000", cfg.Registry.Host)
}

// TestLoad_SecretsFromEnv 密文只从环境变量读取且不进入摘要
func TestLoad_SecretsFromEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "common.yaml", baseYAML)
	chdir(t, dir)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("REGISTRY_USERNAME", "ci")
	t.Setenv("REGISTRY_PASSWORD", "s3cret-token")
	t.Setenv("SPOTIPY_CLIENT_ID", "client-id-value")
	t.Setenv("SPOTIPY_CLIENT_SECRET", "client-secret-value")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ci", cfg.RegistryUsername)
	assert.Equal(t, "s3cret-token", cfg.RegistryPassword)
	assert.Equal(t, "client-id-value", cfg.Secrets["SPOTIPY_CLIENT_ID"])

	// 摘要不包含任何敏感值
	summary := cfg.String()
	assert.NotContains(t, summary, "s3cret-token")
	assert.NotContains(t, summary, "client-id-value")
	assert.NotContains(t, summary, "client-secret-value")
}

// TestConfig_Validate 配置合法性检查
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Artifacts: []ArtifactConfig{{
				Name:        "dashboard",
				SourceRoots: []string{"dashboard"},
				ContextDir:  "dashboard",
				Dockerfile:  "Dockerfile",
			}},
		}
	}

	require.NoError(t, valid().Validate())

	// 无制品
	assert.Error(t, (&Config{}).Validate())

	// 重名制品
	cfg := valid()
	cfg.Artifacts = append(cfg.Artifacts, cfg.Artifacts[0])
	assert.Error(t, cfg.Validate())

	// 缺 context_dir
	cfg = valid()
	cfg.Artifacts[0].ContextDir = ""
	assert.Error(t, cfg.Validate())

	// 部署目标引用未知制品
	cfg = valid()
	cfg.Deploy.Targets = []TargetConfig{{Name: "web", Artifact: "missing"}}
	assert.Error(t, cfg.Validate())
}

// TestConfig_MissingSecrets 部署目标引用的缺失密文被上报
func TestConfig_MissingSecrets(t *testing.T) {
	cfg := &Config{
		Secrets: map[string]string{"SPOTIPY_CLIENT_ID": "x"},
		Deploy: DeployConfig{
			Enabled: true,
			Targets: []TargetConfig{
				{Name: "orchestration", Artifact: "orchestration",
					Secrets: []string{"SPOTIPY_CLIENT_ID", "SPOTIPY_CLIENT_SECRET"}},
				{Name: "dashboard", Artifact: "dashboard",
					Secrets: []string{"SPOTIPY_CLIENT_SECRET"}},
			},
		},
	}

	missing := cfg.MissingSecrets()
	assert.Equal(t, []string{"SPOTIPY_CLIENT_SECRET"}, missing)

	// 部署未启用时密文不会被消费
	cfg.Deploy.Enabled = false
	assert.Empty(t, cfg.MissingSecrets())
}

// TestArtifactConfig_Descriptor 配置到指纹描述的转换
func TestArtifactConfig_Descriptor(t *testing.T) {
	a := ArtifactConfig{
		Name:            "orchestration",
		SourceRoots:     []string{"orchestration", "data_extract_load"},
		ExtraFiles:      []string{"orchestration/Dockerfile", "requirements.txt"},
		ExcludePrefixes: []string{"logs/", "data_warehouse/"},
	}
	d := a.Descriptor()
	assert.Equal(t, a.Name, d.Name)
	assert.Equal(t, a.SourceRoots, d.SourceRoots)
	assert.Equal(t, a.ExtraFiles, d.ExtraFiles)
	assert.Equal(t, a.ExcludePrefixes, d.ExcludePrefixes)
}
