// Package main provisioning 入口
//
// 一次运行完成完整的 provisioning 过程：计算各制品指纹、
// 与触发记录比对、需要时构建发布镜像、重建部署目标容器，
// 最后打印操作者输出（UI 地址、实例 ID）。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"deploy-admin/internal/config"
	"deploy-admin/internal/provisioner"
	"deploy-admin/pkg/logging"
)

func main() {
	var (
		configDir = flag.String("config", "", "config directory (default: search configs/ upward)")
		dryRun    = flag.Bool("dry-run", false, "report decisions without building or deploying")
		force     = flag.Bool("force", false, "publish even when fingerprints are unchanged")
		artifacts = flag.String("artifact", "", "comma-separated artifact names to process (default all)")
		backend   = flag.String("backend", "", "build backend override (docker / cli)")
	)
	flag.Parse()

	// 加载配置（自动加载 .env，根据 APP_ENV 切换配置文件）
	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting provisioner... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	logger := logging.New(logging.Config{
		Component: "provisioner",
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl-C 中止当前运行；构建中的凭据目录仍会被清理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Interrupt received, aborting run...")
		cancel()
	}()

	store, err := provisioner.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open trigger store: %v", err)
	}
	defer store.Close()
	log.Printf("Trigger store ready [backend=%s]", cfg.State.Backend)

	buildBackend, err := provisioner.OpenBackend(cfg, *backend)
	if err != nil {
		log.Fatalf("Failed to open build backend: %v", err)
	}

	rt, err := provisioner.OpenRuntime(cfg)
	if err != nil {
		log.Fatalf("Failed to connect container runtime: %v", err)
	}
	if rt != nil {
		defer rt.Close()
	}

	opts := provisioner.Options{
		DryRun: *dryRun,
		Force:  *force,
		Only:   parseArtifacts(*artifacts),
	}

	engine := provisioner.NewEngine(cfg, store, buildBackend, rt, logger, opts)
	result, err := engine.Run(ctx)
	if err != nil {
		log.Fatalf("Provisioning failed: %v", err)
	}

	printSummary(result, *dryRun)
}

// parseArtifacts 解析 --artifact 的逗号分隔列表
func parseArtifacts(s string) map[string]bool {
	if s == "" {
		return nil
	}
	only := make(map[string]bool)
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			only[name] = true
		}
	}
	return only
}

func printSummary(result *provisioner.PassResult, dryRun bool) {
	fmt.Println()
	if dryRun {
		fmt.Println("=== Provisioning plan (dry-run) ===")
	} else {
		fmt.Println("=== Provisioning summary ===")
	}
	for _, a := range result.Artifacts {
		status := "unchanged"
		if a.Published {
			status = "published"
		} else if dryRun {
			status = "evaluated"
		}
		fmt.Printf("  %-16s %s  %s  (%s)\n", a.Name, a.Fingerprint.Short(), a.ImageRef, status)
	}
	for _, name := range sortedKeys(result.Outputs.URLs) {
		fmt.Printf("URL      %-12s %s\n", name, result.Outputs.URLs[name])
	}
	for _, name := range sortedKeys(result.Outputs.Instances) {
		fmt.Printf("Instance %-12s %s\n", name, result.Outputs.Instances[name])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
