// Package main 指纹调试工具
//
// 只计算并打印各制品的内容指纹，不访问触发存储、不构建。
// 用于排查"为什么这次没触发发布"：在两个工作副本上分别运行，
// 对比完整摘要即可定位差异。
package main

import (
	"flag"
	"fmt"
	"log"

	"deploy-admin/internal/config"
	"deploy-admin/internal/fingerprint"
)

func main() {
	configDir := flag.String("config", "", "config directory (default: search configs/ upward)")
	full := flag.Bool("full", false, "print full digests instead of short prefixes")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	only := flag.Args()
	for _, art := range cfg.Artifacts {
		if len(only) > 0 && !contains(only, art.Name) {
			continue
		}
		fp, err := fingerprint.Compute(art.Descriptor())
		if err != nil {
			log.Fatalf("Failed to fingerprint %s: %v", art.Name, err)
		}
		if *full {
			fmt.Printf("%-16s %s\n", art.Name, fp)
		} else {
			fmt.Printf("%-16s %s\n", art.Name, fp.Short())
		}
	}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
