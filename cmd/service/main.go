package main

import (
	"log"
	"os"

	"github.com/kasuganosora/sqladvisor/pkg/advisor"
	"github.com/kasuganosora/sqladvisor/pkg/cache"
	"github.com/kasuganosora/sqladvisor/pkg/config"
	"github.com/kasuganosora/sqladvisor/pkg/monitor"
	mcpserver "github.com/kasuganosora/sqladvisor/server/mcp"
)

// slowLogCapacity 慢分析日志保留条数
const slowLogCapacity = 1024

func main() {
	// 加载配置
	cfg := config.LoadConfigOrDefault()
	if cfg.Log.Level == "debug" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	log.Printf("[SERVICE] 加载配置: Address=%s, MCPEnabled=%v", cfg.GetListenAddress(), cfg.Server.MCPEnabled)

	// 创建分析器
	optimizer, err := advisor.NewQueryOptimizer(&cfg.Optimizer)
	if err != nil {
		log.Printf("[SERVICE] 创建分析器失败: %v", err)
		os.Exit(1)
	}

	// 监控：指标采集 + 慢分析追踪
	metrics := monitor.NewMetricsCollector()
	slowLog := monitor.NewSlowAnalysisTracker(cfg.Optimizer.MaxAnalysisTime(), slowLogCapacity)
	optimizer.SetMonitor(metrics, slowLog)

	// 条件启用分析结果缓存：内存态或 badger 持久化
	if cfg.Cache.Enabled {
		if cfg.Cache.InMemory {
			optimizer.SetResultCache(advisor.NewMemoryResultCache(cfg.Cache.MaxEntries))
			log.Printf("[SERVICE] 内存结果缓存已启用: max_entries=%d", cfg.Cache.MaxEntries)
		} else {
			resultCache, err := cache.Open(cache.Options{
				Dir: cfg.Cache.Dir,
				TTL: cfg.Cache.TTL(),
			})
			if err != nil {
				log.Printf("[SERVICE] 打开结果缓存失败: %v", err)
				os.Exit(1)
			}
			defer resultCache.Close()
			optimizer.SetResultCache(resultCache)
			log.Printf("[SERVICE] 持久化结果缓存已启用: dir=%s ttl=%s", cfg.Cache.Dir, cfg.Cache.TTL())
		}
	}

	if !cfg.Server.MCPEnabled {
		log.Printf("[SERVICE] MCP 服务未启用，退出")
		return
	}

	// MCP 服务（阻塞）
	srv := mcpserver.NewServer(optimizer, &cfg.Server)
	srv.SetMetrics(metrics)
	if err := srv.Start(); err != nil {
		log.Printf("[SERVICE] MCP 服务器退出: %v", err)
		os.Exit(1)
	}
}
