package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paperarena/ai"
	"paperarena/config"
	"paperarena/i18n"
	"paperarena/logger"
	"paperarena/market"
	"paperarena/metrics"
	"paperarena/web"
)

// Version 版本号
var Version = "1.0.0"

func main() {
	// 检查版本参数
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Printf("Paper Arena Trading Dashboard\n")
		fmt.Printf("Version: %s\n", Version)
		os.Exit(0)
	}

	// 解析调试参数（-debug / --debug）
	debugMode := false
	filteredArgs := []string{os.Args[0]}
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-debug", "--debug":
			debugMode = true
		default:
			filteredArgs = append(filteredArgs, arg)
		}
	}
	if debugMode {
		log.Printf("[INFO] Debug 模式已启用：Gin 将输出全量请求日志")
	}
	os.Args = filteredArgs

	logger.Info("🚀 Paper Arena 模拟交易面板启动...")
	logger.Info("📦 版本号: %s", Version)

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	var cfg *config.Config
	var err error
	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		// 配置文件不存在，使用默认配置并落盘
		logger.Info("ℹ️ 配置文件不存在，使用默认配置")
		cfg = config.DefaultConfig()
		if err := config.SaveConfig(cfg, configPath); err != nil {
			logger.Warn("⚠️ 保存默认配置失败: %v，将继续运行", err)
		} else {
			logger.Info("✅ 已创建默认配置文件: %s", configPath)
		}
	} else {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			logger.Fatalf("❌ 加载配置失败: %v", err)
		}
	}

	if loc, err := time.LoadLocation(cfg.System.Timezone); err != nil {
		logger.Warn("⚠️ 加载时区 %s 失败: %v，将使用本地时区", cfg.System.Timezone, err)
	} else {
		logger.SetLocation(loc)
		logger.Info("✅ 系统时区设置为: %s", cfg.System.Timezone)
	}

	if debugMode {
		cfg.System.LogLevel = "debug"
	}
	logLevel := logger.ParseLogLevel(cfg.System.LogLevel)
	logger.SetLevel(logLevel)
	logger.Info("日志级别设置为: %s", logLevel.String())

	// 初始化 i18n 系统
	logLang := cfg.System.LogLanguage
	if logLang == "" {
		logLang = "zh-CN"
	}
	if err := i18n.Init(logLang); err != nil {
		logger.Warn("⚠️ 初始化 i18n 失败: %v，将使用默认语言", err)
	} else {
		logger.Info("✅ i18n 系统已初始化，日志语言: %s", logLang)
	}
	logger.SetTranslateFunc(i18n.T)

	if err := logger.InitWebLogger(); err != nil {
		logger.Warn("⚠️ 初始化 Web 日志失败: %v", err)
	}
	defer logger.Close()

	logger.Info("✅ 配置加载成功: 交易币种=%v, 最大杠杆=%dx, 起始资金=%.0f",
		cfg.Trading.Symbols, cfg.Trading.MaxLeverage, cfg.Trading.StartingCash)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 行情数据源
	logger.Info("🔧 正在初始化行情数据源...")
	marketSource := market.NewBinanceSource(cfg)
	logger.Info("✅ 行情数据源就绪: %s (计价货币 %s)", cfg.Market.BaseURL, cfg.Market.QuoteAsset)

	// AI 客户端（凭证按会话配置）
	aiClient := ai.NewClient(
		time.Duration(cfg.AI.TimeoutSeconds)*time.Second,
		cfg.AI.Temperature,
		cfg.AI.MaxTokens,
	)

	// 会话管理器：每个会话一个独立的模拟账本
	sessionManager := web.NewSessionManager(
		cfg.Trading.StartingCash,
		time.Duration(cfg.Trading.SessionTimeoutMinutes)*time.Minute,
		marketSource,
	)
	defer sessionManager.Stop()

	// Prometheus 系统指标采集器
	if cfg.Metrics.Enabled {
		logger.Info("🔧 正在初始化 Prometheus 系统指标采集器...")
		collector := metrics.NewSystemMetricsCollector(
			time.Duration(cfg.Metrics.CollectIntervalSeconds) * time.Second)
		collector.Start()
		defer collector.Stop()
		logger.Info("✅ Prometheus 系统指标采集器已启动")
	}

	// 注入 Web 层依赖
	web.Version = Version
	web.SetMarketSource(marketSource)
	web.SetAIClient(aiClient)
	web.SetSessionManager(sessionManager)
	web.SetTradingParams(cfg.Trading.Symbols, cfg.Trading.MaxLeverage,
		cfg.Trading.DefaultInterval, cfg.Market.KlineLimitMax)

	// Web 服务器
	webServer := web.NewWebServer(cfg)
	if webServer == nil {
		logger.Fatalf("❌ Web 服务已禁用，没有可运行的组件")
	}
	if err := webServer.Start(ctx); err != nil {
		logger.Fatalf("❌ 启动 Web 服务器失败: %v", err)
	}

	// 配置热加载：只对运行期可安全变更的项生效
	watcher, err := config.NewConfigWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("🔄 检测到配置变更，应用运行期参数...")
		logger.SetLevel(logger.ParseLogLevel(newCfg.System.LogLevel))
		if newCfg.System.LogLanguage != "" {
			i18n.SetSystemLanguage(newCfg.System.LogLanguage)
		}
		web.SetTradingParams(newCfg.Trading.Symbols, newCfg.Trading.MaxLeverage,
			newCfg.Trading.DefaultInterval, newCfg.Market.KlineLimitMax)
		logger.Info("✅ 运行期配置已更新: 交易币种=%v", newCfg.Trading.Symbols)
	})
	if err != nil {
		logger.Warn("⚠️ 初始化配置监听失败: %v，热加载不可用", err)
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("⚠️ 启动配置监听失败: %v", err)
	} else {
		defer watcher.Stop()
		logger.Info("✅ 配置热加载已启用: %s", configPath)
	}

	// 等待退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("📢 收到退出信号: %v，开始优雅关闭...", sig)

	cancel()
	webServer.Stop()
	logger.Info("👋 Paper Arena 已退出")
}
