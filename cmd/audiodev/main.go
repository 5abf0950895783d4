package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lisuiheng/audiodev/core"
	"github.com/lisuiheng/audiodev/logger"
)

func main() {
	configPath := flag.String("c", "", "Path to config file (default searches ./config.yaml, ./config/config.yaml, /etc/audiodev/config.yaml)")
	list := flag.Bool("list", false, "List drivers and devices, then exit")
	duration := flag.Duration("duration", 0, "Stop after this long (default runs until interrupted)")
	debug := flag.Bool("debug", false, "Log at debug level to stdout")
	flag.Parse()

	// 加载配置
	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := initLogger(cfg, *debug); err != nil {
		logger.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	code := run(cfg, *list, *duration)
	logger.Close()
	os.Exit(code)
}

func run(cfg core.Config, list bool, duration time.Duration) int {
	engine, err := core.NewEngineFromConfig(cfg, os.Stdout, logger.Logger())
	if err != nil {
		logger.Error("Failed to create engine", "error", err)
		return 1
	}
	defer engine.StopAll()

	if list {
		n := engine.ListDevices()
		fmt.Printf("%d devices\n", n)
		return 0
	}

	session, err := core.StartSession(engine, cfg, logger.Logger())
	if err != nil {
		logger.Error("Failed to start audio", "error", err)
		return 1
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("Failed to stop audio", "error", err)
		}
	}()

	// 设置信号处理
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, duration)
		defer stop()
	}

	req := session.Request()
	logger.Info("Audio running",
		"driver", req.Driver, "output", req.OutputDevice, "input", req.InputDevice,
		"mode", cfg.Callback.Mode, "context", req.Context)
	<-ctx.Done()
	logger.Info("Shutting down", "reason", context.Cause(ctx))
	return 0
}

// initLogger 初始化日志系统
func initLogger(cfg core.Config, debug bool) error {
	logCfg := cfg.Logging

	// 调试模式覆盖配置
	if debug {
		logCfg.Level = "debug"
		logCfg.Outputs = []string{"stdout"}
	}
	return logger.Init(logCfg)
}
