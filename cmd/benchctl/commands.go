package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"instrument-control/internal/config"
	"instrument-control/internal/monitor"
	"instrument-control/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:               "benchctl",
		Short:             "信号源与示波器远程控制工具",
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

var (
	configFile string
	verbose    bool

	cfg *config.Config
	log *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/config.yaml", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出发送的每条命令")
}

func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		cfg = config.GetDefaultConfig()
		fmt.Fprintln(os.Stderr, "使用默认配置")
	}

	log = setupLogger(cfg.Log, verbose)

	if cfg.Monitor.Enabled {
		mon := monitor.NewMonitor(log)
		mon.StartMetricsServer(cfg.Monitor.MetricsPort)
		mon.StartRuntimeMonitor()
	}
	return nil
}

// openCaptureQueue 在启用 Redis 时创建采集队列
func openCaptureQueue() (*storage.CaptureQueue, error) {
	r := cfg.Redis
	if !r.Enabled {
		return nil, fmt.Errorf("Redis 未启用 (redis.enabled)")
	}
	return storage.NewCaptureQueue(r.Addr, r.Password, r.Channel, r.DB, r.PoolSize, r.HistoryLimit, log)
}

func parseState(s string) (bool, error) {
	switch s {
	case "on", "ON", "1", "true":
		return true, nil
	case "off", "OFF", "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("无效的状态 %q，应为 on 或 off", s)
	}
}
