package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"instrument-control/internal/config"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// setupLogger 按配置创建日志。verbose 强制 debug 级别以回显每条命令，
// 时间戳精确到毫秒以便对照仪器的应答时间。
func setupLogger(cfg config.LogConfig, verbose bool) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	text := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	}
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(text)
	}

	log.SetOutput(os.Stderr)
	if cfg.Output != "file" || cfg.FilePath == "" {
		return log
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Warnf("打开日志文件失败: %v, 使用标准错误输出", err)
		return log
	}
	text.DisableColors = true
	log.SetOutput(file)
	return log
}
