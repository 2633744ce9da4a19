package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"instrument-control/internal/simulator"
)

var (
	cmdSimulate = &cobra.Command{
		Use:   "simulate [awg|scope]",
		Short: "启动仪器模拟器",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulate,
	}
)

var simulatePort int

func init() {
	rootCmd.AddCommand(cmdSimulate)
	cmdSimulate.Flags().IntVarP(&simulatePort, "port", "p", 0, "监听端口，默认使用配置文件")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	var inst simulator.Instrument
	switch args[0] {
	case "awg":
		inst = simulator.NewAWG(cfg.Simulator.Identity)
	case "scope":
		inst = simulator.NewScope(cfg.Simulator.Identity)
	default:
		return fmt.Errorf("未知的仪器类型 %q", args[0])
	}

	simCfg := cfg.Simulator
	if simulatePort != 0 {
		simCfg.Port = simulatePort
	}

	srv := simulator.NewServer(simCfg, inst, log)
	if err := srv.Listen(); err != nil {
		return err
	}

	// 优雅退出处理
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		sig := <-sigChan
		log.Infof("收到信号: %v, 开始优雅关闭...", sig)
		if err := srv.Close(); err != nil {
			log.Errorf("关闭监听失败: %v", err)
		}
	}()

	return srv.Serve()
}
