package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"instrument-control/internal/awg"
)

var (
	cmdAWG = &cobra.Command{
		Use:   "awg",
		Short: "控制 Rigol DG1000Z 信号源",
	}

	cmdAWGIdn = &cobra.Command{
		Use:   "idn",
		Short: "显示信号源型号和各通道状态",
		RunE:  runAWGIdn,
	}

	cmdAWGSine = &cobra.Command{
		Use:   "sine",
		Short: "输出正弦波",
		RunE:  runAWGShape(awg.Sine),
	}

	cmdAWGSquare = &cobra.Command{
		Use:   "square",
		Short: "输出方波",
		RunE:  runAWGShape(awg.Square),
	}

	cmdAWGOutput = &cobra.Command{
		Use:   "output",
		Short: "显示通道当前输出配置",
		RunE:  runAWGOutput,
	}

	cmdAWGEnable = &cobra.Command{
		Use:   "enable [on|off]",
		Short: "打开或关闭通道输出",
		Args:  cobra.ExactArgs(1),
		RunE:  runAWGEnable,
	}

	cmdAWGCouple = &cobra.Command{
		Use:   "couple [on|off]",
		Short: "设置通道耦合",
		Args:  cobra.ExactArgs(1),
		RunE:  runAWGCouple,
	}

	cmdAWGArb = &cobra.Command{
		Use:   "arb",
		Short: "从文件加载样本并以任意波输出",
		RunE:  runAWGArb,
	}
)

var (
	awgAddr    string
	awgChannel int
	awgShape   = awg.DefaultShape()
	awgFile    string
	awgRate    float64
)

func init() {
	rootCmd.AddCommand(cmdAWG)
	cmdAWG.AddCommand(cmdAWGIdn, cmdAWGSine, cmdAWGSquare, cmdAWGOutput, cmdAWGEnable, cmdAWGCouple, cmdAWGArb)

	cmdAWG.PersistentFlags().StringVarP(&awgAddr, "addr", "a", "", "信号源地址，覆盖配置文件")
	cmdAWG.PersistentFlags().IntVar(&awgChannel, "ch", 1, "通道编号 (从 1 开始)")

	for _, c := range []*cobra.Command{cmdAWGSine, cmdAWGSquare} {
		c.Flags().Float64VarP(&awgShape.Frequency, "freq", "f", awgShape.Frequency, "频率 (Hz)")
		c.Flags().Float64Var(&awgShape.Amplitude, "vpp", awgShape.Amplitude, "峰峰值 (V)")
		c.Flags().Float64Var(&awgShape.Offset, "offset", awgShape.Offset, "直流偏置 (V)")
		c.Flags().Float64Var(&awgShape.Phase, "phase", awgShape.Phase, "相位 (度)")
	}

	cmdAWGArb.Flags().StringVar(&awgFile, "file", "", "样本文件，每个数值以空白分隔 (V)")
	cmdAWGArb.Flags().Float64Var(&awgRate, "rate", 1e6, "采样率 (Sa/s)")
	cmdAWGArb.MarkFlagRequired("file")
}

func connectAWG(ctx context.Context) (*awg.RigolDG, *awg.Channel, error) {
	addr := cfg.AWG.Address
	if awgAddr != "" {
		addr = awgAddr
	}

	dev, err := awg.Dial(ctx, addr, cfg.AWG.Timeout, log)
	if err != nil {
		return nil, nil, err
	}

	ch, err := dev.Channel(awgChannel - 1)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return dev, ch, nil
}

func runAWGIdn(cmd *cobra.Command, args []string) error {
	dev, _, err := connectAWG(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	fmt.Printf("%s\n", dev.Identity())
	if rate := dev.MaxSampleRate(); rate > 0 {
		fmt.Printf("最大采样率: %g Sa/s\n", rate)
	}

	for _, ch := range dev.Channels() {
		on, err := ch.Enabled()
		if err != nil {
			return err
		}
		mode, err := ch.Mode()
		if err != nil {
			return err
		}
		fmt.Printf("CH%d: 输出=%v 模式=%s\n", ch.Index()+1, on, mode)
	}
	return nil
}

func runAWGShape(kind awg.Kind) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		dev, ch, err := connectAWG(cmd.Context())
		if err != nil {
			return err
		}
		defer dev.Close()

		return ch.SetShape(kind, awgShape)
	}
}

func runAWGOutput(cmd *cobra.Command, args []string) error {
	dev, ch, err := connectAWG(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	out, err := ch.OutputConfig()
	if err != nil {
		return err
	}
	fmt.Printf("类型=%s 频率=%g Hz 幅度=%g Vpp 偏置=%g V 相位=%g°\n",
		out.Kind, out.Frequency, out.Amplitude, out.Offset, out.Phase)
	return nil
}

func runAWGEnable(cmd *cobra.Command, args []string) error {
	on, err := parseState(args[0])
	if err != nil {
		return err
	}

	dev, ch, err := connectAWG(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	return ch.SetEnabled(on)
}

func runAWGCouple(cmd *cobra.Command, args []string) error {
	on, err := parseState(args[0])
	if err != nil {
		return err
	}

	dev, _, err := connectAWG(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	return dev.SetCoupled(on)
}

func runAWGArb(cmd *cobra.Command, args []string) error {
	samples, err := readSamples(awgFile)
	if err != nil {
		return err
	}

	dev, ch, err := connectAWG(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	if err := ch.TransferWave(samples, awgRate); err != nil {
		return err
	}
	log.Infof("已传输 %d 个样本到 CH%d, 采样率 %g Sa/s", len(samples), awgChannel, awgRate)
	return nil
}

// readSamples 读取以空白分隔的浮点样本
func readSamples(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开样本文件失败: %w", err)
	}
	defer f.Close()

	var samples []float64
	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		word := strings.TrimSuffix(scanner.Text(), ",")
		v, err := strconv.ParseFloat(word, 64)
		if err != nil {
			return nil, fmt.Errorf("样本格式错误 %q: %w", word, err)
		}
		samples = append(samples, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取样本文件失败: %w", err)
	}
	return samples, nil
}
