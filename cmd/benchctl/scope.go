package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"instrument-control/internal/scope"
	"instrument-control/internal/storage"
	"instrument-control/internal/waveform"
	"instrument-control/pkg/protocol"
)

var (
	cmdScope = &cobra.Command{
		Use:   "scope",
		Short: "控制 Siglent SDS 示波器",
	}

	cmdScopeIdn = &cobra.Command{
		Use:   "idn",
		Short: "显示示波器型号和时基设置",
		RunE:  runScopeIdn,
	}

	cmdScopeWaveform = &cobra.Command{
		Use:   "waveform",
		Short: "读取通道波形并输出 CSV",
		RunE:  runScopeWaveform,
	}

	cmdScopeMeasure = &cobra.Command{
		Use:   "measure",
		Short: "读取通道全部测量值",
		RunE:  runScopeMeasure,
	}

	cmdScopePhase = &cobra.Command{
		Use:   "phase",
		Short: "测量 CH1 与 CH2 的相位差",
		RunE:  runScopePhase,
	}

	cmdScopeDelay = &cobra.Command{
		Use:   "delay",
		Short: "测量 CH1 与 CH2 的时间差",
		RunE:  runScopeDelay,
	}

	cmdScopeHistory = &cobra.Command{
		Use:   "history",
		Short: "列出 Redis 中保存的最近采集记录",
		RunE:  runScopeHistory,
	}
)

var (
	scopeAddr    string
	scopeChannel int
	scopeOut     string
	scopePublish bool
	scopeAll     bool
	scopeLimit   int64
)

func init() {
	rootCmd.AddCommand(cmdScope)
	cmdScope.AddCommand(cmdScopeIdn, cmdScopeWaveform, cmdScopeMeasure, cmdScopePhase, cmdScopeDelay, cmdScopeHistory)

	cmdScope.PersistentFlags().StringVarP(&scopeAddr, "addr", "a", "", "示波器地址，覆盖配置文件")
	cmdScope.PersistentFlags().IntVar(&scopeChannel, "ch", 1, "通道编号 (从 1 开始)")

	cmdScopeWaveform.Flags().StringVarP(&scopeOut, "out", "o", "", "CSV 输出文件，默认标准输出")
	for _, c := range []*cobra.Command{cmdScopeWaveform, cmdScopeMeasure} {
		c.Flags().BoolVar(&scopePublish, "publish", false, "发布到 Redis")
	}
	cmdScopeMeasure.Flags().BoolVar(&scopeAll, "all", false, "测量全部通道")
	cmdScopeHistory.Flags().Int64Var(&scopeLimit, "limit", 10, "记录条数")
}

func scopeAddress() string {
	if scopeAddr != "" {
		return scopeAddr
	}
	return cfg.Scope.Address
}

func connectScope(ctx context.Context) (*scope.SiglentSDS, *scope.Channel, error) {
	dev, err := scope.Dial(ctx, scopeAddress(), cfg.Scope.Timeout, log)
	if err != nil {
		return nil, nil, err
	}

	ch, err := dev.Channel(scopeChannel - 1)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return dev, ch, nil
}

func runScopeIdn(cmd *cobra.Command, args []string) error {
	dev, _, err := connectScope(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	fmt.Printf("%s\n", dev.Identity())

	rate, err := dev.SampleRate()
	if err != nil {
		return err
	}
	tdiv, err := dev.TimeDiv()
	if err != nil {
		return err
	}
	trig, err := dev.TriggerOffset()
	if err != nil {
		return err
	}
	fmt.Printf("采样率=%g Sa/s 时基=%g s/div 触发延迟=%g s\n", rate, tdiv, trig)

	for _, ch := range dev.Channels() {
		on, err := ch.Enabled()
		if err != nil {
			return err
		}
		vdiv, err := ch.VoltsPerDiv()
		if err != nil {
			return err
		}
		fmt.Printf("CH%d: 显示=%v 垂直档位=%g V/div\n", ch.Index()+1, on, vdiv)
	}
	return nil
}

func runScopeWaveform(cmd *cobra.Command, args []string) error {
	dev, ch, err := connectScope(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	w, err := ch.Waveform()
	if err != nil {
		return err
	}
	log.Infof("读取 CH%d 波形: %d 点, 采样率 %g Sa/s", scopeChannel, w.Len(), w.SampleRate)

	var out io.Writer = os.Stdout
	if scopeOut != "" {
		f, err := os.Create(scopeOut)
		if err != nil {
			return fmt.Errorf("创建输出文件失败: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := writeCSV(out, w); err != nil {
		return err
	}

	if scopePublish {
		return publish(cmd.Context(), storage.NewWaveformRecord(scopeAddress(), ch.Index(), w))
	}
	return nil
}

func runScopeMeasure(cmd *cobra.Command, args []string) error {
	dev, ch, err := connectScope(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	channels := []*scope.Channel{ch}
	if scopeAll {
		channels = dev.Channels()
	}

	var records []*protocol.CaptureRecord
	for _, ch := range channels {
		values, err := ch.Measurements()
		if err != nil {
			return err
		}
		printMeasurements(os.Stdout, ch.Index(), values)
		records = append(records, storage.NewMeasurementRecord(scopeAddress(), ch.Index(), values))
	}

	if !scopePublish {
		return nil
	}

	q, err := openCaptureQueue()
	if err != nil {
		return err
	}
	defer q.Close()
	return q.PublishBatch(cmd.Context(), records)
}

// printMeasurements 按名称排序输出一个通道的测量值
func printMeasurements(out io.Writer, channel int, values map[string]float64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "CH%d\n", channel+1)
	for _, name := range names {
		fmt.Fprintf(out, "  %-8s %g\n", name, values[name])
	}
}

func runScopePhase(cmd *cobra.Command, args []string) error {
	dev, _, err := connectScope(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	v, err := dev.PhaseDelay()
	if err != nil {
		return err
	}
	fmt.Printf("%g degree\n", v)
	return nil
}

func runScopeDelay(cmd *cobra.Command, args []string) error {
	dev, _, err := connectScope(cmd.Context())
	if err != nil {
		return err
	}
	defer dev.Close()

	v, err := dev.TimeDelay()
	if err != nil {
		return err
	}
	fmt.Printf("%g s\n", v)
	return nil
}

func runScopeHistory(cmd *cobra.Command, args []string) error {
	q, err := openCaptureQueue()
	if err != nil {
		return err
	}
	defer q.Close()

	records, err := q.Recent(cmd.Context(), scopeAddress(), scopeLimit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("%s %s CH%d %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.ID, rec.Channel+1, rec.Kind)
	}
	return nil
}

func publish(ctx context.Context, rec *protocol.CaptureRecord) error {
	q, err := openCaptureQueue()
	if err != nil {
		return err
	}
	defer q.Close()

	return q.Publish(ctx, rec)
}

func writeCSV(out io.Writer, w *waveform.Waveform) error {
	cw := csv.NewWriter(out)
	header := []string{
		fmt.Sprintf("%s (%s)", w.XName, w.XUnit),
		fmt.Sprintf("%s (%s)", w.YName, w.YUnit),
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range w.Voltage {
		row := []string{
			strconv.FormatFloat(w.Time[i], 'g', -1, 64),
			strconv.FormatFloat(w.Voltage[i], 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
