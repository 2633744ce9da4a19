package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"

	"instrument-control/internal/waveform"
)

func main() {
	shape := flag.String("shape", "sine", "波形 (sine, square, ramp, noise)")
	freq := flag.Float64("freq", 993, "信号频率 (Hz)")
	rate := flag.Float64("rate", 20e6, "采样率 (Sa/s)")
	count := flag.Int("count", 20000, "样本数")
	amp := flag.Float64("amp", 1, "幅度 (V)")
	offset := flag.Float64("offset", 0, "直流偏置 (V)")
	output := flag.String("out", "", "输出文件，默认标准输出")
	preview := flag.Bool("preview", false, "在标准错误输出 DAC 码值预览")
	flag.Parse()

	omega := 2 * math.Pi * *freq
	samples := make([]float64, *count)
	for i := range samples {
		t := float64(i) / *rate
		samples[i] = *offset + *amp*generate(*shape, omega*t)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "创建输出文件失败: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	for _, s := range samples {
		fmt.Fprintf(w, "%.9g\n", s)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "写入失败: %v\n", err)
		os.Exit(1)
	}

	if *preview {
		displayCodes(samples)
	}
}

// generate 返回相位 phase 处的归一化波形值
func generate(shape string, phase float64) float64 {
	switch shape {
	case "square":
		if math.Sin(phase) >= 0 {
			return 1
		}
		return -1
	case "ramp":
		return 2*math.Mod(phase/(2*math.Pi), 1) - 1
	case "noise":
		return 2*rand.Float64() - 1
	default:
		return math.Sin(phase)
	}
}

// displayCodes 显示编码结果和分块情况
func displayCodes(samples []float64) {
	codes, high, low, err := waveform.Encode(samples)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  错误: %v\n", err)
		return
	}

	chunks := waveform.Chunks(codes, waveform.ChunkSize)
	fmt.Fprintf(os.Stderr, "  编码结果:\n")
	fmt.Fprintf(os.Stderr, "    电压范围: %.6f ~ %.6f V\n", low, high)
	fmt.Fprintf(os.Stderr, "    量化步长: %.3e V\n", (high-low)/waveform.DACMax)
	fmt.Fprintf(os.Stderr, "    分块数:   %d\n", len(chunks))
	for i, c := range chunks {
		if i >= 4 {
			fmt.Fprintf(os.Stderr, "    ...\n")
			break
		}
		fmt.Fprintf(os.Stderr, "    [%d] %s %d 点, 首码值 %d\n", i, c.Tag, len(c.Codes), c.Codes[0])
	}
}
