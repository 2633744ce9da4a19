package waveform

import (
	"encoding/binary"
	"fmt"
	"math"

	"instrument-control/internal/scpi"
)

const (
	// DACMax 14 位 DAC 的最大码值
	DACMax = 16383

	// ChunkSize 每次写入的最大点数
	ChunkSize = 16384

	// LevelsPerDiv 示波器 8 位码值每格对应的级数
	LevelsPerDiv = 25
)

// Tag 分块传输标记
type Tag string

const (
	TagContinue Tag = "CON"
	TagEnd      Tag = "END"
)

// Chunk 一次写入的数据块
type Chunk struct {
	Tag   Tag
	Codes []uint16
}

// Encode 将电压样本线性映射到 [0, DACMax]，返回码值和样本的最大、最小值
func Encode(samples []float64) (codes []uint16, high, low float64, err error) {
	if len(samples) == 0 {
		return nil, 0, 0, fmt.Errorf("%w: 样本为空", scpi.ErrInvalidWaveform)
	}

	high, low = math.Inf(-1), math.Inf(1)
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, 0, 0, fmt.Errorf("%w: 第 %d 个样本非有限值", scpi.ErrInvalidWaveform, i)
		}
		high = math.Max(high, s)
		low = math.Min(low, s)
	}

	if high == low {
		return nil, 0, 0, fmt.Errorf("%w: 波形幅度为零 (%g)", scpi.ErrInvalidWaveform, high)
	}
	if math.IsInf(high-low, 0) {
		return nil, 0, 0, fmt.Errorf("%w: 波形范围溢出 [%g, %g]", scpi.ErrInvalidWaveform, low, high)
	}

	scale := float64(DACMax) / (high - low)
	codes = make([]uint16, len(samples))
	for i, s := range samples {
		codes[i] = uint16(math.RoundToEven((s - low) * scale))
	}
	return codes, high, low, nil
}

// DecodeDAC 由 DAC 码值和电压范围还原电压
func DecodeDAC(codes []uint16, high, low float64) []float64 {
	step := (high - low) / float64(DACMax)

	volts := make([]float64, len(codes))
	for i, c := range codes {
		volts[i] = low + float64(c)*step
	}
	return volts
}

// Chunks 按 size 拆分码值，最后一块标记为 END，其余为 CON
func Chunks(codes []uint16, size int) []Chunk {
	if size <= 0 {
		size = ChunkSize
	}

	n := (len(codes) + size - 1) / size
	chunks := make([]Chunk, 0, n)
	for i := 0; i < len(codes); i += size {
		end := i + size
		tag := TagContinue
		if end >= len(codes) {
			end = len(codes)
			tag = TagEnd
		}
		chunks = append(chunks, Chunk{Tag: tag, Codes: codes[i:end]})
	}
	return chunks
}

// PackDAC16 以小端序打包 16 位码值
func PackDAC16(codes []uint16) []byte {
	buf := make([]byte, 2*len(codes))
	for i, c := range codes {
		binary.LittleEndian.PutUint16(buf[2*i:], c)
	}
	return buf
}

// UnpackDAC16 是 PackDAC16 的逆过程
func UnpackDAC16(data []byte) []uint16 {
	codes := make([]uint16, len(data)/2)
	for i := range codes {
		codes[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return codes
}
