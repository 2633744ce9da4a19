package waveform

import (
	"fmt"

	"instrument-control/internal/scpi"
)

// Waveform 一次采集得到的时间/电压序列
type Waveform struct {
	Time    []float64
	Voltage []float64
	Codes   []int8

	SampleRate    float64
	TriggerOffset float64
	VoltsPerDiv   float64
	VoltOffset    float64

	XUnit string
	XName string
	YUnit string
	YName string
}

// Len 返回样本点数
func (w *Waveform) Len() int {
	return len(w.Voltage)
}

// SignedCodes 将示波器返回的字节解释为有符号 8 位码值
func SignedCodes(raw []byte) []int8 {
	codes := make([]int8, len(raw))
	for i, b := range raw {
		codes[i] = int8(b)
	}
	return codes
}

// Decode 由示波器 8 位码值重建波形：
// voltage[i] = code[i]*(vDiv/25) - vOff, time[i] = i/sampleRate + trigOffset
func Decode(codes []int8, vDiv, vOff, sampleRate, trigOffset float64) (*Waveform, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: 采样率必须为正: %g", scpi.ErrInvalidWaveform, sampleRate)
	}

	w := &Waveform{
		Time:          make([]float64, len(codes)),
		Voltage:       make([]float64, len(codes)),
		Codes:         codes,
		SampleRate:    sampleRate,
		TriggerOffset: trigOffset,
		VoltsPerDiv:   vDiv,
		VoltOffset:    vOff,
		XUnit:         "s",
		XName:         "Time",
		YUnit:         "V",
		YName:         "Samples",
	}

	perLevel := vDiv / LevelsPerDiv
	for i, c := range codes {
		w.Voltage[i] = float64(c)*perLevel - vOff
		w.Time[i] = float64(i)/sampleRate + trigOffset
	}
	return w, nil
}
