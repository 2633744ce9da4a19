package storage

import (
	"time"

	"github.com/google/uuid"
	"instrument-control/internal/waveform"
	"instrument-control/pkg/protocol"
)

// NewWaveformRecord 由一次波形采集构造记录，channel 为从 0 开始的编号
func NewWaveformRecord(instrument string, channel int, w *waveform.Waveform) *protocol.CaptureRecord {
	return &protocol.CaptureRecord{
		ID:         uuid.NewString(),
		Instrument: instrument,
		Channel:    channel,
		Kind:       protocol.KindWaveform,
		Timestamp:  time.Now(),
		Waveform: &protocol.WaveformData{
			SampleRate:    w.SampleRate,
			TriggerOffset: w.TriggerOffset,
			VoltsPerDiv:   w.VoltsPerDiv,
			VoltOffset:    w.VoltOffset,
			XName:         w.XName,
			XUnit:         w.XUnit,
			YName:         w.YName,
			YUnit:         w.YUnit,
			Time:          w.Time,
			Voltage:       w.Voltage,
		},
	}
}

// NewMeasurementRecord 由 PAVA 测量结果构造记录
func NewMeasurementRecord(instrument string, channel int, values map[string]float64) *protocol.CaptureRecord {
	return &protocol.CaptureRecord{
		ID:           uuid.NewString(),
		Instrument:   instrument,
		Channel:      channel,
		Kind:         protocol.KindMeasurements,
		Timestamp:    time.Now(),
		Measurements: values,
	}
}
