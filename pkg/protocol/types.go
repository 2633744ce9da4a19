package protocol

import "time"

// 记录类型
const (
	KindWaveform     = "waveform"
	KindMeasurements = "measurements"
)

// CaptureRecord 发布到消息队列的一次采集结果
type CaptureRecord struct {
	ID           string             `json:"id"`
	Instrument   string             `json:"instrument"`
	Channel      int                `json:"channel"`
	Kind         string             `json:"kind"`
	Timestamp    time.Time          `json:"timestamp"`
	Waveform     *WaveformData      `json:"waveform,omitempty"`
	Measurements map[string]float64 `json:"measurements,omitempty"`
}

// WaveformData 波形数据及其元信息
type WaveformData struct {
	SampleRate    float64   `json:"sample_rate"`
	TriggerOffset float64   `json:"trigger_offset"`
	VoltsPerDiv   float64   `json:"volts_per_div"`
	VoltOffset    float64   `json:"volt_offset"`
	XName         string    `json:"x_name"`
	XUnit         string    `json:"x_unit"`
	YName         string    `json:"y_name"`
	YUnit         string    `json:"y_unit"`
	Time          []float64 `json:"time"`
	Voltage       []float64 `json:"voltage"`
}
