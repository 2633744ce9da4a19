package awg

import (
	"fmt"
	"regexp"

	"instrument-control/internal/monitor"
	"instrument-control/internal/scpi"
	"instrument-control/internal/waveform"
)

var modeExpr = regexp.MustCompile(`(\w+),`)

// Channel 信号源的一个输出通道。
// 所有读操作都会重新查询仪器，写操作不做回读确认。
type Channel struct {
	session *scpi.Session
	index   int // 线上编号，从 1 开始
	maxRate float64
}

// Index 返回从 0 开始的逻辑编号
func (c *Channel) Index() int {
	return c.index - 1
}

func (c *Channel) Enabled() (bool, error) {
	return c.session.QueryState(fmt.Sprintf("OUTP%d?", c.index))
}

func (c *Channel) SetEnabled(on bool) error {
	return c.session.Writef("OUTP%d %s", c.index, scpi.FormatState(on))
}

// Mode 返回当前输出模式，例如 SIN、SQU、ARB
func (c *Channel) Mode() (string, error) {
	cmd := fmt.Sprintf(":SOUR%d:APPL?", c.index)
	reply, err := c.session.Query(cmd)
	if err != nil {
		return "", err
	}

	m := modeExpr.FindStringSubmatch(reply)
	if m == nil {
		return "", fmt.Errorf("%s: %w: %q", cmd, scpi.ErrParse, reply)
	}
	return m[1], nil
}

// SampleRate 任意波采样率 (Sa/s)
func (c *Channel) SampleRate() (float64, error) {
	return c.session.QueryFloat(fmt.Sprintf(":SOUR%d:FUNC:ARB:SRAT?", c.index))
}

func (c *Channel) SetSampleRate(rate float64) error {
	return c.session.Writef(":SOUR%d:FUNC:ARB:SRAT %d", c.index, int64(rate))
}

// Offset 直流偏置 (V)
func (c *Channel) Offset() (float64, error) {
	return c.session.QueryFloat(fmt.Sprintf(":SOUR%d:VOLT:OFFS?", c.index))
}

func (c *Channel) SetOffset(v float64) error {
	return c.session.Writef(":SOUR%d:VOLT:OFFS %f", c.index, v)
}

// High 高电平 (V)
func (c *Channel) High() (float64, error) {
	return c.session.QueryFloat(fmt.Sprintf(":SOUR%d:VOLT:HIGH?", c.index))
}

func (c *Channel) SetHigh(v float64) error {
	return c.session.Writef(":SOUR%d:VOLT:HIGH %f", c.index, v)
}

// Low 低电平 (V)
func (c *Channel) Low() (float64, error) {
	return c.session.QueryFloat(fmt.Sprintf(":SOUR%d:VOLT:LOW?", c.index))
}

func (c *Channel) SetLow(v float64) error {
	return c.session.Writef(":SOUR%d:VOLT:LOW %f", c.index, v)
}

// Amplitude 幅度 (Vpp)
func (c *Channel) Amplitude() (float64, error) {
	return c.session.QueryFloat(fmt.Sprintf(":SOUR%d:VOLT?", c.index))
}

func (c *Channel) SetAmplitude(v float64) error {
	return c.session.Writef(":SOUR%d:VOLT %f", c.index, v)
}

// SetShape 输出标准波形。参数顺序固定为 频率,幅度,偏置,相位。
func (c *Channel) SetShape(kind Kind, s Shape) error {
	if !kind.valid() {
		return fmt.Errorf("%w: 不支持的波形类型 %q", scpi.ErrConfiguration, kind)
	}

	return c.session.Writef(":SOUR%d:APPL:%s %f,%f,%f,%f",
		c.index, kind, s.Frequency, s.Amplitude, s.Offset, s.Phase)
}

func (c *Channel) SetSine(s Shape) error {
	return c.SetShape(Sine, s)
}

func (c *Channel) SetSquare(s Shape) error {
	return c.SetShape(Square, s)
}

// OutputConfig 查询当前输出波形描述
func (c *Channel) OutputConfig() (OutputConfig, error) {
	cmd := fmt.Sprintf("SOUR%d:APPL?", c.index)
	reply, err := c.session.Query(cmd)
	if err != nil {
		return OutputConfig{}, err
	}

	cfg, err := parseOutputConfig(reply)
	if err != nil {
		return OutputConfig{}, fmt.Errorf("%s: %w", cmd, err)
	}
	return cfg, nil
}

// TransferWave 以任意波模式输出 samples (V)，采样率为 rate (Sa/s)。
// 顺序：切换 ARB 模式、写采样率、写电压范围、分块写数据。
// 整个过程持有会话锁，其他通道的命令不会插入。
func (c *Channel) TransferWave(samples []float64, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: 采样率必须为正: %g", scpi.ErrConfiguration, rate)
	}
	if c.maxRate > 0 && rate > c.maxRate {
		return fmt.Errorf("%w: 采样率 %g 超过上限 %g", scpi.ErrConfiguration, rate, c.maxRate)
	}

	codes, high, low, err := waveform.Encode(samples)
	if err != nil {
		return err
	}

	err = c.session.Exclusive(func(tx *scpi.Tx) error {
		if err := tx.Writef(":SOUR%d:APPL:ARB", c.index); err != nil {
			return err
		}
		if err := tx.Writef(":SOUR%d:FUNC:ARB:SRAT %d", c.index, int64(rate)); err != nil {
			return err
		}
		if err := tx.Writef(":SOUR%d:VOLT:HIGH %f", c.index, high); err != nil {
			return err
		}
		if err := tx.Writef(":SOUR%d:VOLT:LOW %f", c.index, low); err != nil {
			return err
		}

		for _, chunk := range waveform.Chunks(codes, waveform.ChunkSize) {
			prefix := fmt.Sprintf(":SOUR%d:TRAC:DATA:DAC16 VOLATILE,%s,", c.index, chunk.Tag)
			if err := tx.WriteBinary(prefix, waveform.PackDAC16(chunk.Codes)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	monitor.WaveformTransfers.WithLabelValues(c.session.Name(), "upload").Inc()
	return nil
}
