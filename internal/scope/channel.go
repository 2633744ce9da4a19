package scope

import (
	"fmt"

	"instrument-control/internal/monitor"
	"instrument-control/internal/scpi"
	"instrument-control/internal/waveform"
)

// Channel 示波器的一个输入通道
type Channel struct {
	session *scpi.Session
	index   int // 线上编号，从 1 开始
}

// Index 返回从 0 开始的逻辑编号
func (c *Channel) Index() int {
	return c.index - 1
}

func (c *Channel) Enabled() (bool, error) {
	return c.session.QueryState(fmt.Sprintf("C%d:TRA?", c.index))
}

func (c *Channel) SetEnabled(on bool) error {
	return c.session.Writef("C%d:TRA %s", c.index, scpi.FormatState(on))
}

// Offset 直流偏置 (V)
func (c *Channel) Offset() (float64, error) {
	return c.session.QueryFloat(fmt.Sprintf("C%d:OFST?", c.index))
}

func (c *Channel) SetOffset(v float64) error {
	return c.session.Writef("C%d:OFST %f", c.index, v)
}

// Skew 通道延迟校正 (s)，范围 ±100 ns
func (c *Channel) Skew() (float64, error) {
	return c.session.QueryFloat(fmt.Sprintf("C%d:SKEW?", c.index))
}

func (c *Channel) SetSkew(v float64) error {
	return c.session.Writef("C%d:SKEW %E", c.index, v)
}

// VoltsPerDiv 垂直档位 (V/div)
func (c *Channel) VoltsPerDiv() (float64, error) {
	return c.session.QueryFloat(fmt.Sprintf("C%d:VOLT_DIV?", c.index))
}

func (c *Channel) SetVoltsPerDiv(v float64) error {
	return c.session.Writef("C%d:VOLT_DIV %E", c.index, v)
}

// Measurements 返回 PAVA? ALL 的全部测量值，仪器未给出数值的项不在结果中
func (c *Channel) Measurements() (map[string]float64, error) {
	reply, err := c.session.Query(fmt.Sprintf("C%d:PAVA? ALL", c.index))
	if err != nil {
		return nil, err
	}
	return scpi.ParseNamedFields(reply), nil
}

// Waveform 读取当前采集的波形。数据和换算参数在同一次加锁中读取。
func (c *Channel) Waveform() (*waveform.Waveform, error) {
	var (
		raw                    []byte
		vOff, vDiv, rate, trig float64
	)

	err := c.session.Exclusive(func(tx *scpi.Tx) error {
		var err error
		if raw, err = tx.ReadBinary(fmt.Sprintf("C%d:WF? DAT2", c.index)); err != nil {
			return err
		}
		if vOff, err = tx.QueryFloat(fmt.Sprintf("C%d:OFST?", c.index)); err != nil {
			return err
		}
		if vDiv, err = tx.QueryFloat(fmt.Sprintf("C%d:VOLT_DIV?", c.index)); err != nil {
			return err
		}
		if rate, err = tx.QueryFloat("SARA?"); err != nil {
			return err
		}
		trig, err = tx.QueryFloat("TRDL?")
		return err
	})
	if err != nil {
		return nil, err
	}

	w, err := waveform.Decode(waveform.SignedCodes(raw), vDiv, vOff, rate, trig)
	if err != nil {
		return nil, err
	}

	monitor.WaveformTransfers.WithLabelValues(c.session.Name(), "download").Inc()
	return w, nil
}
