package scope

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"instrument-control/internal/scpi"
	"instrument-control/internal/transport"
)

const (
	// NumChannels 输入通道数
	NumChannels = 2

	// DefaultPort Siglent 原始 SCPI 套接字端口
	DefaultPort = 5025
)

var phaseExpr = regexp.MustCompile(`PHA,([+-]?\d+(?:\.\d+)?)degree`)

// SiglentSDS Siglent SDS 系列示波器
type SiglentSDS struct {
	session  *scpi.Session
	channels [NumChannels]*Channel
}

// Dial 通过 TCP 连接示波器
func Dial(ctx context.Context, address string, timeout time.Duration, log *logrus.Logger) (*SiglentSDS, error) {
	t, err := transport.Dial(ctx, address, transport.Options{
		Timeout:     timeout,
		DefaultPort: DefaultPort,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scpi.ErrConnection, err)
	}

	dev, err := New(t, address, log)
	if err != nil {
		t.Close()
		return nil, err
	}
	return dev, nil
}

// New 在已建立的传输上创建驱动
func New(t transport.Transport, name string, log *logrus.Logger) (*SiglentSDS, error) {
	session, err := scpi.Connect(t, name, log)
	if err != nil {
		return nil, err
	}

	dev := &SiglentSDS{session: session}
	for i := range dev.channels {
		dev.channels[i] = &Channel{session: session, index: i + 1}
	}
	return dev, nil
}

func (d *SiglentSDS) Identity() string {
	return d.session.Identity()
}

// Channel 返回从 0 开始编号的通道
func (d *SiglentSDS) Channel(i int) (*Channel, error) {
	if i < 0 || i >= NumChannels {
		return nil, fmt.Errorf("%w: 通道编号 %d 超出范围 [0, %d)", scpi.ErrConfiguration, i, NumChannels)
	}
	return d.channels[i], nil
}

func (d *SiglentSDS) Channels() []*Channel {
	return d.channels[:]
}

// SampleRate 当前采样率 (Sa/s)
func (d *SiglentSDS) SampleRate() (float64, error) {
	return d.session.QueryFloat("SARA?")
}

// TriggerOffset 触发延迟 (s)
func (d *SiglentSDS) TriggerOffset() (float64, error) {
	return d.session.QueryFloat("TRDL?")
}

func (d *SiglentSDS) SetTriggerOffset(v float64) error {
	return d.session.Writef("TRDL %E", v)
}

// TimeDiv 水平档位 (s/div)
func (d *SiglentSDS) TimeDiv() (float64, error) {
	return d.session.QueryFloat("TDIV?")
}

func (d *SiglentSDS) SetTimeDiv(v float64) error {
	return d.session.Writef("TDIV %E", v)
}

// WaveformSetup 返回 WFSU? 应答按空白拆分后的字段
func (d *SiglentSDS) WaveformSetup() ([]string, error) {
	reply, err := d.session.Query("WFSU?")
	if err != nil {
		return nil, err
	}
	return strings.Fields(reply), nil
}

// PhaseDelay 测量 CH1 与 CH2 的相位差（度）
func (d *SiglentSDS) PhaseDelay() (float64, error) {
	const cmd = "C1-C2:MEAD? PHA"
	reply, err := d.session.Query(cmd)
	if err != nil {
		return 0, err
	}

	v, err := parsePhaseDelay(reply)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", cmd, err)
	}
	return v, nil
}

// TimeDelay 测量 CH1 与 CH2 的时间差（秒）
func (d *SiglentSDS) TimeDelay() (float64, error) {
	return d.session.QueryFloat("C1-C2:MEAD? FRR")
}

func (d *SiglentSDS) Close() error {
	return d.session.Close()
}

func parsePhaseDelay(reply string) (float64, error) {
	m := phaseExpr.FindStringSubmatch(reply)
	if m == nil {
		return 0, fmt.Errorf("%w: 缺少 PHA 字段: %q", scpi.ErrParse, reply)
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", scpi.ErrParse, m[1])
	}
	return v, nil
}
