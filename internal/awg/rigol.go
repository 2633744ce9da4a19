package awg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"instrument-control/internal/scpi"
	"instrument-control/internal/transport"
)

const (
	// NumChannels 输出通道数
	NumChannels = 2

	// DefaultPort Rigol 原始 SCPI 套接字端口
	DefaultPort = 5555
)

// 已知型号的最大任意波采样率
var maxSampleRates = []struct {
	model string
	rate  float64
}{
	{"DG1022Z", 20e6},
	{"DG1062Z", 60e6},
}

// RigolDG Rigol DG1000Z 系列信号源
type RigolDG struct {
	session       *scpi.Session
	maxSampleRate float64
	channels      [NumChannels]*Channel
}

// Dial 通过 TCP 连接信号源
func Dial(ctx context.Context, address string, timeout time.Duration, log *logrus.Logger) (*RigolDG, error) {
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

// New 在已建立的传输上创建驱动，查询 *IDN? 并按型号选择参数
func New(t transport.Transport, name string, log *logrus.Logger) (*RigolDG, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	session, err := scpi.Connect(t, name, log)
	if err != nil {
		return nil, err
	}

	dev := &RigolDG{session: session}
	ident := session.Identity()
	for _, m := range maxSampleRates {
		if strings.Contains(ident, m.model) {
			dev.maxSampleRate = m.rate
			break
		}
	}
	if dev.maxSampleRate == 0 {
		log.Warnf("未知信号源型号，不检查采样率上限: %s", ident)
	}

	for i := range dev.channels {
		dev.channels[i] = &Channel{
			session: session,
			index:   i + 1,
			maxRate: dev.maxSampleRate,
		}
	}
	return dev, nil
}

func (d *RigolDG) Identity() string {
	return d.session.Identity()
}

// MaxSampleRate 返回型号对应的最大采样率，未知型号为 0
func (d *RigolDG) MaxSampleRate() float64 {
	return d.maxSampleRate
}

// Channel 返回从 0 开始编号的通道
func (d *RigolDG) Channel(i int) (*Channel, error) {
	if i < 0 || i >= NumChannels {
		return nil, fmt.Errorf("%w: 通道编号 %d 超出范围 [0, %d)", scpi.ErrConfiguration, i, NumChannels)
	}
	return d.channels[i], nil
}

func (d *RigolDG) Channels() []*Channel {
	return d.channels[:]
}

// Coupled 通道耦合状态
func (d *RigolDG) Coupled() (bool, error) {
	return d.session.QueryState(":COUP?")
}

func (d *RigolDG) SetCoupled(on bool) error {
	return d.session.Writef("COUP %s", scpi.FormatState(on))
}

func (d *RigolDG) Close() error {
	return d.session.Close()
}
