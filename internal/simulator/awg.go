package simulator

import (
	"fmt"
	"sync"

	"instrument-control/internal/waveform"
)

// DefaultAWGIdentity 模拟信号源的 *IDN? 应答
const DefaultAWGIdentity = "Rigol Technologies,DG1062Z,DG1ZA000000001,00.01.14"

type awgChannel struct {
	output    bool
	kind      string
	frequency float64
	amplitude float64
	offset    float64
	phase     float64
	rate      float64
	high      float64
	low       float64

	pending []uint16
	arb     []uint16
	tags    []string
}

// AWG 模拟 Rigol DG1000Z 信号源
type AWG struct {
	mu       sync.Mutex
	identity string
	coupled  bool
	channels []*awgChannel
	commands *CommandTable
}

func NewAWG(identity string) *AWG {
	if identity == "" {
		identity = DefaultAWGIdentity
	}

	a := &AWG{identity: identity}
	for i := 0; i < 2; i++ {
		a.channels = append(a.channels, &awgChannel{
			kind:      "SIN",
			frequency: 1000,
			amplitude: 5,
			rate:      1e6,
			high:      2.5,
			low:       -2.5,
		})
	}

	a.commands = NewCommandTable([]Command{
		{Pattern: "*IDN?", Callback: a.idnQ},
		{Pattern: "OUTPut#?", Callback: a.outputQ},
		{Pattern: "OUTPut#", Callback: a.output},
		{Pattern: "COUPling?", Callback: a.couplingQ},
		{Pattern: "COUPling", Callback: a.coupling},
		{Pattern: "SOURce#:APPLy?", Callback: a.applyQ},
		{Pattern: "SOURce#:APPLy:SINusoid", Callback: a.applyShape("SIN")},
		{Pattern: "SOURce#:APPLy:SQUare", Callback: a.applyShape("SQU")},
		{Pattern: "SOURce#:APPLy:ARBitrary", Callback: a.applyArb},
		{Pattern: "SOURce#:FUNCtion:ARBitrary:SRATe?", Callback: a.rateQ},
		{Pattern: "SOURce#:FUNCtion:ARBitrary:SRATe", Callback: a.rate},
		{Pattern: "SOURce#:VOLTage?", Callback: a.voltQ(amplitudeField)},
		{Pattern: "SOURce#:VOLTage", Callback: a.volt(amplitudeField)},
		{Pattern: "SOURce#:VOLTage:OFFSet?", Callback: a.voltQ(offsetField)},
		{Pattern: "SOURce#:VOLTage:OFFSet", Callback: a.volt(offsetField)},
		{Pattern: "SOURce#:VOLTage:HIGH?", Callback: a.voltQ(highField)},
		{Pattern: "SOURce#:VOLTage:HIGH", Callback: a.volt(highField)},
		{Pattern: "SOURce#:VOLTage:LOW?", Callback: a.voltQ(lowField)},
		{Pattern: "SOURce#:VOLTage:LOW", Callback: a.volt(lowField)},
		{Pattern: "SOURce#:TRACe:DATA:DAC16", Callback: a.traceData},
	})
	return a
}

func (a *AWG) Identity() string {
	return a.identity
}

// ArbData 返回通道最近一次完整接收的任意波码值，ch 从 1 开始
func (a *AWG) ArbData(ch int) []uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint16(nil), a.channels[ch-1].arb...)
}

// ArbTags 返回通道收到的分块标记序列
func (a *AWG) ArbTags(ch int) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.channels[ch-1].tags...)
}

func (a *AWG) Handle(cmd string, block []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commands.Execute(cmd, block)
}

func (a *AWG) channel(ctx *Context) (*awgChannel, error) {
	n := ctx.CommandNumber(0)
	if n < 1 || n > len(a.channels) {
		return nil, fmt.Errorf("通道编号无效: %d", n)
	}
	return a.channels[n-1], nil
}

func (a *AWG) idnQ(*Context) ([]byte, error) {
	return line(a.identity), nil
}

func (a *AWG) outputQ(ctx *Context) ([]byte, error) {
	ch, err := a.channel(ctx)
	if err != nil {
		return nil, err
	}
	return line(onOff(ch.output)), nil
}

func (a *AWG) output(ctx *Context) ([]byte, error) {
	ch, err := a.channel(ctx)
	if err != nil {
		return nil, err
	}
	on, err := ctx.ParamBool()
	if err != nil {
		return nil, err
	}
	ch.output = on
	return nil, nil
}

func (a *AWG) couplingQ(*Context) ([]byte, error) {
	return line(onOff(a.coupled)), nil
}

func (a *AWG) coupling(ctx *Context) ([]byte, error) {
	on, err := ctx.ParamBool()
	if err != nil {
		return nil, err
	}
	a.coupled = on
	return nil, nil
}

func (a *AWG) applyQ(ctx *Context) ([]byte, error) {
	ch, err := a.channel(ctx)
	if err != nil {
		return nil, err
	}
	return line(fmt.Sprintf("\"%s,%.6E,%.6E,%.6E,%.6E\"",
		ch.kind, ch.frequency, ch.amplitude, ch.offset, ch.phase)), nil
}

// applyShape 处理 APPLy:<kind> freq,amp,offset,phase
func (a *AWG) applyShape(kind string) Callback {
	return func(ctx *Context) ([]byte, error) {
		ch, err := a.channel(ctx)
		if err != nil {
			return nil, err
		}

		var values [4]float64
		for i := range values {
			if values[i], err = ctx.ParamDouble(); err != nil {
				return nil, err
			}
		}

		ch.kind = kind
		ch.frequency, ch.amplitude, ch.offset, ch.phase = values[0], values[1], values[2], values[3]
		ch.high = ch.offset + ch.amplitude/2
		ch.low = ch.offset - ch.amplitude/2
		return nil, nil
	}
}

func (a *AWG) applyArb(ctx *Context) ([]byte, error) {
	ch, err := a.channel(ctx)
	if err != nil {
		return nil, err
	}
	ch.kind = "ARB"
	return nil, nil
}

func (a *AWG) rateQ(ctx *Context) ([]byte, error) {
	ch, err := a.channel(ctx)
	if err != nil {
		return nil, err
	}
	return line(fmt.Sprintf("%.6E", ch.rate)), nil
}

func (a *AWG) rate(ctx *Context) ([]byte, error) {
	ch, err := a.channel(ctx)
	if err != nil {
		return nil, err
	}
	v, err := ctx.ParamDouble()
	if err != nil {
		return nil, err
	}
	ch.rate = v
	return nil, nil
}

type voltField int

const (
	amplitudeField voltField = iota
	offsetField
	highField
	lowField
)

func (a *AWG) voltQ(field voltField) Callback {
	return func(ctx *Context) ([]byte, error) {
		ch, err := a.channel(ctx)
		if err != nil {
			return nil, err
		}
		return line(fmt.Sprintf("%.6E", *ch.volt(field))), nil
	}
}

func (a *AWG) volt(field voltField) Callback {
	return func(ctx *Context) ([]byte, error) {
		ch, err := a.channel(ctx)
		if err != nil {
			return nil, err
		}
		v, err := ctx.ParamDouble()
		if err != nil {
			return nil, err
		}
		*ch.volt(field) = v
		return nil, nil
	}
}

// traceData 处理 TRACe:DATA:DAC16 VOLATILE,{CON|END},<block>
func (a *AWG) traceData(ctx *Context) ([]byte, error) {
	ch, err := a.channel(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.ParamChoice("VOLATILE"); err != nil {
		return nil, err
	}
	tag, err := ctx.ParamChoice(string(waveform.TagContinue), string(waveform.TagEnd))
	if err != nil {
		return nil, err
	}

	ch.pending = append(ch.pending, waveform.UnpackDAC16(ctx.Block())...)
	ch.tags = append(ch.tags, tag)
	if tag == string(waveform.TagEnd) {
		ch.arb, ch.pending = ch.pending, nil
	}
	return nil, nil
}

func (c *awgChannel) volt(field voltField) *float64 {
	switch field {
	case offsetField:
		return &c.offset
	case highField:
		return &c.high
	case lowField:
		return &c.low
	default:
		return &c.amplitude
	}
}

func line(s string) []byte {
	return []byte(s + "\n")
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
