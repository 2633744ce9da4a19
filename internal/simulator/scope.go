package simulator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"instrument-control/internal/transport"
)

// DefaultScopeIdentity 模拟示波器的 *IDN? 应答
const DefaultScopeIdentity = "Siglent Technologies,SDS1202X-E,SDSMMEBX000001,1.3.26"

var scopeUnits = map[string]string{
	"OFST":     "V",
	"SKEW":     "S",
	"VOLT_DIV": "V",
}

type scopeChannel struct {
	trace        bool
	offset       float64
	skew         float64
	voltsPerDiv  float64
	measurements map[string]float64
	codes        []int8
}

// Scope 模拟 Siglent SDS 示波器
type Scope struct {
	mu         sync.Mutex
	identity   string
	sampleRate float64
	trigDelay  float64
	timeDiv    float64
	phase      float64
	timeDelay  float64
	channels   []*scopeChannel
	commands   *CommandTable
}

func NewScope(identity string) *Scope {
	if identity == "" {
		identity = DefaultScopeIdentity
	}

	s := &Scope{
		identity:   identity,
		sampleRate: 1e6,
		timeDiv:    1e-3,
		phase:      90,
		timeDelay:  2.5e-4,
	}
	for i := 0; i < 2; i++ {
		s.channels = append(s.channels, &scopeChannel{
			trace:       true,
			voltsPerDiv: 1,
			measurements: map[string]float64{
				"FREQ": 1000,
				"PKPK": 2,
			},
			codes: sineCodes(1000, 50, 100),
		})
	}

	s.commands = NewCommandTable([]Command{
		{Pattern: "*IDN?", Callback: s.idnQ},
		{Pattern: "SARA?", Callback: s.globalQ("SARA", "Sa/s", &s.sampleRate)},
		{Pattern: "TRDL?", Callback: s.globalQ("TRDL", "S", &s.trigDelay)},
		{Pattern: "TRDL", Callback: s.global(&s.trigDelay)},
		{Pattern: "TDIV?", Callback: s.globalQ("TDIV", "S", &s.timeDiv)},
		{Pattern: "TDIV", Callback: s.global(&s.timeDiv)},
		{Pattern: "WFSU?", Callback: s.setupQ},
		{Pattern: "C#-C#:MEAD?", Callback: s.measureDelayQ},
		{Pattern: "C#:TRAce?", Callback: s.traceQ},
		{Pattern: "C#:TRAce", Callback: s.trace},
		{Pattern: "C#:OFST?", Callback: s.fieldQ("OFST")},
		{Pattern: "C#:OFST", Callback: s.field("OFST")},
		{Pattern: "C#:SKEW?", Callback: s.fieldQ("SKEW")},
		{Pattern: "C#:SKEW", Callback: s.field("SKEW")},
		{Pattern: "C#:VOLT_DIV?", Callback: s.fieldQ("VOLT_DIV")},
		{Pattern: "C#:VOLT_DIV", Callback: s.field("VOLT_DIV")},
		{Pattern: "C#:PAVA?", Callback: s.parameterValueQ},
		{Pattern: "C#:WF?", Callback: s.waveformQ},
	})
	return s
}

// SetWaveform 设置通道返回的采集数据，ch 从 1 开始
func (s *Scope) SetWaveform(ch int, codes []int8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch-1].codes = append([]int8(nil), codes...)
}

// SetMeasurements 设置 PAVA? ALL 返回的测量值
func (s *Scope) SetMeasurements(ch int, values map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch-1].measurements = values
}

// SetDelays 设置 CH1-CH2 的相位差（度）和时间差（秒）
func (s *Scope) SetDelays(phase, timeDelay float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase, s.timeDelay = phase, timeDelay
}

func (s *Scope) SetSampleRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = rate
}

func (s *Scope) Identity() string {
	return s.identity
}

func (s *Scope) Handle(cmd string, block []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands.Execute(cmd, block)
}

func (s *Scope) channel(ctx *Context) (int, *scopeChannel, error) {
	n := ctx.CommandNumber(0)
	if n < 1 || n > len(s.channels) {
		return 0, nil, fmt.Errorf("通道编号无效: %d", n)
	}
	return n, s.channels[n-1], nil
}

func (s *Scope) idnQ(*Context) ([]byte, error) {
	return line(s.identity), nil
}

func (s *Scope) globalQ(name, unit string, v *float64) Callback {
	return func(*Context) ([]byte, error) {
		return line(fmt.Sprintf("%s %.2E%s", name, *v, unit)), nil
	}
}

func (s *Scope) global(v *float64) Callback {
	return func(ctx *Context) ([]byte, error) {
		f, err := ctx.ParamDouble()
		if err != nil {
			return nil, err
		}
		*v = f
		return nil, nil
	}
}

func (s *Scope) setupQ(*Context) ([]byte, error) {
	return line("WFSU SP,0,NP,0,FP,0"), nil
}

// measureDelayQ 只支持 C1-C2 的 PHA 和 FRR
func (s *Scope) measureDelayQ(ctx *Context) ([]byte, error) {
	if ctx.CommandNumber(0) != 1 || ctx.CommandNumber(1) != 2 {
		return nil, fmt.Errorf("不支持的通道组合: C%d-C%d", ctx.CommandNumber(0), ctx.CommandNumber(1))
	}
	kind, err := ctx.ParamChoice("PHA", "FRR")
	if err != nil {
		return nil, err
	}

	if kind == "PHA" {
		return line(fmt.Sprintf("C1-C2:MEAD PHA,%.3fdegree", s.phase)), nil
	}
	return line(fmt.Sprintf("C1-C2:MEAD FRR,%.2ES", s.timeDelay)), nil
}

func (s *Scope) traceQ(ctx *Context) ([]byte, error) {
	n, ch, err := s.channel(ctx)
	if err != nil {
		return nil, err
	}
	return line(fmt.Sprintf("C%d:TRA %s", n, onOff(ch.trace))), nil
}

func (s *Scope) trace(ctx *Context) ([]byte, error) {
	_, ch, err := s.channel(ctx)
	if err != nil {
		return nil, err
	}
	on, err := ctx.ParamBool()
	if err != nil {
		return nil, err
	}
	ch.trace = on
	return nil, nil
}

func (s *Scope) fieldQ(name string) Callback {
	return func(ctx *Context) ([]byte, error) {
		n, ch, err := s.channel(ctx)
		if err != nil {
			return nil, err
		}
		return line(fmt.Sprintf("C%d:%s %.2E%s", n, name, *ch.field(name), scopeUnits[name])), nil
	}
}

func (s *Scope) field(name string) Callback {
	return func(ctx *Context) ([]byte, error) {
		_, ch, err := s.channel(ctx)
		if err != nil {
			return nil, err
		}
		v, err := ctx.ParamDouble()
		if err != nil {
			return nil, err
		}
		*ch.field(name) = v
		return nil, nil
	}
}

func (s *Scope) parameterValueQ(ctx *Context) ([]byte, error) {
	n, ch, err := s.channel(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.ParamChoice("ALL"); err != nil {
		return nil, err
	}
	return line(fmt.Sprintf("C%d:PAVA %s", n, formatFields(ch.measurements))), nil
}

func (s *Scope) waveformQ(ctx *Context) ([]byte, error) {
	n, ch, err := s.channel(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := ctx.ParamChoice("DAT2"); err != nil {
		return nil, err
	}

	data := make([]byte, len(ch.codes))
	for i, c := range ch.codes {
		data[i] = byte(c)
	}

	reply := []byte(fmt.Sprintf("C%d:WF DAT2,", n))
	reply = append(reply, transport.EncodeBlock(data)...)
	return append(reply, '\n', '\n'), nil
}

func (c *scopeChannel) field(name string) *float64 {
	switch name {
	case "OFST":
		return &c.offset
	case "SKEW":
		return &c.skew
	default:
		return &c.voltsPerDiv
	}
}

// formatFields 按名称排序输出 NAME,VALUE 对
func formatFields(values map[string]float64) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s,%.3E", name, values[name]))
	}
	return strings.Join(parts, ",")
}

// sineCodes 生成 n 点、每周期 period 点、幅度 amp 级的正弦码值
func sineCodes(n int, amp float64, period int) []int8 {
	codes := make([]int8, n)
	for i := range codes {
		codes[i] = int8(math.Round(amp * math.Sin(2*math.Pi*float64(i)/float64(period))))
	}
	return codes
}
