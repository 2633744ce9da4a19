package awg

import (
	"fmt"
	"strconv"

	"instrument-control/internal/scpi"
)

// Kind 标准波形类型
type Kind string

const (
	Sine   Kind = "SIN"
	Square Kind = "SQU"
)

// Shape 标准波形参数
type Shape struct {
	Frequency float64 // Hz
	Amplitude float64 // Vpp
	Offset    float64 // V
	Phase     float64 // 度
}

// DefaultShape 返回默认参数：1 kHz, 5 Vpp, 0 V 偏置, 0 度相位
func DefaultShape() Shape {
	return Shape{
		Frequency: 1000.0,
		Amplitude: 5.0,
		Offset:    0.0,
		Phase:     0.0,
	}
}

func (k Kind) valid() bool {
	return k == Sine || k == Square
}

// OutputConfig 当前输出描述，来自 :SOURn:APPL?
type OutputConfig struct {
	Kind string
	Shape
}

// parseOutputConfig 解析形如 "SIN,1000.0,5.0,0.0,0.0" 的应答
func parseOutputConfig(reply string) (OutputConfig, error) {
	fields := scpi.SplitQuoted(reply)
	if len(fields) < 5 {
		return OutputConfig{}, fmt.Errorf("%w: 期望 5 个字段，得到 %d: %q", scpi.ErrParse, len(fields), reply)
	}

	values := make([]float64, 4)
	for i := range values {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("%w: 字段 %d: %q", scpi.ErrParse, i+1, fields[i+1])
		}
		values[i] = v
	}

	return OutputConfig{
		Kind: fields[0],
		Shape: Shape{
			Frequency: values[0],
			Amplitude: values[1],
			Offset:    values[2],
			Phase:     values[3],
		},
	}, nil
}
