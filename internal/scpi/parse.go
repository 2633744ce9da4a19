package scpi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// 小数点是必需的，否则 "C1:OFST 1.00E+00V" 会先匹配到通道号
	sciExpr = regexp.MustCompile(`[+-]?\d+\.\d+(?:[eE][+-]?\d+)?`)

	fieldExpr = regexp.MustCompile(`([A-Z]{3,}),([+-]?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?)`)
)

// ParseScientific 提取应答中第一个科学计数法数值
func ParseScientific(reply string) (float64, error) {
	m := sciExpr.FindString(reply)
	if m == "" {
		return 0, fmt.Errorf("%w: 未找到数值: %q", ErrParse, reply)
	}

	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrParse, m, err)
	}
	return v, nil
}

// ParseNamedFields 解析重复的 NAME,VALUE 对。没有匹配时返回空 map，不是错误。
func ParseNamedFields(reply string) map[string]float64 {
	fields := make(map[string]float64)
	for _, m := range fieldExpr.FindAllStringSubmatch(reply, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		fields[m[1]] = v
	}
	return fields
}

// ParseState 解析 ON/OFF 应答
func ParseState(reply string) (bool, error) {
	switch {
	case strings.Contains(reply, "OFF"):
		return false, nil
	case strings.Contains(reply, "ON"):
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnrecognizedState, strings.TrimSpace(reply))
	}
}

// FormatState 返回开关命令使用的字面量
func FormatState(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// SplitQuoted 去掉引号和空白后按逗号拆分
func SplitQuoted(reply string) []string {
	s := strings.TrimSpace(reply)
	s = strings.Trim(s, "\"")
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
