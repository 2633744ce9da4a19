package scpi

import "errors"

// 错误分类，调用方通过 errors.Is 判断
var (
	// ErrConnection 仪器不可达或 *IDN? 查询失败
	ErrConnection = errors.New("仪器连接失败")

	// ErrUnrecognizedState 开关类应答既不含 ON 也不含 OFF
	ErrUnrecognizedState = errors.New("无法识别的仪器状态")

	// ErrParse 数值或字段提取失败
	ErrParse = errors.New("应答解析失败")

	// ErrInvalidWaveform 空波形或零幅度波形
	ErrInvalidWaveform = errors.New("无效波形")

	// ErrConfiguration 在任何 I/O 之前发现的参数错误
	ErrConfiguration = errors.New("配置错误")
)
