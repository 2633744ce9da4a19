package transport

import (
	"fmt"
	"sync"
)

// BinaryWrite 记录一次 WriteBinary 调用
type BinaryWrite struct {
	Prefix  string
	Payload []byte
}

// Mock 是按命令预置应答的 Transport，用于测试
type Mock struct {
	mu      sync.Mutex
	replies map[string][]string
	blocks  map[string][]byte
	failOn  map[string]error

	// Log 按顺序记录所有发出的命令（含查询和二进制前缀）
	Log    []string
	Binary []BinaryWrite
	Closed bool
}

func NewMock() *Mock {
	return &Mock{
		replies: make(map[string][]string),
		blocks:  make(map[string][]byte),
		failOn:  make(map[string]error),
	}
}

// Reply 为查询预置应答。多个应答依次返回，最后一个会一直保留。
func (m *Mock) Reply(cmd string, replies ...string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[cmd] = append(m.replies[cmd], replies...)
	return m
}

// Block 为 ReadBinary 预置二进制数据
func (m *Mock) Block(cmd string, data []byte) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[cmd] = data
	return m
}

// Fail 使指定命令返回错误
func (m *Mock) Fail(cmd string, err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[cmd] = err
	return m
}

// Commands 返回已发出命令的副本
func (m *Mock) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Log...)
}

func (m *Mock) Write(cmd string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Log = append(m.Log, cmd)
	return m.failOn[cmd]
}

func (m *Mock) Query(cmd string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Log = append(m.Log, cmd)
	if err := m.failOn[cmd]; err != nil {
		return "", err
	}

	queue := m.replies[cmd]
	if len(queue) == 0 {
		return "", fmt.Errorf("mock: 未预置应答: %s", cmd)
	}
	reply := queue[0]
	if len(queue) > 1 {
		m.replies[cmd] = queue[1:]
	}
	return reply, nil
}

func (m *Mock) WriteBinary(prefix string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Log = append(m.Log, prefix)
	m.Binary = append(m.Binary, BinaryWrite{
		Prefix:  prefix,
		Payload: append([]byte(nil), payload...),
	})
	return m.failOn[prefix]
}

func (m *Mock) ReadBinary(cmd string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Log = append(m.Log, cmd)
	if err := m.failOn[cmd]; err != nil {
		return nil, err
	}

	data, ok := m.blocks[cmd]
	if !ok {
		return nil, fmt.Errorf("mock: 未预置二进制数据: %s", cmd)
	}
	return data, nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
