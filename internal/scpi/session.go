package scpi

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"instrument-control/internal/monitor"
	"instrument-control/internal/transport"
)

// Session 是一台仪器的共享命令通道。
// 仪器所有通道复用同一条命令流，每次往返都持有互斥锁。
type Session struct {
	mu       sync.Mutex
	t        transport.Transport
	name     string
	identity string
	log      *logrus.Logger
}

// Connect 建立会话并查询 *IDN?
func Connect(t transport.Transport, name string, log *logrus.Logger) (*Session, error) {
	s := NewSession(t, name, log)

	ident, err := s.Query("*IDN?")
	if err != nil {
		return nil, fmt.Errorf("%w: *IDN? 查询失败: %v", ErrConnection, err)
	}
	s.identity = strings.TrimSpace(ident)

	s.log.Infof("仪器已连接 [%s]: %s", name, s.identity)
	return s, nil
}

// NewSession 创建会话，不查询身份
func NewSession(t transport.Transport, name string, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{t: t, name: name, log: log}
}

// Identity 返回连接时获得的 *IDN? 字符串
func (s *Session) Identity() string {
	return s.identity
}

func (s *Session) Name() string {
	return s.name
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Close()
}

// Exclusive 在持锁状态下执行一组命令，期间其他调用方的命令不会插入
func (s *Session) Exclusive(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

func (s *Session) Write(cmd string) error {
	return s.Exclusive(func(tx *Tx) error {
		return tx.Write(cmd)
	})
}

func (s *Session) Writef(format string, args ...interface{}) error {
	return s.Write(fmt.Sprintf(format, args...))
}

func (s *Session) Query(cmd string) (reply string, err error) {
	err = s.Exclusive(func(tx *Tx) error {
		reply, err = tx.Query(cmd)
		return err
	})
	return reply, err
}

func (s *Session) QueryFloat(cmd string) (v float64, err error) {
	err = s.Exclusive(func(tx *Tx) error {
		v, err = tx.QueryFloat(cmd)
		return err
	})
	return v, err
}

func (s *Session) QueryState(cmd string) (on bool, err error) {
	err = s.Exclusive(func(tx *Tx) error {
		on, err = tx.QueryState(cmd)
		return err
	})
	return on, err
}

func (s *Session) WriteBinary(prefix string, payload []byte) error {
	return s.Exclusive(func(tx *Tx) error {
		return tx.WriteBinary(prefix, payload)
	})
}

func (s *Session) ReadBinary(cmd string) (data []byte, err error) {
	err = s.Exclusive(func(tx *Tx) error {
		data, err = tx.ReadBinary(cmd)
		return err
	})
	return data, err
}

// Tx 是持锁期间的命令句柄，只在 Exclusive 回调内有效
type Tx struct {
	s *Session
}

func (tx *Tx) Write(cmd string) error {
	tx.s.log.Debugf("-> [%s] %s", tx.s.name, cmd)

	start := time.Now()
	err := tx.s.t.Write(cmd)
	monitor.ObserveCommand(tx.s.name, "write", start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

func (tx *Tx) Writef(format string, args ...interface{}) error {
	return tx.Write(fmt.Sprintf(format, args...))
}

func (tx *Tx) Query(cmd string) (string, error) {
	tx.s.log.Debugf("-> [%s] %s", tx.s.name, cmd)

	start := time.Now()
	reply, err := tx.s.t.Query(cmd)
	monitor.ObserveCommand(tx.s.name, "query", start, err)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cmd, err)
	}

	tx.s.log.Debugf("<- [%s] %s", tx.s.name, strings.TrimSpace(reply))
	return reply, nil
}

// QueryFloat 查询并提取科学计数法数值
func (tx *Tx) QueryFloat(cmd string) (float64, error) {
	reply, err := tx.Query(cmd)
	if err != nil {
		return 0, err
	}

	v, err := ParseScientific(reply)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", cmd, err)
	}
	return v, nil
}

// QueryState 查询 ON/OFF 状态
func (tx *Tx) QueryState(cmd string) (bool, error) {
	reply, err := tx.Query(cmd)
	if err != nil {
		return false, err
	}

	on, err := ParseState(reply)
	if err != nil {
		return false, fmt.Errorf("%s: %w", cmd, err)
	}
	return on, nil
}

func (tx *Tx) WriteBinary(prefix string, payload []byte) error {
	tx.s.log.Debugf("-> [%s] %s<%d bytes>", tx.s.name, prefix, len(payload))

	start := time.Now()
	err := tx.s.t.WriteBinary(prefix, payload)
	monitor.ObserveCommand(tx.s.name, "binary_write", start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}

	monitor.BytesSent.Add(float64(len(payload)))
	return nil
}

func (tx *Tx) ReadBinary(cmd string) ([]byte, error) {
	tx.s.log.Debugf("-> [%s] %s", tx.s.name, cmd)

	start := time.Now()
	data, err := tx.s.t.ReadBinary(cmd)
	monitor.ObserveCommand(tx.s.name, "binary_read", start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}

	monitor.BytesReceived.Add(float64(len(data)))
	tx.s.log.Debugf("<- [%s] <%d bytes>", tx.s.name, len(data))
	return data, nil
}
