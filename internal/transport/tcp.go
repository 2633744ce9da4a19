package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const terminator = "\n"

// Options TCP 连接参数
type Options struct {
	Timeout     time.Duration
	DefaultPort int
}

// TCP 通过原始 SCPI 套接字与仪器通信。
// 任一 I/O 失败后连接作废，后续调用返回 ErrBroken。
type TCP struct {
	addr    string
	pool    *Pool
	timeout time.Duration
}

// Dial 连接仪器。地址不带端口时使用 DefaultPort。
func Dial(ctx context.Context, address string, opts Options) (*TCP, error) {
	addr := address
	if _, _, err := net.SplitHostPort(address); err != nil {
		addr = net.JoinHostPort(address, strconv.Itoa(opts.DefaultPort))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	pool, err := NewPool(ctx, BackingOffTCPConnMaker(addr, timeout))
	if err != nil {
		return nil, err
	}

	return &TCP{
		addr:    addr,
		pool:    pool,
		timeout: timeout,
	}, nil
}

// Addr 返回实际连接的地址
func (t *TCP) Addr() string {
	return t.addr
}

func (t *TCP) Write(cmd string) (err error) {
	c, err := t.pool.Get()
	if err != nil {
		return err
	}
	defer func() { t.pool.ReturnWithError(c, err) }()

	return t.send(c, []byte(cmd+terminator))
}

func (t *TCP) Query(cmd string) (reply string, err error) {
	c, err := t.pool.Get()
	if err != nil {
		return "", err
	}
	defer func() { t.pool.ReturnWithError(c, err) }()

	if err = t.send(c, []byte(cmd+terminator)); err != nil {
		return "", err
	}
	return t.readLine(c)
}

func (t *TCP) WriteBinary(prefix string, payload []byte) (err error) {
	c, err := t.pool.Get()
	if err != nil {
		return err
	}
	defer func() { t.pool.ReturnWithError(c, err) }()

	block := EncodeBlock(payload)
	buf := make([]byte, 0, len(prefix)+len(block)+len(terminator))
	buf = append(buf, prefix...)
	buf = append(buf, block...)
	buf = append(buf, terminator...)
	return t.send(c, buf)
}

func (t *TCP) ReadBinary(cmd string) (data []byte, err error) {
	c, err := t.pool.Get()
	if err != nil {
		return nil, err
	}
	defer func() { t.pool.ReturnWithError(c, err) }()

	if err = t.send(c, []byte(cmd+terminator)); err != nil {
		return nil, err
	}

	c.SetReadDeadline(time.Now().Add(t.timeout))
	if data, err = ReadBlock(c.r); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	return data, nil
}

func (t *TCP) Close() error {
	return t.pool.Close()
}

func (t *TCP) send(c *Conn, data []byte) error {
	c.SetWriteDeadline(time.Now().Add(t.timeout))

	if _, err := c.Write(data); err != nil {
		return fmt.Errorf("发送失败 [%s]: %w", t.addr, err)
	}
	return nil
}

// readLine 读取一行应答，跳过上一次二进制应答留下的空行
func (t *TCP) readLine(c *Conn) (string, error) {
	c.SetReadDeadline(time.Now().Add(t.timeout))

	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("读取应答失败 [%s]: %w", t.addr, err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			return line, nil
		}
	}
}
