package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrBroken 连接在一次 I/O 失败后被丢弃，不会重建
	ErrBroken = errors.New("连接已失效")
	ErrClosed = errors.New("连接已关闭")
)

// ConnMaker 建立一条到仪器的连接
type ConnMaker func(ctx context.Context) (net.Conn, error)

// BackingOffTCPConnMaker 在 timeout 内按指数退避反复拨号，
// 适用于刚上电、网口尚未就绪的仪器。
func BackingOffTCPConnMaker(addr string, timeout time.Duration) ConnMaker {
	return func(ctx context.Context) (net.Conn, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 50 * time.Millisecond
		b.MaxInterval = time.Second
		b.MaxElapsedTime = timeout

		var (
			conn    net.Conn
			lastErr error
		)
		d := net.Dialer{Timeout: timeout}
		err := backoff.Retry(func() error {
			c, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				lastErr = err
				return err
			}
			conn = c
			return nil
		}, backoff.WithContext(b, ctx))
		if err != nil {
			if lastErr != nil {
				err = lastErr
			}
			return nil, fmt.Errorf("连接 %s 失败: %w", addr, err)
		}
		return conn, nil
	}
}

// Conn 是池中的连接，附带读缓冲
type Conn struct {
	net.Conn
	r *bufio.Reader
}

// Pool 持有到仪器的唯一连接。
// Get 取出连接期间其它调用方阻塞；ReturnWithError 带错误归还时连接被关闭。
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	conn   *Conn
	inUse  bool
	broken error
	closed bool
}

// NewPool 用 maker 立即建立连接
func NewPool(ctx context.Context, maker ConnMaker) (*Pool, error) {
	c, err := maker(ctx)
	if err != nil {
		return nil, err
	}

	p := &Pool{conn: &Conn{Conn: c, r: bufio.NewReaderSize(c, 64*1024)}}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

func (p *Pool) Get() (*Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.inUse {
		p.cond.Wait()
	}
	switch {
	case p.closed:
		return nil, ErrClosed
	case p.broken != nil:
		return nil, fmt.Errorf("%w: %v", ErrBroken, p.broken)
	}

	p.inUse = true
	return p.conn, nil
}

// ReturnWithError 归还连接。err 非空时连接作废。
func (p *Pool) ReturnWithError(c *Conn, err error) {
	if c == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.inUse = false
	if err != nil && p.broken == nil && !p.closed {
		p.broken = err
		c.Close()
	}
	p.cond.Signal()
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.cond.Broadcast()

	if p.broken != nil {
		return nil
	}
	return p.conn.Close()
}
