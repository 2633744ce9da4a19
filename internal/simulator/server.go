package simulator

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"instrument-control/internal/config"
)

// Instrument 模拟仪器对单条命令的处理。
// 返回 nil 表示该命令没有应答。
type Instrument interface {
	Identity() string
	Handle(cmd string, block []byte) ([]byte, error)
}

// Server 在 TCP 上模拟一台仪器的原始 SCPI 套接字
type Server struct {
	config     config.SimulatorConfig
	instrument Instrument
	listener   net.Listener
	log        *logrus.Logger
	limiter    chan struct{}
	wg         sync.WaitGroup
	shutdown   chan struct{}
	closeOnce  sync.Once
}

func NewServer(cfg config.SimulatorConfig, inst Instrument, log *logrus.Logger) *Server {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}

	return &Server{
		config:     cfg,
		instrument: inst,
		log:        log,
		limiter:    make(chan struct{}, cfg.MaxConnections),
		shutdown:   make(chan struct{}),
	}
}

// Listen 绑定监听地址，端口为 0 时由系统分配
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))

	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("监听失败: %w", err)
	}

	s.listener = listener
	s.log.Infof("模拟器启动成功: %s (%s)", listener.Addr(), s.instrument.Identity())
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start 监听并处理连接，直到 Close 被调用
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve 接受连接
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
				s.log.Errorf("接受连接错误: %v", err)
				continue
			}
		}

		// 连接数限制
		select {
		case s.limiter <- struct{}{}:
			s.wg.Add(1)
			go s.handleConnection(conn)
		default:
			s.log.Warn("达到最大连接数，拒绝连接")
			conn.Close()
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		<-s.limiter
		s.wg.Done()
	}()

	h := NewConnectionHandler(conn, s.instrument, s.log, s.config.ReadTimeout, s.shutdown)
	h.Handle()
}

// Close 停止接受新连接并等待现有连接结束（最多30秒）
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdown)

		if s.listener != nil {
			err = s.listener.Close()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			s.log.Info("所有连接已关闭")
		case <-time.After(30 * time.Second):
			s.log.Warn("关闭超时，强制退出")
		}
	})
	return err
}
