package simulator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"instrument-control/internal/monitor"
	"instrument-control/internal/transport"
)

type ConnectionHandler struct {
	conn        net.Conn
	peer        string
	instrument  Instrument
	log         *logrus.Logger
	readTimeout time.Duration
	shutdown    <-chan struct{}
}

func NewConnectionHandler(
	conn net.Conn,
	inst Instrument,
	log *logrus.Logger,
	readTimeout time.Duration,
	shutdown <-chan struct{},
) *ConnectionHandler {
	return &ConnectionHandler{
		conn:        conn,
		peer:        conn.RemoteAddr().String(),
		instrument:  inst,
		log:         log,
		readTimeout: readTimeout,
		shutdown:    shutdown,
	}
}

// Handle 处理连接，直到对端关闭或模拟器停止
func (h *ConnectionHandler) Handle() {
	defer func() {
		h.conn.Close()
		monitor.ActiveConnections.Dec()
		h.log.Infof("连接关闭: %s", h.peer)
	}()

	monitor.ActiveConnections.Inc()
	monitor.TotalConnections.Inc()
	h.log.Infof("新连接: %s", h.peer)

	reader := bufio.NewReaderSize(h.conn, 64*1024)

	for {
		cmd, block, err := h.readCommand(reader)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				select {
				case <-h.shutdown:
					return
				default:
					continue
				}
			}
			if !errors.Is(err, io.EOF) {
				h.log.Debugf("连接断开: %s, 错误: %v", h.peer, err)
			}
			return
		}

		if cmd == "" {
			continue
		}
		h.process(cmd, block)
	}
}

func (h *ConnectionHandler) process(cmd string, block []byte) {
	h.log.Debugf("<- [%s] %s", h.peer, cmd)

	reply, err := h.instrument.Handle(cmd, block)
	if err != nil {
		h.log.Warnf("命令处理失败 [%s]: %v", h.peer, err)
		return
	}
	if reply == nil {
		return
	}

	if err := h.SendResponse(reply); err != nil {
		h.log.Warnf("%v", err)
	}
}

// readCommand 读取一条以换行结尾的命令。
// 命令中出现 '#' 时按 IEEE 488.2 定长块读取二进制数据。
func (h *ConnectionHandler) readCommand(r *bufio.Reader) (string, []byte, error) {
	h.conn.SetReadDeadline(time.Now().Add(h.readTimeout))

	var (
		sb    strings.Builder
		block []byte
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", nil, err
		}

		// 收到第一个字节后重新计时
		if sb.Len() == 0 && block == nil {
			h.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		}

		switch {
		case b == '\n':
			return strings.TrimRight(sb.String(), "\r"), block, nil
		case b == '#' && block == nil:
			if err := r.UnreadByte(); err != nil {
				return "", nil, err
			}
			block, err = transport.ReadBlock(r)
			if err != nil {
				return "", nil, fmt.Errorf("读取二进制块失败: %w", err)
			}
		default:
			sb.WriteByte(b)
		}
	}
}

// SendResponse 发送应答
func (h *ConnectionHandler) SendResponse(data []byte) error {
	h.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	n, err := h.conn.Write(data)
	if err != nil {
		return fmt.Errorf("发送响应失败: %w", err)
	}

	h.log.Debugf("发送响应 [%s]: %d 字节", h.peer, n)
	return nil
}
