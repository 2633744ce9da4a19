package transport

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer 按收到的命令返回固定应答，并把收到的原始命令发到 received
func scriptedServer(t *testing.T, replies map[string]string) (net.Listener, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received := make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			received <- line
			if reply, ok := replies[line]; ok {
				conn.Write([]byte(reply))
			}
		}
	}()
	return ln, received
}

func TestTCPQueryAndBinary(t *testing.T) {
	ln, received := scriptedServer(t, map[string]string{
		"*IDN?\n": "TEST,MODEL,1\n",
		"WF?\n":   "C1:WF DAT2,#13a\nb\n\n",
		"SARA?\n": "SARA 1.00E+06Sa/s\n",
	})

	tcp, err := Dial(context.Background(), ln.Addr().String(), Options{Timeout: time.Second})
	require.NoError(t, err)
	defer tcp.Close()

	reply, err := tcp.Query("*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "TEST,MODEL,1", reply)

	data, err := tcp.ReadBinary("WF?")
	require.NoError(t, err)
	assert.Equal(t, []byte("a\nb"), data)

	// 二进制应答后残留的空行被跳过
	reply, err = tcp.Query("SARA?")
	require.NoError(t, err)
	assert.Equal(t, "SARA 1.00E+06Sa/s", reply)

	require.NoError(t, tcp.Write("OUTP1 ON"))
	require.NoError(t, tcp.WriteBinary(":SOUR1:TRAC:DATA:DAC16 VOLATILE,END,", []byte{0x01, 0x02}))

	got := []string{<-received, <-received, <-received, <-received, <-received}
	assert.Equal(t, "OUTP1 ON\n", got[3])
	assert.Equal(t, ":SOUR1:TRAC:DATA:DAC16 VOLATILE,END,#12\x01\x02\n", got[4])
}

func TestDialDefaultPort(t *testing.T) {
	ln, _ := scriptedServer(t, nil)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	tcp, err := Dial(context.Background(), "127.0.0.1", Options{Timeout: time.Second, DefaultPort: p})
	require.NoError(t, err)
	defer tcp.Close()

	assert.Equal(t, ln.Addr().String(), tcp.Addr())
}

func TestQueryTimeout(t *testing.T) {
	ln, _ := scriptedServer(t, nil)

	tcp, err := Dial(context.Background(), ln.Addr().String(), Options{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer tcp.Close()

	_, err = tcp.Query("SILENT?")
	assert.Error(t, err)
}

func TestMockReplies(t *testing.T) {
	m := NewMock().Reply("A?", "1", "2").Block("WF?", []byte{1, 2, 3})

	r, err := m.Query("A?")
	require.NoError(t, err)
	assert.Equal(t, "1", r)

	r, _ = m.Query("A?")
	assert.Equal(t, "2", r)
	r, _ = m.Query("A?")
	assert.Equal(t, "2", r)

	data, err := m.ReadBinary("WF?")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = m.Query("B?")
	assert.Error(t, err)
	assert.Equal(t, []string{"A?", "A?", "A?", "WF?", "B?"}, m.Commands())
}

func TestDialWaitsForListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	accepted := make(chan struct{})
	go func() {
		time.Sleep(200 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		defer ln.Close()
		conn, err := ln.Accept()
		if err == nil {
			close(accepted)
			conn.Close()
		}
	}()

	tcp, err := Dial(context.Background(), addr, Options{Timeout: 3 * time.Second})
	require.NoError(t, err)
	defer tcp.Close()

	select {
	case <-accepted:
	case <-time.After(3 * time.Second):
		t.Fatal("listener never accepted")
	}
}

func TestDialUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	start := time.Now()
	_, err = Dial(context.Background(), addr, Options{Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBrokenConnectionIsNotReused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		r := bufio.NewReader(conn)
		r.ReadString('\n')
		conn.Write([]byte("FIRST\n"))
		r.ReadString('\n')
		conn.Close()
	}()

	tcp, err := Dial(context.Background(), ln.Addr().String(), Options{Timeout: time.Second})
	require.NoError(t, err)
	defer tcp.Close()

	reply, err := tcp.Query("A?")
	require.NoError(t, err)
	assert.Equal(t, "FIRST", reply)

	_, err = tcp.Query("B?")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBroken)

	_, err = tcp.Query("C?")
	assert.ErrorIs(t, err, ErrBroken)
	assert.ErrorIs(t, tcp.Write("D"), ErrBroken)
}

func TestCloseRejectsFurtherCommands(t *testing.T) {
	ln, _ := scriptedServer(t, nil)

	tcp, err := Dial(context.Background(), ln.Addr().String(), Options{Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, tcp.Close())
	require.NoError(t, tcp.Close())

	assert.ErrorIs(t, tcp.Write("OUTP1 ON"), ErrClosed)
}
