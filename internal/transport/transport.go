package transport

// Transport 是与仪器之间的单一命令通道
type Transport interface {
	// Write 发送一条文本命令，不等待应答
	Write(cmd string) error

	// Query 发送命令并读取一行文本应答
	Query(cmd string) (string, error)

	// WriteBinary 发送命令前缀加一个 IEEE 488.2 定长二进制块
	WriteBinary(prefix string, payload []byte) error

	// ReadBinary 发送命令并读取应答中的二进制块
	ReadBinary(cmd string) ([]byte, error)

	Close() error
}
