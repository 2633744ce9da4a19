package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// MaxBlockSize 单个二进制块的长度上限：14 Mpts 的 16 位数据再加余量
const MaxBlockSize = 14_000_000*2 + 1024

// ErrIndefiniteBlock 原始套接字上无法区分 #0 块的数据和结束符
var ErrIndefiniteBlock = errors.New("不支持不定长块 (#0)")

// EncodeBlock 按 #<n><len><data> 格式封装二进制数据
func EncodeBlock(payload []byte) []byte {
	length := strconv.Itoa(len(payload))
	header := fmt.Sprintf("#%d%s", len(length), length)

	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	return append(out, payload...)
}

// ReadBlock 跳过块头之前的文本，读取一个定长二进制块。
// 长度字段必须全为数字且不超过 MaxBlockSize。
func ReadBlock(r *bufio.Reader) ([]byte, error) {
	if _, err := r.ReadBytes('#'); err != nil {
		return nil, fmt.Errorf("读取块头失败: %w", err)
	}

	digit, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("读取块头失败: %w", err)
	}
	if digit < '0' || digit > '9' {
		return nil, fmt.Errorf("块头格式错误: %q", digit)
	}

	n := int(digit - '0')
	if n == 0 {
		return nil, ErrIndefiniteBlock
	}

	lenBuf := make([]byte, n)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("读取块长度失败: %w", err)
	}

	length := 0
	for _, c := range lenBuf {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("块长度格式错误: %q", lenBuf)
		}
		length = length*10 + int(c-'0')
		if length > MaxBlockSize {
			return nil, fmt.Errorf("块长度超出上限 %d: %q", MaxBlockSize, lenBuf)
		}
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("读取块数据失败: %w", err)
	}
	return data, nil
}
