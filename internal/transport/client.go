// internal/transport/client.go

package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"backend/internal/logger"
	"backend/internal/types"
)

const (
	dialTimeout = 3 * time.Second
	readTimeout = 5 * time.Second
	recvBufSize = 1024
)

// Client 广播主机的TCP客户端。
// 每次发送都新建连接（嵌入式接收端要求每条命令重新握手），
// 不做连接池。重试策略由调用方决定，这里只做单次投递。
type Client struct {
	mu         sync.Mutex
	targetIP   string
	targetPort int
	doubleSend bool // 状态报文路径连发两次，对抗链路不稳定的接收端
	sent       int
}

// NewClient 创建TCP客户端
func NewClient(targetIP string, targetPort int, doubleSend bool) *Client {
	return &Client{
		targetIP:   targetIP,
		targetPort: targetPort,
		doubleSend: doubleSend,
	}
}

func (c *Client) addr() string {
	return fmt.Sprintf("%s:%d", c.targetIP, c.targetPort)
}

// Send 发送报文并读取响应。doubleSend开启时在同一连接上连发两次，
// 返回最后一次的响应。发送失败返回TransportError。
func (c *Client) Send(frame []byte) ([]byte, error) {
	writes := 1
	if c.doubleSend {
		writes = 2
	}
	return c.send(frame, writes)
}

// SendOnce 单次发送（状态探测等尽力而为的路径使用）
func (c *Client) SendOnce(frame []byte) ([]byte, error) {
	return c.send(frame, 1)
}

func (c *Client) send(frame []byte, writes int) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", c.addr(), dialTimeout)
	if err != nil {
		return nil, &types.TransportError{Op: "connect", Err: err}
	}
	defer conn.Close()

	var last []byte
	buf := make([]byte, recvBufSize)
	for i := 0; i < writes; i++ {
		if _, err := conn.Write(frame); err != nil {
			return nil, &types.TransportError{Op: "write", Err: err}
		}
		logger.Debug("报文发送 %d/%d: %d 字节 -> %s", i+1, writes, len(frame), c.addr())

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := conn.Read(buf)
		if err != nil {
			// 响应超时不算发送失败，硬件偶尔不回包
			logger.Warn("响应读取超时 %d/%d: %v", i+1, writes, err)
			continue
		}
		if n > 0 {
			last = make([]byte, n)
			copy(last, buf[:n])
			logger.Debug("响应接收: % x", last)
		}
	}

	c.mu.Lock()
	c.sent++
	c.mu.Unlock()
	return last, nil
}

// TestConnection 连接探测：建立连接后立即关闭，不发送任何数据
func (c *Client) TestConnection() bool {
	conn, err := net.DialTimeout("tcp", c.addr(), dialTimeout)
	if err != nil {
		logger.Warn("连接测试失败 %s: %v", c.addr(), err)
		return false
	}
	_ = conn.Close()
	return true
}

// PacketsSent 已成功发送的报文数
func (c *Client) PacketsSent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// Target 目标地址
func (c *Client) Target() (string, int) {
	return c.targetIP, c.targetPort
}
