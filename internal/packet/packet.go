// internal/packet/packet.go

package packet

// 控制报文结构常量（抓包分析结果，与硬件固件逐字节对应）
const (
	FrameSize = 46 // 发送报文固定46字节

	// 字节布局: header(3) + command(7) + state(32) + reserved(1) + checksum(1) + footer(2)
	stateOffset    = 10
	reservedOffset = 42
	checksumOffset = 43
	footerOffset   = 44

	// 响应报文44字节以上即有效（不同固件版本返回8/14/33/44/46字节）
	MinResponseSize = 44
)

var (
	header      = []byte{0x02, 0x2d, 0x00}
	command     = []byte{0x43, 0x42, 0x01, 0x00, 0x00, 0x00, 0x00}
	respHeader  = []byte{0x02, 0x2c, 0x00}
	respCommand = []byte{0x53, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00}
	footer      = []byte{0x03, 0x00}
)

// Checksum 发送报文校验和：0~42字节异或
func Checksum(frame []byte) byte {
	var sum byte
	for i := 0; i < checksumOffset; i++ {
		sum ^= frame[i]
	}
	return sum
}

// ResponseChecksum 响应报文校验和：0~42字节异或后加0x03。
// 这是硬件的固有行为，与发送方向不对称，必须原样保留。
func ResponseChecksum(frame []byte) byte {
	return (Checksum(frame) + 0x03) & 0xFF
}

// newBaseFrame 创建基础报文（头部+命令字，状态字节全0）
func newBaseFrame() []byte {
	frame := make([]byte, FrameSize)
	copy(frame[0:3], header)
	copy(frame[3:10], command)
	return frame
}

// finalizeFrame 写入校验和与报文尾，完成报文
func finalizeFrame(frame []byte) []byte {
	frame[reservedOffset] = 0x00
	frame[checksumOffset] = Checksum(frame)
	copy(frame[footerOffset:], footer)
	return frame
}
