// internal/packet/parser.go

package packet

import (
	"bytes"
	"sort"

	"backend/internal/types"
)

// Parser 状态报文解析器。
// 同时支持回显（发送方向）和状态响应两种帧格式，
// 两者使用不同的校验和规则。任何校验失败都返回空集合加错误，
// 绝不返回猜测的部分状态。
type Parser struct {
	strategy AddressingStrategy
}

// NewParser 创建报文解析器
func NewParser(strategy AddressingStrategy) *Parser {
	return &Parser{strategy: strategy}
}

// Validate 校验报文的长度、头部、命令字、校验和与报文尾
func (p *Parser) Validate(frame []byte) error {
	if len(frame) < MinResponseSize {
		return types.NewProtocolError("报文长度 %d 字节，至少需要 %d 字节", len(frame), MinResponseSize)
	}

	var isResponse bool
	switch {
	case bytes.Equal(frame[0:3], header):
		isResponse = false
	case bytes.Equal(frame[0:3], respHeader):
		isResponse = true
	default:
		return types.NewProtocolError("头部不匹配: % x", frame[0:3])
	}

	expectedCommand := command
	if isResponse {
		expectedCommand = respCommand
	}
	if !bytes.Equal(frame[3:10], expectedCommand) {
		return types.NewProtocolError("命令字不匹配: % x", frame[3:10])
	}

	var expected byte
	if isResponse {
		expected = ResponseChecksum(frame)
	} else {
		expected = Checksum(frame)
	}
	if frame[checksumOffset] != expected {
		return types.NewProtocolError("校验和不匹配: 计算值 %02x, 报文值 %02x", expected, frame[checksumOffset])
	}

	// 44字节帧以0x03结尾，46字节帧以03 00结尾
	if len(frame) == MinResponseSize {
		if frame[MinResponseSize-1] != 0x03 {
			return types.NewProtocolError("报文尾不匹配: %02x", frame[MinResponseSize-1])
		}
	} else {
		if !bytes.Equal(frame[footerOffset:footerOffset+2], footer) {
			return types.NewProtocolError("报文尾不匹配: % x", frame[footerOffset:footerOffset+2])
		}
	}
	return nil
}

// DecodeStatus 解析状态报文，返回激活的房间号列表（升序）。
// 校验失败时返回空列表加ProtocolError。
func (p *Parser) DecodeStatus(frame []byte) ([]int, error) {
	if err := p.Validate(frame); err != nil {
		return nil, err
	}

	rooms := make([]int, 0, types.Total)
	for row := 1; row <= types.Rows; row++ {
		for col := 1; col <= types.Cols; col++ {
			z := types.Zone{Row: row, Col: col}
			bytePos, bitPos, ok := p.strategy.Position(z)
			if !ok || bytePos >= len(frame) {
				continue
			}
			if frame[bytePos]&(1<<bitPos) != 0 {
				rooms = append(rooms, z.RoomID())
			}
		}
	}
	sort.Ints(rooms)
	return rooms, nil
}
