// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"fmt"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/rtpreorder/pkg/base"
)

// -----------------------------------
// rfc3550 5.1 RTP Fixed Header Fields
// -----------------------------------
//
// 0                   1                   2                   3
// 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |V=2|P|X|  CC   |M|     PT      |       sequence number         |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                           timestamp                           |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |           synchronization source (SSRC) identifier            |
// +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
// |            contributing source (CSRC) identifiers             |
// |                             ....                              |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// rfc3550 5.3.1 RTP Header Extension
//
// 0                   1                   2                   3
// 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |      defined by profile       |           length              |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                        header extension                       |
// |                             ....                              |

const (
	RtpFixedHeaderLength = 12

	DefaultRtpVersion = 2

	// RtpPayloadTypeMp2t rfc3551 MP2T
	RtpPayloadTypeMp2t = 33
)

// rtp包头中序号字段的偏移
const rtpSeqOffset = 2

type RtpHeader struct {
	Version    uint8  // 2b  *
	Padding    uint8  // 1b
	Extension  uint8  // 1
	CsrcCount  uint8  // 4b
	Mark       uint8  // 1b  *
	PacketType uint8  // 7b
	Seq        uint16 // 16b **
	Timestamp  uint32 // 32b **** samples
	Ssrc       uint32 // 32b **** Synchronization source

	payloadOffset uint32
	paddingLength uint32
}

// RtpPacket 一个完整的rtp包
//
// Raw持有的内存块归RtpPacket所有，不引用调用方传入的内存
//
type RtpPacket struct {
	Header RtpHeader
	Raw    []byte // 包含header内存
}

func (h *RtpHeader) PackTo(out []byte) {
	out[0] = h.CsrcCount | (h.Extension << 4) | (h.Padding << 5) | (h.Version << 6)
	out[1] = h.PacketType | (h.Mark << 7)
	bele.BePutUint16(out[2:], h.Seq)
	bele.BePutUint32(out[4:], h.Timestamp)
	bele.BePutUint32(out[8:], h.Ssrc)
}

func MakeDefaultRtpHeader() RtpHeader {
	return RtpHeader{
		Version:       DefaultRtpVersion,
		payloadOffset: RtpFixedHeaderLength,
	}
}

// MakeRtpPacket 使用固定包头（不含csrc和extension）加payload构造rtp包
func MakeRtpPacket(h RtpHeader, payload []byte) (pkt RtpPacket) {
	pkt.Header = h
	pkt.Header.CsrcCount = 0
	pkt.Header.Extension = 0
	pkt.Header.Padding = 0
	pkt.Header.payloadOffset = RtpFixedHeaderLength
	pkt.Raw = make([]byte, RtpFixedHeaderLength+len(payload))
	pkt.Header.PackTo(pkt.Raw)
	copy(pkt.Raw[RtpFixedHeaderLength:], payload)
	return
}

// ReadRtpSeq 从rtp包中读取序号，只检查长度，不解析其他字段
func ReadRtpSeq(b []byte) (uint16, error) {
	if len(b) < RtpFixedHeaderLength {
		return 0, base.NewErrRtpRtcpShortBuffer(RtpFixedHeaderLength, len(b))
	}
	return bele.BeUint16(b[rtpSeqOffset:]), nil
}

// ParseRtpHeader 解析rtp包头，包含csrc、extension、padding的长度计算
//
func ParseRtpHeader(b []byte) (h RtpHeader, err error) {
	if len(b) < RtpFixedHeaderLength {
		err = base.NewErrRtpRtcpShortBuffer(RtpFixedHeaderLength, len(b))
		return
	}

	h.Version = b[0] >> 6
	h.Padding = (b[0] >> 5) & 0x1
	h.Extension = (b[0] >> 4) & 0x1
	h.CsrcCount = b[0] & 0xF
	h.Mark = b[1] >> 7
	h.PacketType = b[1] & 0x7F
	h.Seq = bele.BeUint16(b[2:])
	h.Timestamp = bele.BeUint32(b[4:])
	h.Ssrc = bele.BeUint32(b[8:])

	if h.Version != DefaultRtpVersion {
		err = fmt.Errorf("%w. version=%d", base.ErrRtpVersion, h.Version)
		return
	}

	offset := uint32(RtpFixedHeaderLength) + uint32(h.CsrcCount)*4
	if h.Extension == 1 {
		if uint32(len(b)) < offset+4 {
			err = base.NewErrRtpRtcpShortBuffer(int(offset+4), len(b))
			return
		}
		extLength := uint32(bele.BeUint16(b[offset+2:]))
		offset += 4 + extLength*4
	}
	if uint32(len(b)) < offset {
		err = base.NewErrRtpRtcpShortBuffer(int(offset), len(b))
		return
	}
	h.payloadOffset = offset

	if h.Padding == 1 {
		if uint32(len(b)) == offset {
			err = base.NewErrRtpRtcpShortBuffer(int(offset+1), len(b))
			return
		}
		h.paddingLength = uint32(b[len(b)-1])
		if h.paddingLength == 0 || offset+h.paddingLength > uint32(len(b)) {
			err = fmt.Errorf("%w. padding=%d, len=%d", base.ErrRtpRtcpShortBuffer, h.paddingLength, len(b))
			return
		}
	}
	return
}

// ParseRtpPacket 函数调用结束后，不持有参数<b>的内存块
func ParseRtpPacket(b []byte) (pkt RtpPacket, err error) {
	pkt.Header, err = ParseRtpHeader(b)
	if err != nil {
		return
	}
	pkt.Raw = make([]byte, len(b))
	copy(pkt.Raw, b)
	return
}

// Seq 包的序号，等价于Header.Seq
func (p *RtpPacket) Seq() uint16 {
	return p.Header.Seq
}

// Len 包的字节长度（包含包头）
func (p *RtpPacket) Len() int {
	return len(p.Raw)
}

// Body 去除包头和padding后的payload，引用Raw的内存
func (p *RtpPacket) Body() []byte {
	return p.Raw[p.Header.payloadOffset : uint32(len(p.Raw))-p.Header.paddingLength]
}

func (p *RtpPacket) DebugString() string {
	return fmt.Sprintf("seq=%d, ts=%d, pt=%d, ssrc=%d, mark=%d, len=%d",
		p.Header.Seq, p.Header.Timestamp, p.Header.PacketType, p.Header.Ssrc, p.Header.Mark, len(p.Raw))
}
