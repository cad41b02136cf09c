// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/rtpreorder/pkg/base"
)

// RtcpRrLength 只带一个report block的rr包的字节长度
const RtcpRrLength = 32

// Rr 只带一个report block的receiver report
type Rr struct {
	SenderSsrc  uint32
	MediaSsrc   uint32
	Fraction    uint8
	Lost        uint32 // 24b
	ExtendedSeq uint32 // cycles<<16 | max seq
	Jitter      uint32
	Lsr         uint32
	Dlsr        uint32
}

func (r *Rr) Pack() []byte {
	const lenInWords = RtcpRrLength / 4

	b := make([]byte, RtcpRrLength)

	var h RtcpHeader
	h.Version = RtcpVersion
	h.Padding = 0
	h.CountOrFormat = 1
	h.PacketType = RtcpPacketTypeRr
	h.Length = lenInWords - 1
	h.PackTo(b)

	bele.BePutUint32(b[4:], r.SenderSsrc)
	bele.BePutUint32(b[8:], r.MediaSsrc)
	b[12] = r.Fraction
	bele.BePutUint24(b[13:], r.Lost&0xFFFFFF)
	bele.BePutUint32(b[16:], r.ExtendedSeq)
	bele.BePutUint32(b[20:], r.Jitter)
	bele.BePutUint32(b[24:], r.Lsr)
	bele.BePutUint32(b[28:], r.Dlsr)

	return b
}

// ParseRr 解析rr包的第一个report block
func ParseRr(b []byte) (r Rr, err error) {
	h, err := ParseRtcpHeader(b)
	if err != nil {
		return
	}
	if h.CountOrFormat == 0 {
		if len(b) < 8 {
			err = base.NewErrRtpRtcpShortBuffer(8, len(b))
			return
		}
		r.SenderSsrc = bele.BeUint32(b[4:])
		return
	}
	if len(b) < RtcpRrLength {
		err = base.NewErrRtpRtcpShortBuffer(RtcpRrLength, len(b))
		return
	}
	r.SenderSsrc = bele.BeUint32(b[4:])
	r.MediaSsrc = bele.BeUint32(b[8:])
	r.Fraction = b[12]
	r.Lost = bele.BeUint24(b[13:])
	r.ExtendedSeq = bele.BeUint32(b[16:])
	r.Jitter = bele.BeUint32(b[20:])
	r.Lsr = bele.BeUint32(b[24:])
	r.Dlsr = bele.BeUint32(b[28:])
	return
}
