// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import (
	"math/rand"
	"time"
)

// RtpPacker 把一段数据拆分打包成序号连续的rtp包，用于测试和模拟发送端
type RtpPacker struct {
	payloadPacker IRtpPackerPayload
	clockRate     int
	ssrc          uint32
	option        RtpPackerOption

	seq uint16
}

type RtpPackerOption struct {
	MaxPayloadSize int
	PayloadType    uint8
	FirstSeq       uint16 // 初始seq，如果不设置，则随机产生
}

var defaultRtpPackerOption = RtpPackerOption{
	MaxPayloadSize: 1200,
	PayloadType:    RtpPayloadTypeMp2t,
}

type ModRtpPackerOption func(option *RtpPackerOption)

func NewRtpPacker(payloadPacker IRtpPackerPayload, clockRate int, ssrc uint32, modOptions ...ModRtpPackerOption) *RtpPacker {
	option := defaultRtpPackerOption
	option.FirstSeq = uint16(rand.Intn(65536))

	for _, fn := range modOptions {
		fn(&option)
	}

	return &RtpPacker{
		payloadPacker: payloadPacker,
		clockRate:     clockRate,
		ssrc:          ssrc,
		option:        option,
		seq:           option.FirstSeq,
	}
}

// Pack
//
// @param timestampMs: 绝对时间戳，单位毫秒，换算成clockRate后写入rtp包头
//
func (r *RtpPacker) Pack(in []byte, timestampMs int64) (out []RtpPacket) {
	payloads := r.payloadPacker.Pack(in, r.option.MaxPayloadSize)
	for i, payload := range payloads {
		h := MakeDefaultRtpHeader()
		if i == len(payloads)-1 {
			h.Mark = 1
		}
		h.PacketType = r.option.PayloadType
		h.Seq = r.genSeq()
		h.Timestamp = uint32(float64(timestampMs) * float64(r.clockRate) / 1000)
		h.Ssrc = r.ssrc
		out = append(out, MakeRtpPacket(h, payload))
	}
	return
}

func (r *RtpPacker) genSeq() (ret uint16) {
	ret = r.seq
	r.seq++
	return
}

// ---------------------------------------------------------------------------------------------------------------------

type IRtpPackerPayload interface {
	// Pack @param maxSize: rtp payload包体部分（不含包头）的最大大小
	//
	Pack(in []byte, maxSize int) (out [][]byte)
}

var (
	_ IRtpPackerPayload = &RtpPackerPayloadMp2t{}
	_ IRtpPackerPayload = &RtpPackerPayloadRaw{}
)

// TsPacketSize mpegts包的固定大小
const TsPacketSize = 188

// RtpPackerPayloadMp2t rfc2250 每个rtp包携带整数个ts包
type RtpPackerPayloadMp2t struct {
}

func NewRtpPackerPayloadMp2t() *RtpPackerPayloadMp2t {
	return &RtpPackerPayloadMp2t{}
}

func (r *RtpPackerPayloadMp2t) Pack(in []byte, maxSize int) (out [][]byte) {
	if len(in)%TsPacketSize != 0 {
		Log.Warnf("mpegts size not multiple of %d while packing. len(in)=%d", TsPacketSize, len(in))
	}
	n := maxSize / TsPacketSize
	if n == 0 {
		n = 1
	}
	return split(in, n*TsPacketSize)
}

// RtpPackerPayloadRaw 按maxSize切分，不关心内容
type RtpPackerPayloadRaw struct {
}

func NewRtpPackerPayloadRaw() *RtpPackerPayloadRaw {
	return &RtpPackerPayloadRaw{}
}

func (r *RtpPackerPayloadRaw) Pack(in []byte, maxSize int) (out [][]byte) {
	if maxSize <= 0 {
		return
	}
	return split(in, maxSize)
}

func split(in []byte, size int) (out [][]byte) {
	for len(in) > 0 {
		n := size
		if n > len(in) {
			n = len(in)
		}
		item := make([]byte, n)
		copy(item, in[:n])
		out = append(out, item)
		in = in[n:]
	}
	return
}

func init() {
	rand.Seed(time.Now().UnixNano())
}
