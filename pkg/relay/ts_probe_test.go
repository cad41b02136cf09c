// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package relay_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/asticode/go-astits"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/rtpreorder/pkg/relay"
	"github.com/q191201771/rtpreorder/pkg/rtprtcp"
)

const (
	testVideoPid = 0x100
	testPesCount = 20
)

// makeTs 生成包含testPesCount个视频PES的mpegts流
func makeTs(t *testing.T) []byte {
	var buf bytes.Buffer
	m := astits.NewMuxer(context.Background(), &buf)
	err := m.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: testVideoPid,
		StreamType:    astits.StreamTypeH264Video,
	})
	nazalog.Assert(nil, err)
	m.SetPCRPID(testVideoPid)
	_, err = m.WriteTables()
	nazalog.Assert(nil, err)

	for i := 0; i < testPesCount; i++ {
		md := &astits.MuxerData{
			PID: testVideoPid,
			PES: &astits.PESData{
				Header: &astits.PESHeader{
					OptionalHeader: &astits.PESOptionalHeader{
						MarkerBits:      2,
						PTSDTSIndicator: astits.PTSDTSIndicatorOnlyPTS,
						PTS:             &astits.ClockReference{Base: int64(i) * 3600},
					},
					StreamID: 0xe0,
				},
				Data: bytes.Repeat([]byte{byte(i)}, 1000),
			},
		}
		if i == 0 {
			md.AdaptationField = &astits.PacketAdaptationField{
				RandomAccessIndicator: true,
			}
		}
		_, err = m.WriteData(md)
		nazalog.Assert(nil, err)
	}
	return buf.Bytes()
}

// shuffleInWindow 每window个包内部逆序
func shuffleInWindow(pkts []rtprtcp.RtpPacket, window int) []rtprtcp.RtpPacket {
	out := make([]rtprtcp.RtpPacket, 0, len(pkts))
	for i := 0; i < len(pkts); i += window {
		end := i + window
		if end > len(pkts) {
			end = len(pkts)
		}
		for j := end - 1; j >= i; j-- {
			out = append(out, pkts[j])
		}
	}
	return out
}

func TestTsProbe(t *testing.T) {
	ts := makeTs(t)
	assert.Equal(t, 0, len(ts)%rtprtcp.TsPacketSize)

	packer := rtprtcp.NewRtpPacker(rtprtcp.NewRtpPackerPayloadMp2t(), 90000, 0x1234, func(option *rtprtcp.RtpPackerOption) {
		option.MaxPayloadSize = 7 * rtprtcp.TsPacketSize
		option.FirstSeq = 65530
	})
	pkts := packer.Pack(ts, 0)

	const window = 4
	q := rtprtcp.NewRtpPacketQueue()
	probe := relay.NewTsProbe()

	var lastSeq uint16
	delivered := 0
	feed := func(margin int) {
		for q.Size() > margin {
			pkt, err := q.Pop()
			assert.Equal(t, nil, err)
			if delivered > 0 {
				assert.Equal(t, lastSeq+1, pkt.Seq())
			}
			lastSeq = pkt.Seq()
			delivered++
			assert.Equal(t, nil, probe.Feed(pkt.Body()))
		}
	}
	for _, pkt := range shuffleInWindow(pkts, window) {
		assert.Equal(t, rtprtcp.PushResultAccepted, q.Push(pkt.Raw))
		feed(window)
	}
	feed(0)
	probe.Dispose()
	probe.Dispose()

	assert.Equal(t, len(pkts), delivered)

	stat := probe.Stat()
	assert.Equal(t, "", stat.LastErr)
	assert.Equal(t, true, stat.PatCount >= 1)
	assert.Equal(t, true, stat.PmtCount >= 1)
	assert.Equal(t, testPesCount, stat.PesCount)
	assert.Equal(t, uint8(astits.StreamTypeH264Video), stat.Streams[testVideoPid])
}
