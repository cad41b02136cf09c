// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/rtpreorder/pkg/base"
	"github.com/q191201771/rtpreorder/pkg/rtprtcp"
)

func makeRaw(seq uint16, payload string) []byte {
	h := rtprtcp.MakeDefaultRtpHeader()
	h.PacketType = 96
	h.Seq = seq
	return rtprtcp.MakeRtpPacket(h, []byte(payload)).Raw
}

func popAll(t *testing.T, q *rtprtcp.RtpPacketQueue) (seqs []uint16, bodies []string) {
	for q.Size() > 0 {
		pkt, err := q.Pop()
		assert.Equal(t, nil, err)
		seqs = append(seqs, pkt.Seq())
		bodies = append(bodies, string(pkt.Body()))
	}
	return
}

func TestRtpPacketQueue_Order(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue()
	for _, seq := range []uint16{5, 3, 4, 1, 2} {
		assert.Equal(t, rtprtcp.PushResultAccepted, q.Push(makeRaw(seq, string(rune('a'+seq)))))
	}
	assert.Equal(t, 5, q.Size())

	pkt, err := q.Peek()
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(1), pkt.Seq())
	assert.Equal(t, 5, q.Size())

	seqs, bodies := popAll(t, q)
	assert.Equal(t, []uint16{1, 2, 3, 4, 5}, seqs)
	assert.Equal(t, []string{"b", "c", "d", "e", "f"}, bodies)
	assert.Equal(t, 0, q.Size())

	seq, ok := q.LastDeliveredSeq()
	assert.Equal(t, true, ok)
	assert.Equal(t, uint16(5), seq)
}

func TestRtpPacketQueue_Wraparound(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue()
	for _, seq := range []uint16{65534, 1, 65535, 0, 2, 65533} {
		assert.Equal(t, rtprtcp.PushResultAccepted, q.Push(makeRaw(seq, "")))
	}
	seqs, _ := popAll(t, q)
	assert.Equal(t, []uint16{65533, 65534, 65535, 0, 1, 2}, seqs)

	// 翻转后，翻转前的序号都算迟到
	assert.Equal(t, rtprtcp.PushResultStale, q.Push(makeRaw(65535, "")))
	assert.Equal(t, rtprtcp.PushResultAccepted, q.Push(makeRaw(3, "")))
}

func TestRtpPacketQueue_Duplicate(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue()
	assert.Equal(t, rtprtcp.PushResultAccepted, q.Push(makeRaw(7, "first")))
	assert.Equal(t, rtprtcp.PushResultAccepted, q.Push(makeRaw(8, "eight")))
	assert.Equal(t, rtprtcp.PushResultDuplicate, q.Push(makeRaw(7, "second")))
	assert.Equal(t, rtprtcp.PushResultDuplicate, q.Push(makeRaw(8, "again")))
	assert.Equal(t, 2, q.Size())

	_, bodies := popAll(t, q)
	assert.Equal(t, []string{"first", "eight"}, bodies)

	stat := q.Stat()
	assert.Equal(t, uint64(4), stat.Pushed)
	assert.Equal(t, uint64(2), stat.Accepted)
	assert.Equal(t, uint64(2), stat.Duplicate)
	assert.Equal(t, uint64(2), stat.Popped)
}

func TestRtpPacketQueue_Stale(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue()

	// 从来没有弹出过时，任何序号都不算迟到
	assert.Equal(t, false, q.IsStale(0))
	_, ok := q.LastDeliveredSeq()
	assert.Equal(t, false, ok)

	q.Push(makeRaw(10, ""))
	q.Push(makeRaw(12, ""))
	pkt, err := q.Pop()
	assert.Equal(t, nil, err)
	assert.Equal(t, uint16(10), pkt.Seq())
	assert.Equal(t, 1, q.Size())

	assert.Equal(t, rtprtcp.PushResultStale, q.Push(makeRaw(10, "")))
	assert.Equal(t, rtprtcp.PushResultStale, q.Push(makeRaw(9, "")))
	assert.Equal(t, rtprtcp.PushResultStale, q.Push(makeRaw(0, "")))
	assert.Equal(t, rtprtcp.PushResultStale, q.Push(makeRaw(65535, "")))
	assert.Equal(t, 1, q.Size())
	assert.Equal(t, uint64(4), q.Stat().Stale)

	// 比已交付的新，虽然比队列中的旧，也可以插入
	assert.Equal(t, rtprtcp.PushResultAccepted, q.Push(makeRaw(11, "")))
	seqs, _ := popAll(t, q)
	assert.Equal(t, []uint16{11, 12}, seqs)
}

func TestRtpPacketQueue_Capacity(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue(func(option *rtprtcp.RtpPacketQueueOption) {
		option.Capacity = 4
	})
	assert.Equal(t, 4, q.Capacity())

	for i := 1; i <= 10; i++ {
		assert.Equal(t, rtprtcp.PushResultAccepted, q.Push(makeRaw(uint16(i), "")))
		assert.Equal(t, true, q.Size() <= 4)
	}
	assert.Equal(t, 4, q.Size())
	assert.Equal(t, uint64(6), q.Stat().Evicted)

	seqs, _ := popAll(t, q)
	assert.Equal(t, []uint16{7, 8, 9, 10}, seqs)
}

func TestRtpPacketQueue_CapacityEvictInserted(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue(func(option *rtprtcp.RtpPacketQueueOption) {
		option.Capacity = 3
	})
	q.Push(makeRaw(10, ""))
	q.Push(makeRaw(20, ""))
	q.Push(makeRaw(30, ""))

	// 最旧的包插入到队尾，然后立即被丢弃
	assert.Equal(t, rtprtcp.PushResultAccepted, q.Push(makeRaw(5, "")))
	assert.Equal(t, 3, q.Size())

	// 插入到中间，丢弃的是原来的队尾
	assert.Equal(t, rtprtcp.PushResultAccepted, q.Push(makeRaw(15, "")))
	seqs, _ := popAll(t, q)
	assert.Equal(t, []uint16{15, 20, 30}, seqs)
	assert.Equal(t, uint64(2), q.Stat().Evicted)
}

func TestRtpPacketQueue_InvalidCapacity(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue(func(option *rtprtcp.RtpPacketQueueOption) {
		option.Capacity = 0
	})
	assert.Equal(t, base.RtpPacketQueueDefaultCapacity, q.Capacity())
}

func TestRtpPacketQueue_Empty(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue()
	assert.Equal(t, 0, q.Size())

	_, err := q.Pop()
	assert.Equal(t, base.ErrRtpPacketQueueEmpty, err)
	_, err = q.Peek()
	assert.Equal(t, base.ErrRtpPacketQueueEmpty, err)

	// 空队列上的错误调用不改变交付状态
	_, ok := q.LastDeliveredSeq()
	assert.Equal(t, false, ok)
	assert.Equal(t, uint64(0), q.Stat().Popped)

	q.Push(makeRaw(100, ""))
	q.Push(makeRaw(101, ""))
	popAll(t, q)
	assert.Equal(t, 0, q.Size())
	_, err = q.Pop()
	assert.Equal(t, base.ErrRtpPacketQueueEmpty, err)
}

func TestRtpPacketQueue_Invalid(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue()
	assert.Equal(t, rtprtcp.PushResultInvalid, q.Push([]byte{0x80, 0x60, 0x00}))
	assert.Equal(t, rtprtcp.PushResultInvalid, q.Push([]byte{0x40, 0x60, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0}))
	assert.Equal(t, 0, q.Size())
	assert.Equal(t, uint64(2), q.Stat().Invalid)
	assert.Equal(t, uint64(2), q.Stat().Pushed)
}

func TestRtpPacketQueue_CopyOnPush(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue()

	// 模拟调用方复用同一块接收内存
	buf := makeRaw(1, "aaaa")
	q.Push(buf)
	copy(buf, makeRaw(2, "bbbb"))
	q.Push(buf)

	_, bodies := popAll(t, q)
	assert.Equal(t, []string{"aaaa", "bbbb"}, bodies)
}

func TestRtpPacketQueue_Insert(t *testing.T) {
	q := rtprtcp.NewRtpPacketQueue()
	pkt, err := rtprtcp.ParseRtpPacket(makeRaw(42, "x"))
	nazalog.Assert(nil, err)
	assert.Equal(t, rtprtcp.PushResultAccepted, q.Insert(pkt))
	assert.Equal(t, rtprtcp.PushResultDuplicate, q.Insert(pkt))
	assert.Equal(t, 1, q.Size())
}

func TestRtpPacketQueue_Random(t *testing.T) {
	r := rand.New(rand.NewSource(20221019))

	for round := 0; round < 20; round++ {
		q := rtprtcp.NewRtpPacketQueue(func(option *rtprtcp.RtpPacketQueueOption) {
			option.Capacity = 4096
		})

		// 基准点随机，窗口跨越翻转点的情况也会覆盖到
		baseSeq := uint16(r.Intn(65536))
		pushed := make(map[uint16]bool)
		for i := 0; i < 2000; i++ {
			seq := baseSeq + uint16(r.Intn(3000))
			res := q.Push(makeRaw(seq, ""))
			if pushed[seq] {
				assert.Equal(t, rtprtcp.PushResultDuplicate, res)
			} else {
				assert.Equal(t, rtprtcp.PushResultAccepted, res)
			}
			pushed[seq] = true
		}
		assert.Equal(t, len(pushed), q.Size())

		seqs, _ := popAll(t, q)
		for i := 1; i < len(seqs); i++ {
			assert.Equal(t, true, rtprtcp.SeqPrecedes(seqs[i-1], seqs[i]), fmt.Sprint(seqs[i-1], " ", seqs[i]))
		}
	}
}

func TestRtpPacketQueue_RandomWithPop(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	q := rtprtcp.NewRtpPacketQueue(func(option *rtprtcp.RtpPacketQueueOption) {
		option.Capacity = 64
	})

	// 模拟有抖动的流：序号整体递增并跨越翻转点，每个包的到达位置在前后若干范围内随机
	var delivered []uint16
	next := uint16(60000)
	for i := 0; i < 20000; i++ {
		seq := next + uint16(r.Intn(16))
		q.Push(makeRaw(seq, ""))
		next++
		assert.Equal(t, true, q.Size() <= 64)

		if q.Size() > 32 {
			pkt, err := q.Pop()
			assert.Equal(t, nil, err)
			delivered = append(delivered, pkt.Seq())
		}
	}
	seqs, _ := popAll(t, q)
	delivered = append(delivered, seqs...)

	for i := 1; i < len(delivered); i++ {
		assert.Equal(t, true, rtprtcp.SeqPrecedes(delivered[i-1], delivered[i]))
	}
}
