// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package rtprtcp

import "github.com/q191201771/rtpreorder/pkg/base"

// RtpPacketQueue 按rtp序号排序的包队列，用于把乱序、重复、迟到的rtp包整理成按序号递增的顺序交付
//
// 队头存放最新的包，队尾存放最旧的包，从队头到队尾按序号（考虑翻转）递减。
// Pop从队尾弹出，所以弹出的包序号是递增的。
//
// 以下三种情况会丢包，只打日志和计数，不返回错误：
//   - 迟到：序号小于等于最后一次弹出的包的序号
//   - 重复：队列中已经存在相同序号的包，保留原来的包
//   - 溢出：插入后超过容量，从队尾（最旧）开始丢弃，可能丢掉的正是刚插入的包
//
// 为什么不用红黑树等查找性能更高的有序结构？
// 插入时绝大多数序号都在当前最大序号附近，从队头开始遍历很快就能找到位置，
// 遍历的开销与乱序程度相关，与队列长度无关。
//
// 注意，非并发安全，调用方负责串行化Push和Pop的调用。
//
type RtpPacketQueue struct {
	uniqueKey string
	option    RtpPacketQueueOption

	// 哨兵，自身不存放rtp包。head.next是队头（最新），head.prev是队尾（最旧）
	head rtpPacketQueueItem
	size int

	deliveredFlag bool   // 是否弹出过包
	deliveredSeq  uint16 // 最后一次弹出的包的序号，deliveredFlag为true时才有意义

	stat RtpPacketQueueStat
}

type rtpPacketQueueItem struct {
	packet RtpPacket
	prev   *rtpPacketQueueItem
	next   *rtpPacketQueueItem
}

type RtpPacketQueueOption struct {
	// Capacity 队列最多存放多少个包
	Capacity int
}

var defaultRtpPacketQueueOption = RtpPacketQueueOption{
	Capacity: base.RtpPacketQueueDefaultCapacity,
}

type ModRtpPacketQueueOption func(option *RtpPacketQueueOption)

// RtpPacketQueueStat 各种情况的计数，只用于观察
type RtpPacketQueueStat struct {
	Pushed    uint64 `json:"pushed"`    // 调用Push/Insert的次数
	Accepted  uint64 `json:"accepted"`  // 成功插入队列的包数
	Popped    uint64 `json:"popped"`    // 弹出的包数
	Duplicate uint64 `json:"duplicate"` // 因重复丢弃的包数
	Stale     uint64 `json:"stale"`     // 因迟到丢弃的包数
	Evicted   uint64 `json:"evicted"`   // 因超过容量丢弃的包数
	Invalid   uint64 `json:"invalid"`   // 因无法解析丢弃的包数
}

type PushResult int

const (
	PushResultAccepted PushResult = iota + 1
	PushResultDuplicate
	PushResultStale
	PushResultInvalid
)

func (r PushResult) String() string {
	switch r {
	case PushResultAccepted:
		return "accepted"
	case PushResultDuplicate:
		return "duplicate"
	case PushResultStale:
		return "stale"
	case PushResultInvalid:
		return "invalid"
	}
	return "unknown"
}

func NewRtpPacketQueue(modOptions ...ModRtpPacketQueueOption) *RtpPacketQueue {
	option := defaultRtpPacketQueueOption
	for _, fn := range modOptions {
		fn(&option)
	}

	q := &RtpPacketQueue{
		uniqueKey: base.GenUkRtpPacketQueue(),
		option:    option,
	}
	if q.option.Capacity < 1 {
		Log.Warnf("[%s] invalid capacity, use default. capacity=%d, default=%d",
			q.uniqueKey, q.option.Capacity, base.RtpPacketQueueDefaultCapacity)
		q.option.Capacity = base.RtpPacketQueueDefaultCapacity
	}
	q.head.next = &q.head
	q.head.prev = &q.head
	return q
}

// Push 输入收到的原始rtp包
//
// 函数调用结束后，不持有参数<b>的内存块，调用方可以立即复用
//
func (q *RtpPacketQueue) Push(b []byte) PushResult {
	seq, err := ReadRtpSeq(b)
	if err != nil {
		q.stat.Pushed++
		q.stat.Invalid++
		Log.Warnf("[%s] discard invalid rtp packet. err=%+v", q.uniqueKey, err)
		return PushResultInvalid
	}

	// 迟到的包在拷贝之前就丢弃
	if q.IsStale(seq) {
		q.stat.Pushed++
		q.discardStale(seq)
		return PushResultStale
	}

	pkt, err := ParseRtpPacket(b)
	if err != nil {
		q.stat.Pushed++
		q.stat.Invalid++
		Log.Warnf("[%s] discard invalid rtp packet. seq=%d, err=%+v", q.uniqueKey, seq, err)
		return PushResultInvalid
	}
	return q.Insert(pkt)
}

// Insert 插入已经解析好的rtp包，pkt的所有权转移给队列
//
func (q *RtpPacketQueue) Insert(pkt RtpPacket) PushResult {
	q.stat.Pushed++

	seq := pkt.Header.Seq
	if q.IsStale(seq) {
		q.discardStale(seq)
		return PushResultStale
	}

	// 从队头（最新）往队尾（最旧）找第一个比自己旧的包，插在它前面
	at := &q.head
	for p := q.head.next; p != &q.head; p = p.next {
		pseq := p.packet.Header.Seq
		if pseq == seq {
			q.stat.Duplicate++
			Log.Infof("[%s] discard duplicate rtp packet. seq=%d", q.uniqueKey, seq)
			return PushResultDuplicate
		}
		if SeqPrecedes(pseq, seq) {
			at = p
			break
		}
	}
	// 没找到时at仍是哨兵，插在哨兵前面也就是追加到队尾
	q.insertBefore(at, pkt)
	q.stat.Accepted++

	for q.size > q.option.Capacity {
		evicted := q.removeTail()
		q.stat.Evicted++
		Log.Debugf("[%s] discard rtp packet since queue full. seq=%d, capacity=%d",
			q.uniqueKey, evicted.Header.Seq, q.option.Capacity)
	}
	return PushResultAccepted
}

// Pop 弹出队尾（最旧）的包，包的所有权转移给调用方
//
// 调用方应先通过 Size 确认队列不为空，对空队列调用时返回 base.ErrRtpPacketQueueEmpty
//
func (q *RtpPacketQueue) Pop() (RtpPacket, error) {
	if q.size == 0 {
		return RtpPacket{}, base.ErrRtpPacketQueueEmpty
	}
	pkt := q.removeTail()
	q.deliveredFlag = true
	q.deliveredSeq = pkt.Header.Seq
	q.stat.Popped++
	return pkt, nil
}

// Peek 查看队尾（下一个将被弹出）的包，不修改队列
//
func (q *RtpPacketQueue) Peek() (RtpPacket, error) {
	if q.size == 0 {
		return RtpPacket{}, base.ErrRtpPacketQueueEmpty
	}
	return q.head.prev.packet, nil
}

func (q *RtpPacketQueue) Size() int {
	return q.size
}

func (q *RtpPacketQueue) Capacity() int {
	return q.option.Capacity
}

// IsStale 序号是否已经过期，也即小于等于最后一次弹出的包的序号。从来没有弹出过时不会过期
//
func (q *RtpPacketQueue) IsStale(seq uint16) bool {
	if !q.deliveredFlag {
		return false
	}
	return seq == q.deliveredSeq || SeqPrecedes(seq, q.deliveredSeq)
}

// LastDeliveredSeq 最后一次弹出的包的序号，ok为false表示还没有弹出过包
//
func (q *RtpPacketQueue) LastDeliveredSeq() (seq uint16, ok bool) {
	return q.deliveredSeq, q.deliveredFlag
}

func (q *RtpPacketQueue) Stat() RtpPacketQueueStat {
	return q.stat
}

func (q *RtpPacketQueue) UniqueKey() string {
	return q.uniqueKey
}

// ---------------------------------------------------------------------------------------------------------------------

func (q *RtpPacketQueue) discardStale(seq uint16) {
	q.stat.Stale++
	Log.Warnf("[%s] discard very late rtp packet. seq=%d, delivered=%d", q.uniqueKey, seq, q.deliveredSeq)
}

func (q *RtpPacketQueue) insertBefore(at *rtpPacketQueueItem, pkt RtpPacket) {
	item := &rtpPacketQueueItem{
		packet: pkt,
		prev:   at.prev,
		next:   at,
	}
	at.prev.next = item
	at.prev = item
	q.size++
}

// 调用方保证队列不为空
func (q *RtpPacketQueue) removeTail() RtpPacket {
	tail := q.head.prev
	tail.prev.next = &q.head
	q.head.prev = tail.prev
	tail.prev = nil
	tail.next = nil
	q.size--
	return tail.packet
}
