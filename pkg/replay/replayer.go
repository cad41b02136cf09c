// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package replay

import (
	"io"

	"github.com/q191201771/rtpreorder/pkg/base"
	"github.com/q191201771/rtpreorder/pkg/rtprtcp"
)

// Replayer 把Source中的包全部放入RtpPacketQueue，按序回调
//
// 和relay.Session的区别是没有时间维度：队列中超过DrainMargin个包时弹出，
// Source读完后把剩余的包全部弹出
//
type Replayer struct {
	uniqueKey string
	option    ReplayerOption
}

type ReplayerOption struct {
	Capacity    int
	DrainMargin int
}

var defaultReplayerOption = ReplayerOption{
	Capacity:    base.RtpPacketQueueDefaultCapacity,
	DrainMargin: base.RelayDefaultDrainMargin,
}

type ModReplayerOption func(option *ReplayerOption)

// OnPacket 按序号递增的顺序回调
type OnPacket func(pkt rtprtcp.RtpPacket)

func NewReplayer(modOptions ...ModReplayerOption) *Replayer {
	option := defaultReplayerOption
	for _, fn := range modOptions {
		fn(&option)
	}
	r := &Replayer{
		uniqueKey: base.GenUkReplayer(),
	}
	if option.Capacity < 1 {
		Log.Warnf("[%s] invalid capacity, use default. capacity=%d, default=%d",
			r.uniqueKey, option.Capacity, base.RtpPacketQueueDefaultCapacity)
		option.Capacity = base.RtpPacketQueueDefaultCapacity
	}
	if option.DrainMargin < 0 {
		option.DrainMargin = 0
	}
	// 积累量不小于容量时，包在弹出之前就会因为溢出被丢弃
	if option.DrainMargin >= option.Capacity {
		Log.Warnf("[%s] drain margin not less than capacity, clamp it. margin=%d, capacity=%d",
			r.uniqueKey, option.DrainMargin, option.Capacity)
		option.DrainMargin = option.Capacity - 1
	}
	r.option = option
	Log.Infof("[%s] lifecycle new replayer. option=%+v", r.uniqueKey, option)
	return r
}

// Run 阻塞直到Source读完或者出错
//
// @param onPacket: 可以为nil
//
// @return stat: 出错时也返回已处理部分的计数
//
func (r *Replayer) Run(src Source, onPacket OnPacket) (stat rtprtcp.RtpPacketQueueStat, err error) {
	q := rtprtcp.NewRtpPacketQueue(func(option *rtprtcp.RtpPacketQueueOption) {
		option.Capacity = r.option.Capacity
	})

	drain := func(margin int) {
		for q.Size() > margin {
			pkt, popErr := q.Pop()
			if popErr != nil {
				return
			}
			if onPacket != nil {
				onPacket(pkt)
			}
		}
	}

	for {
		b, readErr := src.ReadPacket()
		if readErr != nil {
			if readErr != io.EOF {
				err = readErr
				Log.Errorf("[%s] read packet failed. err=%+v", r.uniqueKey, err)
			}
			break
		}
		q.Push(b)
		drain(r.option.DrainMargin)
	}
	drain(0)

	stat = q.Stat()
	Log.Infof("[%s] replay done. stat=%+v", r.uniqueKey, stat)
	return stat, err
}
