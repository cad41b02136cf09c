// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// ----- rtprtcp --------------------
var (
	// RtpPacketQueueDefaultCapacity RtpPacketQueue的默认容量
	//
	// 注意，序号比较依赖半区假设（在途乱序包不超过32767个），容量必须远小于这个值
	//
	RtpPacketQueueDefaultCapacity = 1024
)

// ----- relay --------------------
var (
	// RelayDefaultDrainMargin 队列中至少积累多少个包之后，才开始按序弹出
	RelayDefaultDrainMargin = 8

	// RelayDefaultFlushIntervalMs 超过该时间没有收到新的rtp包，则把队列中剩余的包全部弹出
	RelayDefaultFlushIntervalMs = 200

	RelayDefaultStatIntervalMs = 5000
)
