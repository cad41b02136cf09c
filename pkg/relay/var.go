// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package relay 从udp接收rtp包，经过RtpPacketQueue排序后，按序号递增的顺序转发
package relay

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

const (
	// 每个session打印前几个包的内容
	debugLogMaxCount = 3

	defaultClockRate = 90000
)
