// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreRtpPacketQueue = "RTPQUEUE"
	UkPreRelaySession   = "RELAY"
	UkPreTsProbe        = "TSPROBE"
	UkPreReplayer       = "REPLAYER"
)

func GenUkRtpPacketQueue() string {
	return siUkRtpPacketQueue.GenUniqueKey()
}

func GenUkRelaySession() string {
	return siUkRelaySession.GenUniqueKey()
}

func GenUkTsProbe() string {
	return siUkTsProbe.GenUniqueKey()
}

func GenUkReplayer() string {
	return siUkReplayer.GenUniqueKey()
}

var (
	siUkRtpPacketQueue *unique.SingleGenerator
	siUkRelaySession   *unique.SingleGenerator
	siUkTsProbe        *unique.SingleGenerator
	siUkReplayer       *unique.SingleGenerator
)

func init() {
	siUkRtpPacketQueue = unique.NewSingleGenerator(UkPreRtpPacketQueue)
	siUkRelaySession = unique.NewSingleGenerator(UkPreRelaySession)
	siUkTsProbe = unique.NewSingleGenerator(UkPreTsProbe)
	siUkReplayer = unique.NewSingleGenerator(UkPreReplayer)
}
