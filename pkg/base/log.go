// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"encoding/hex"
	"fmt"

	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazalog"
)

// LogDump 限制包内容调试日志的打印次数
//
// 日志级别为trace时，每次都打印；为debug时，最多打印debugMaxNum次；更高级别时不打印
//
type LogDump struct {
	log         nazalog.Logger
	debugMaxNum int

	debugCount int
}

func NewLogDump(log nazalog.Logger, debugMaxNum int) LogDump {
	return LogDump{
		log:         log,
		debugMaxNum: debugMaxNum,
	}
}

func (ld *LogDump) ShouldDump() bool {
	switch ld.log.GetOption().Level {
	case nazalog.LevelTrace:
		return true
	case nazalog.LevelDebug:
		if ld.debugCount >= ld.debugMaxNum {
			return false
		}
		ld.debugCount++
		return true
	}
	return false
}

// Outf
//
// 调用之前需调用 ShouldDump ，避免不打印时构造实参（比如hex.Dump）的开销
//
func (ld *LogDump) Outf(format string, v ...interface{}) {
	ld.log.Out(ld.log.GetOption().Level, 3, fmt.Sprintf(format, v...))
}

// DumpPacket 打印包的前n个字节，内部会调用 ShouldDump
func (ld *LogDump) DumpPacket(tag string, b []byte, n int) {
	if !ld.ShouldDump() {
		return
	}
	ld.log.Out(ld.log.GetOption().Level, 3, fmt.Sprintf("%s LOGPACKET. len=%d, hex=%s", tag, len(b), hex.Dump(nazabytes.Prefix(b, n))))
}
