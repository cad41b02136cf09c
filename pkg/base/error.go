// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- pkg/base ------------------------------------------------------------------------------------------------------

var (
	ErrDumpFileNotOpened = errors.New("rtpreorder.base: dump file not opened")
	ErrDumpFileCorrupted = errors.New("rtpreorder.base: dump file corrupted")
)

// ----- pkg/rtprtcp ---------------------------------------------------------------------------------------------------

var (
	ErrRtpRtcpShortBuffer = errors.New("rtpreorder.rtprtcp: buffer too short")

	ErrRtpVersion = errors.New("rtpreorder.rtprtcp: invalid rtp version")

	// ErrRtpPacketQueueEmpty 对空队列调用Pop或Peek，属于调用方的使用错误
	ErrRtpPacketQueueEmpty = errors.New("rtpreorder.rtprtcp: rtp packet queue empty")
)

func NewErrRtpRtcpShortBuffer(need, actual int) error {
	return fmt.Errorf("%w. need=%d, actual=%d", ErrRtpRtcpShortBuffer, need, actual)
}

// ----- pkg/relay -----------------------------------------------------------------------------------------------------

var (
	ErrRelayAddrEmpty   = errors.New("rtpreorder.relay: rtp listen addr empty")
	ErrRelayDisposed    = errors.New("rtpreorder.relay: session already disposed")
	ErrRelayInvalidConf = errors.New("rtpreorder.relay: invalid config")
)

func NewErrRelayInvalidConf(msg string) error {
	return fmt.Errorf("%w. %s", ErrRelayInvalidConf, msg)
}

// ----- pkg/replay ----------------------------------------------------------------------------------------------------

var (
	ErrReplayUnknownFileType = errors.New("rtpreorder.replay: unknown file type")
)

// ---------------------------------------------------------------------------------------------------------------------
