// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package relay

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/q191201771/naza/pkg/bitrate"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazanet"
	"github.com/q191201771/rtpreorder/pkg/base"
	"github.com/q191201771/rtpreorder/pkg/rtprtcp"
)

// SessionObserver 按序号递增的顺序回调排序后的rtp包
//
// 回调发生在session内部的锁中，不要在回调中调用Session的方法
//
type SessionObserver interface {
	OnRtpPacket(pkt rtprtcp.RtpPacket)
}

// Session 从udp接收rtp包，排序后转发
//
// 收到的包先放入RtpPacketQueue，队列中的包数超过DrainMargin时，按序弹出最旧的包转发，
// 也即最多容忍DrainMargin个包的乱序。
// 超过FlushIntervalMs没有收到新的包时，把队列中剩余的包全部弹出。
//
type Session struct {
	uniqueKey string
	config    Config
	observer  SessionObserver

	rtpConn  *nazanet.UdpConnection
	rtcpConn *nazanet.UdpConnection
	outConn  *nazanet.UdpConnection

	// mu 保护以下成员，RtpPacketQueue和RrProducer自身不是并发安全的
	mu             sync.Mutex
	queue          *rtprtcp.RtpPacketQueue
	rrProducer     *rtprtcp.RrProducer
	lastRecvUnixMs int64
	outFlag        bool
	lastOutSeq     uint16
	lostCount      uint64
	logDump        base.LogDump
	dumpFile       *base.DumpFile
	tsProbe        *TsProbe
	inBitrate      bitrate.Bitrate
	outBitrate     bitrate.Bitrate
	disposeFlag    bool

	readBytes      nazaatomic.Uint64
	wroteBytes     nazaatomic.Uint64
	rtcpSrCount    nazaatomic.Uint64
	rtcpRrCount    nazaatomic.Uint64
	rtcpErrorCount nazaatomic.Uint64

	disposeOnce sync.Once
	exitChan    chan struct{}
	waitChan    chan error
}

type SessionStat struct {
	Queue     rtprtcp.RtpPacketQueueStat `json:"queue"`
	QueueSize int                        `json:"queue_size"`

	// 转发出去的包之间序号不连续的个数，包括没收到的、迟到被丢弃的、溢出被丢弃的
	Lost uint64 `json:"lost"`

	ReadBytes  uint64 `json:"read_bytes"`
	WroteBytes uint64 `json:"wrote_bytes"`

	RtcpSrCount uint64 `json:"rtcp_sr_count"`
	RtcpRrCount uint64 `json:"rtcp_rr_count"`

	InBitrateKbits  int `json:"in_bitrate_kbits"`
	OutBitrateKbits int `json:"out_bitrate_kbits"`

	TsProbe *TsProbeStat `json:"ts_probe,omitempty"`
}

// NewSession
//
// @param observer: 可以为nil
//
func NewSession(config Config, observer SessionObserver) *Session {
	uk := base.GenUkRelaySession()
	windowMs := config.RelayConfig.StatIntervalMs
	if windowMs <= 0 {
		windowMs = base.RelayDefaultStatIntervalMs
	}
	rrProducer := rtprtcp.NewRrProducer(config.RelayConfig.ClockRate)
	rrProducer.SetSsrc(rand.Uint32(), 0)
	s := &Session{
		uniqueKey: uk,
		config:    config,
		observer:  observer,
		queue: rtprtcp.NewRtpPacketQueue(func(option *rtprtcp.RtpPacketQueueOption) {
			option.Capacity = config.RelayConfig.Capacity
		}),
		rrProducer: rrProducer,
		logDump:    base.NewLogDump(Log, debugLogMaxCount),
		inBitrate: bitrate.New(func(option *bitrate.Option) {
			option.WindowMs = windowMs
		}),
		outBitrate: bitrate.New(func(option *bitrate.Option) {
			option.WindowMs = windowMs
		}),
		exitChan: make(chan struct{}),
		waitChan: make(chan error, 1),
	}
	Log.Infof("[%s] lifecycle new relay session. session=%p, queue=%s", uk, s, s.queue.UniqueKey())
	return s
}

// Listen 绑定rtp、rtcp的端口，以及创建转发用的连接
func (s *Session) Listen() (err error) {
	select {
	case <-s.exitChan:
		return base.ErrRelayDisposed
	default:
	}

	rc := s.config.RelayConfig
	if rc.RtpAddr == "" {
		return base.ErrRelayAddrEmpty
	}

	s.rtpConn, err = nazanet.NewUdpConnection(func(option *nazanet.UdpConnectionOption) {
		option.LAddr = rc.RtpAddr
	})
	if err != nil {
		return err
	}
	Log.Infof("[%s] start rtp listen. addr=%s", s.uniqueKey, rc.RtpAddr)

	if rc.RtcpAddr != "" {
		s.rtcpConn, err = nazanet.NewUdpConnection(func(option *nazanet.UdpConnectionOption) {
			option.LAddr = rc.RtcpAddr
		})
		if err != nil {
			s.closeConns()
			return err
		}
		Log.Infof("[%s] start rtcp listen. addr=%s", s.uniqueKey, rc.RtcpAddr)
	}

	if rc.OutAddr != "" {
		s.outConn, err = nazanet.NewUdpConnection(func(option *nazanet.UdpConnectionOption) {
			option.RAddr = rc.OutAddr
		})
		if err != nil {
			s.closeConns()
			return err
		}
		Log.Infof("[%s] relay to. addr=%s", s.uniqueKey, rc.OutAddr)
	}

	if rc.DumpFile != "" {
		dumpFile := base.NewDumpFile()
		if err = dumpFile.OpenToWrite(rc.DumpFile); err != nil {
			s.closeConns()
			return err
		}
		s.dumpFile = dumpFile
		Log.Infof("[%s] dump rtp packets to file. filename=%s", s.uniqueKey, rc.DumpFile)
	}

	if s.config.TsProbeConfig.Enable {
		s.tsProbe = NewTsProbe()
	}
	return nil
}

// RunLoop 阻塞直到 Dispose 被调用或者读取rtp出错
//
// 调用前需先调用 Listen
//
func (s *Session) RunLoop() (err error) {
	defer func() {
		s.waitChan <- err
	}()

	if s.rtpConn == nil {
		return base.ErrRelayAddrEmpty
	}

	if s.rtcpConn != nil {
		go func() {
			rtcpErr := s.rtcpConn.RunLoop(s.onReadRtcpPacket)
			Log.Debugf("[%s] rtcp loop done. err=%+v", s.uniqueKey, rtcpErr)
		}()
	}
	go s.runTickLoop()

	err = s.rtpConn.RunLoop(s.onReadRtpPacket)
	select {
	case <-s.exitChan:
		// 主动关闭导致的读取错误不对外返回
		err = nil
	default:
	}
	Log.Infof("[%s] rtp loop done. err=%+v", s.uniqueKey, err)
	return err
}

// Dispose 停止接收，把队列中剩余的包全部转发，然后关闭所有资源
//
// 可以重复调用
//
func (s *Session) Dispose() error {
	var err error
	s.disposeOnce.Do(func() {
		Log.Infof("[%s] lifecycle dispose relay session.", s.uniqueKey)
		close(s.exitChan)

		if s.rtpConn != nil {
			err = s.rtpConn.Dispose()
		}
		if s.rtcpConn != nil {
			_ = s.rtcpConn.Dispose()
		}

		s.mu.Lock()
		s.drain(0)
		s.disposeFlag = true
		if s.dumpFile != nil {
			_ = s.dumpFile.Close()
		}
		s.mu.Unlock()

		if s.outConn != nil {
			_ = s.outConn.Dispose()
		}
		if s.tsProbe != nil {
			s.tsProbe.Dispose()
		}
		s.logStat()
	})
	return err
}

// WaitChan RunLoop结束时，通过该channel返回RunLoop的结果
func (s *Session) WaitChan() <-chan error {
	return s.waitChan
}

func (s *Session) UniqueKey() string {
	return s.uniqueKey
}

func (s *Session) GetStat() SessionStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	stat := SessionStat{
		Queue:           s.queue.Stat(),
		QueueSize:       s.queue.Size(),
		Lost:            s.lostCount,
		ReadBytes:       s.readBytes.Load(),
		WroteBytes:      s.wroteBytes.Load(),
		RtcpSrCount:     s.rtcpSrCount.Load(),
		RtcpRrCount:     s.rtcpRrCount.Load(),
		InBitrateKbits:  int(s.inBitrate.Rate()),
		OutBitrateKbits: int(s.outBitrate.Rate()),
	}
	if s.tsProbe != nil {
		ps := s.tsProbe.Stat()
		stat.TsProbe = &ps
	}
	return stat
}

// ---------------------------------------------------------------------------------------------------------------------

func (s *Session) onReadRtpPacket(b []byte, raddr *net.UDPAddr, err error) bool {
	if err != nil {
		return false
	}

	s.readBytes.Add(uint64(len(b)))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposeFlag {
		return false
	}

	s.logDump.DumpPacket(s.uniqueKey+" read rtp.", b, 32)
	s.inBitrate.Add(len(b))

	if s.dumpFile != nil {
		if err := s.dumpFile.WriteWithType(b, base.DumpTypeRtpData); err != nil {
			Log.Errorf("[%s] write dump file failed, stop dump. err=%+v", s.uniqueKey, err)
			_ = s.dumpFile.Close()
			s.dumpFile = nil
		}
	}

	now := time.Now().UnixNano() / 1e6
	if h, err := rtprtcp.ParseRtpHeader(b); err == nil {
		s.rrProducer.FeedRtpPacket(h, now)
	}

	// 解析失败、迟到、重复等情况，队列内部会打日志和计数，这里不需要额外处理
	_ = s.queue.Push(b)
	s.lastRecvUnixMs = now

	s.drain(s.config.RelayConfig.DrainMargin)
	return true
}

func (s *Session) onReadRtcpPacket(b []byte, raddr *net.UDPAddr, err error) bool {
	if err != nil {
		return false
	}

	h, err := rtprtcp.ParseRtcpHeader(b)
	if err != nil {
		s.rtcpErrorCount.Add(1)
		Log.Warnf("[%s] parse rtcp header failed. err=%+v", s.uniqueKey, err)
		return true
	}

	switch h.PacketType {
	case rtprtcp.RtcpPacketTypeSr:
		sr, err := rtprtcp.ParseSr(b)
		if err != nil {
			s.rtcpErrorCount.Add(1)
			Log.Warnf("[%s] parse rtcp sr failed. err=%+v", s.uniqueKey, err)
			return true
		}
		s.rtcpSrCount.Add(1)

		s.mu.Lock()
		rr := s.rrProducer.Produce(sr.GetMiddleNtp())
		s.mu.Unlock()

		if rr == nil {
			Log.Debugf("[%s] recv sr before any rtp, ignore. sender ssrc=%d", s.uniqueKey, sr.SenderSsrc)
			return true
		}
		if err := s.rtcpConn.Write2Addr(rr, raddr); err != nil {
			Log.Warnf("[%s] write rtcp rr failed. raddr=%s, err=%+v", s.uniqueKey, raddr.String(), err)
			return true
		}
		s.rtcpRrCount.Add(1)
	default:
		Log.Debugf("[%s] ignore rtcp packet. type=%d, len=%d", s.uniqueKey, h.PacketType, len(b))
	}
	return true
}

func (s *Session) runTickLoop() {
	flushInterval := time.Duration(s.config.RelayConfig.FlushIntervalMs) * time.Millisecond
	checkInterval := flushInterval / 2
	if checkInterval < time.Millisecond {
		checkInterval = time.Millisecond
	}
	flushTicker := time.NewTicker(checkInterval)
	defer flushTicker.Stop()

	var statChan <-chan time.Time
	if s.config.RelayConfig.StatIntervalMs > 0 {
		statTicker := time.NewTicker(time.Duration(s.config.RelayConfig.StatIntervalMs) * time.Millisecond)
		defer statTicker.Stop()
		statChan = statTicker.C
	}

	for {
		select {
		case <-s.exitChan:
			return
		case <-flushTicker.C:
			s.flushIfIdle()
		case <-statChan:
			s.logStat()
		}
	}
}

func (s *Session) flushIfIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposeFlag || s.queue.Size() == 0 {
		return
	}
	idleMs := time.Now().UnixNano()/1e6 - s.lastRecvUnixMs
	if idleMs < int64(s.config.RelayConfig.FlushIntervalMs) {
		return
	}
	Log.Debugf("[%s] no rtp packet for a while, flush queue. idle=%dms, size=%d", s.uniqueKey, idleMs, s.queue.Size())
	s.drain(0)
}

// drain 弹出并转发，直到队列中只剩margin个包
//
// 调用方持有锁
//
func (s *Session) drain(margin int) {
	for s.queue.Size() > margin {
		pkt, err := s.queue.Pop()
		if err != nil {
			// 不应该发生，Size大于0
			Log.Errorf("[%s] pop failed. err=%+v", s.uniqueKey, err)
			return
		}
		s.deliver(pkt)
	}
}

func (s *Session) deliver(pkt rtprtcp.RtpPacket) {
	seq := pkt.Seq()
	if s.outFlag {
		// 弹出的包一定在上一个弹出的包之后，直接按16位无符号差值计算
		if gap := int(seq-s.lastOutSeq) - 1; gap > 0 {
			s.lostCount += uint64(gap)
		}
	}
	s.outFlag = true
	s.lastOutSeq = seq

	if s.outConn != nil {
		if err := s.outConn.Write(pkt.Raw); err != nil {
			Log.Warnf("[%s] relay rtp packet failed. seq=%d, err=%+v", s.uniqueKey, seq, err)
		} else {
			s.wroteBytes.Add(uint64(len(pkt.Raw)))
			s.outBitrate.Add(len(pkt.Raw))
		}
	}

	if s.tsProbe != nil && pkt.Header.PacketType == rtprtcp.RtpPayloadTypeMp2t {
		if err := s.tsProbe.Feed(pkt.Body()); err != nil {
			Log.Warnf("[%s] ts probe stopped, disable it. err=%+v", s.uniqueKey, err)
			s.tsProbe.Dispose()
			s.tsProbe = nil
		}
	}

	if s.observer != nil {
		s.observer.OnRtpPacket(pkt)
	}
}

func (s *Session) logStat() {
	stat := s.GetStat()
	Log.Infof("[%s] stat. queue=%+v, size=%d, lost=%d, read=%d, wrote=%d, in=%dkbit/s, out=%dkbit/s, sr=%d, rr=%d",
		s.uniqueKey, stat.Queue, stat.QueueSize, stat.Lost, stat.ReadBytes, stat.WroteBytes,
		stat.InBitrateKbits, stat.OutBitrateKbits, stat.RtcpSrCount, stat.RtcpRrCount)
	if stat.TsProbe != nil {
		Log.Infof("[%s] ts probe stat. %+v", s.uniqueKey, *stat.TsProbe)
	}
}

func (s *Session) closeConns() {
	if s.rtpConn != nil {
		_ = s.rtpConn.Dispose()
		s.rtpConn = nil
	}
	if s.rtcpConn != nil {
		_ = s.rtcpConn.Dispose()
		s.rtcpConn = nil
	}
	if s.outConn != nil {
		_ = s.outConn.Dispose()
		s.outConn = nil
	}
}
