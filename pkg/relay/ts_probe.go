// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package relay

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/asticode/go-astits"
	"github.com/q191201771/rtpreorder/pkg/base"
)

// TsProbe 对排序后的rtp(MP2T)负载做mpegts解析，统计PAT、PMT、PES，用于观察排序后的流是否可以正常解析
//
// Feed 写入的数据由内部的协程通过astits解析，Feed会阻塞到数据被解析协程读取
//
type TsProbe struct {
	uniqueKey string

	pr *io.PipeReader
	pw *io.PipeWriter

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	stat TsProbeStat

	disposeOnce sync.Once
	doneChan    chan struct{}
}

type TsProbeStat struct {
	PatCount int `json:"pat_count"`
	PmtCount int `json:"pmt_count"`
	PesCount int `json:"pes_count"`

	// 从PMT中获取的pid和stream type的对应关系
	Streams map[uint16]uint8 `json:"streams"`

	// 解析过程中遇到的最后一个错误
	LastErr string `json:"last_err"`
}

func NewTsProbe() *TsProbe {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	p := &TsProbe{
		uniqueKey: base.GenUkTsProbe(),
		pr:        pr,
		pw:        pw,
		ctx:       ctx,
		cancel:    cancel,
		stat: TsProbeStat{
			Streams: make(map[uint16]uint8),
		},
		doneChan: make(chan struct{}),
	}
	go p.runLoop()
	Log.Infof("[%s] lifecycle new TsProbe. probe=%p", p.uniqueKey, p)
	return p
}

// Feed 输入一个rtp包的payload，应该是整数个188字节的ts包
func (p *TsProbe) Feed(payload []byte) error {
	_, err := p.pw.Write(payload)
	return err
}

// Dispose 结束解析，并等待解析协程退出
func (p *TsProbe) Dispose() {
	p.disposeOnce.Do(func() {
		Log.Infof("[%s] lifecycle dispose TsProbe.", p.uniqueKey)
		_ = p.pw.Close()
		<-p.doneChan
		p.cancel()
	})
}

func (p *TsProbe) Stat() TsProbeStat {
	p.mu.Lock()
	defer p.mu.Unlock()
	ret := p.stat
	ret.Streams = make(map[uint16]uint8, len(p.stat.Streams))
	for k, v := range p.stat.Streams {
		ret.Streams[k] = v
	}
	return ret
}

func (p *TsProbe) runLoop() {
	defer close(p.doneChan)

	demuxer := astits.NewDemuxer(p.ctx, p.pr)
	for {
		d, err := demuxer.NextData()
		if err != nil {
			if err == astits.ErrNoMorePackets || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				Log.Debugf("[%s] ts probe loop done.", p.uniqueKey)
				return
			}
			Log.Warnf("[%s] demux mpegts failed. err=%+v", p.uniqueKey, err)
			p.mu.Lock()
			p.stat.LastErr = err.Error()
			p.mu.Unlock()

			// 读端关闭后，写端立即返回错误，避免 Feed 一直阻塞
			_ = p.pr.CloseWithError(err)
			return
		}

		p.mu.Lock()
		if d.PAT != nil {
			p.stat.PatCount++
			if p.stat.PatCount == 1 {
				Log.Infof("[%s] got first pat. programs=%d", p.uniqueKey, len(d.PAT.Programs))
			}
		}
		if d.PMT != nil {
			p.stat.PmtCount++
			for _, es := range d.PMT.ElementaryStreams {
				if _, ok := p.stat.Streams[es.ElementaryPID]; !ok {
					Log.Infof("[%s] got elementary stream. program=%d, pid=%d, stream type=%d",
						p.uniqueKey, d.PMT.ProgramNumber, es.ElementaryPID, es.StreamType)
				}
				p.stat.Streams[es.ElementaryPID] = uint8(es.StreamType)
			}
		}
		if d.PES != nil {
			p.stat.PesCount++
		}
		p.mu.Unlock()
	}
}
