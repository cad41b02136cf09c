// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/rtpreorder/pkg/base"
	"github.com/q191201771/rtpreorder/pkg/replay"
	"github.com/q191201771/rtpreorder/pkg/rtprtcp"
)

// 读取录制的rtp包（rtpreorder落盘的dump文件或者抓包得到的pcap文件），排序后打印序号，用于离线分析乱序情况
//
// Usage:
//   ./bin/rtpqueuereplay -i in.pcap -p 5004 -m 8

func main() {
	defer nazalog.Sync()

	filename, udpPort, capacity, margin, quiet := parseFlag()

	_ = nazalog.Init(func(option *nazalog.Option) {
		option.Level = nazalog.LevelInfo
		option.AssertBehavior = nazalog.AssertFatal
	})

	src, err := replay.OpenSource(filename, udpPort)
	nazalog.Assert(nil, err)
	defer src.Close()

	r := replay.NewReplayer(func(option *replay.ReplayerOption) {
		option.Capacity = capacity
		option.DrainMargin = margin
	})

	var (
		count   int
		lost    int
		lastSeq uint16
	)
	stat, err := r.Run(src, func(pkt rtprtcp.RtpPacket) {
		seq := pkt.Seq()
		if count > 0 {
			if gap := int(seq-lastSeq) - 1; gap > 0 {
				lost += gap
			}
		}
		count++
		lastSeq = seq
		if !quiet {
			fmt.Printf("%d %s\n", count, pkt.DebugString())
		}
	})
	if err != nil {
		nazalog.Errorf("replay stopped. err=%+v", err)
	}
	nazalog.Infof("summary. delivered=%d, lost=%d, stat=%+v", count, lost, stat)
}

func parseFlag() (filename string, udpPort uint16, capacity int, margin int, quiet bool) {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	i := flag.String("i", "", "specify input file, .pcap or .laldump")
	p := flag.Int("p", 0, "specify udp dst port of rtp in pcap file, 0 means no filter")
	c := flag.Int("c", base.RtpPacketQueueDefaultCapacity, "specify capacity of queue")
	m := flag.Int("m", base.RelayDefaultDrainMargin, "specify reorder margin")
	q := flag.Bool("q", false, "do not print every packet")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.FullInfo)
		os.Exit(0)
	}
	if *i == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  %s -i in.pcap -p 5004 -m 8
  %s -i in.laldump -q
`, os.Args[0], os.Args[0])
		base.OsExitAndWaitPressIfWindows(1)
	}
	return *i, uint16(*p), *c, *m, *q
}
