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
	"os"
	"path/filepath"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/q191201771/naza/pkg/nazaerrors"
	"github.com/q191201771/rtpreorder/pkg/base"
)

// Source 按录制时的顺序逐个返回rtp包
type Source interface {
	// ReadPacket 读取下一个rtp包，读完时返回io.EOF
	ReadPacket() ([]byte, error)

	Close() error
}

// OpenSource 根据文件后缀名选择Source
//
// .pcap 使用 PcapSource，.dump 和 .laldump 使用 DumpFileSource
//
// @param udpPort: 只对pcap有效，为0时不过滤目的端口
//
func OpenSource(filename string, udpPort uint16) (Source, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pcap":
		return NewPcapSource(filename, udpPort)
	case ".dump", ".laldump":
		return NewDumpFileSource(filename)
	}
	return nil, base.ErrReplayUnknownFileType
}

// ----- DumpFileSource ------------------------------------------------------------------------------------------------

// DumpFileSource 读取 base.DumpFile 格式的文件，只返回rtp类型的消息
type DumpFileSource struct {
	df *base.DumpFile
}

func NewDumpFileSource(filename string) (*DumpFileSource, error) {
	df := base.NewDumpFile()
	if err := df.OpenToRead(filename); err != nil {
		return nil, nazaerrors.Wrap(err)
	}
	return &DumpFileSource{df: df}, nil
}

func (s *DumpFileSource) ReadPacket() ([]byte, error) {
	for {
		m, err := s.df.ReadOneMessage()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, nazaerrors.Wrap(err)
		}
		switch m.Typ {
		case base.DumpTypeRtpData, base.DumpTypeDefault:
			return m.Body, nil
		default:
			Log.Debugf("skip dump message. %s", m.DebugString())
		}
	}
}

func (s *DumpFileSource) Close() error {
	return s.df.Close()
}

// ----- PcapSource ----------------------------------------------------------------------------------------------------

// PcapSource 从pcap文件中读取udp负载
type PcapSource struct {
	fp      *os.File
	ps      *gopacket.PacketSource
	udpPort uint16
}

func NewPcapSource(filename string, udpPort uint16) (*PcapSource, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, nazaerrors.Wrap(err)
	}
	r, err := pcapgo.NewReader(fp)
	if err != nil {
		_ = fp.Close()
		return nil, nazaerrors.Wrap(err)
	}
	Log.Debugf("open pcap file. filename=%s, link type=%s", filename, r.LinkType().String())
	return &PcapSource{
		fp:      fp,
		ps:      gopacket.NewPacketSource(r, r.LinkType()),
		udpPort: udpPort,
	}, nil
}

func (s *PcapSource) ReadPacket() ([]byte, error) {
	for {
		packet, err := s.ps.NextPacket()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, nazaerrors.Wrap(err)
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok {
			continue
		}
		if s.udpPort != 0 && uint16(udp.DstPort) != s.udpPort {
			continue
		}
		if len(udp.Payload) == 0 {
			continue
		}
		return udp.Payload, nil
	}
}

func (s *PcapSource) Close() error {
	return s.fp.Close()
}
