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
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabytes"
)

// DumpFile 将收到的原始udp包逐个落盘，用于离线重放
//
// 每个消息的格式：
//
//   Ver(4) | Typ(4) | Len(4) | Timestamp(4) | Body(Len)
//
// 所有整型均为大端
//
type DumpFile struct {
	file *os.File
}

const (
	DumpFileVer uint32 = 1

	dumpFileMessageHeaderLength = 16

	// DumpFileMessageMaxLength 单个消息body的最大长度，存放的是udp包，不会超过这个值
	DumpFileMessageMaxLength = 65536
)

const (
	DumpTypeDefault  uint32 = 1
	DumpTypeRtpData  uint32 = 17
	DumpTypeRtcpData uint32 = 18
)

type DumpFileMessage struct {
	Ver       uint32
	Typ       uint32
	Len       uint32
	Timestamp uint32 // unix秒
	Body      []byte
}

func NewDumpFile() *DumpFile {
	return &DumpFile{}
}

func (d *DumpFile) OpenToWrite(filename string) (err error) {
	dir := filepath.Dir(filename)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	d.file, err = os.Create(filename)
	return
}

func (d *DumpFile) OpenToRead(filename string) (err error) {
	d.file, err = os.Open(filename)
	return
}

func (d *DumpFile) Write(b []byte) error {
	return d.WriteWithType(b, DumpTypeDefault)
}

func (d *DumpFile) WriteWithType(b []byte, typ uint32) error {
	if d.file == nil {
		return ErrDumpFileNotOpened
	}
	_, err := d.file.Write(d.pack(b, typ))
	return err
}

// ReadOneMessage 读取下一个消息
//
// @return err: 正常读完时返回 io.EOF ；消息不完整时返回 ErrDumpFileCorrupted
//
func (d *DumpFile) ReadOneMessage() (m DumpFileMessage, err error) {
	if d.file == nil {
		err = ErrDumpFileNotOpened
		return
	}

	header := make([]byte, dumpFileMessageHeaderLength)
	if _, err = io.ReadFull(d.file, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = ErrDumpFileCorrupted
		}
		return
	}
	m.Ver = bele.BeUint32(header)
	m.Typ = bele.BeUint32(header[4:])
	m.Len = bele.BeUint32(header[8:])
	m.Timestamp = bele.BeUint32(header[12:])
	if m.Ver != DumpFileVer {
		err = fmt.Errorf("%w. ver=%d", ErrDumpFileCorrupted, m.Ver)
		return
	}

	if m.Len > DumpFileMessageMaxLength {
		err = fmt.Errorf("%w. len=%d", ErrDumpFileCorrupted, m.Len)
		return
	}

	m.Body = make([]byte, m.Len)
	if _, err = io.ReadFull(d.file, m.Body); err != nil {
		err = fmt.Errorf("%w. len=%d, err=%v", ErrDumpFileCorrupted, m.Len, err)
	}
	return
}

func (d *DumpFile) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// ---------------------------------------------------------------------------------------------------------------------

func (m *DumpFileMessage) DebugString() string {
	return fmt.Sprintf("ver: %d, typ: %d, len: %d, timestamp: %d, hex: %s",
		m.Ver, m.Typ, m.Len, m.Timestamp, hex.Dump(nazabytes.Prefix(m.Body, 16)))
}

// ---------------------------------------------------------------------------------------------------------------------

func (d *DumpFile) pack(b []byte, typ uint32) []byte {
	ret := make([]byte, len(b)+dumpFileMessageHeaderLength)
	bele.BePutUint32(ret, DumpFileVer)
	bele.BePutUint32(ret[4:], typ)
	bele.BePutUint32(ret[8:], uint32(len(b)))
	bele.BePutUint32(ret[12:], uint32(time.Now().Unix()))
	copy(ret[16:], b)
	return ret
}
