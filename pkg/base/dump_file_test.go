// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/rtpreorder/pkg/base"
)

func TestDumpFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "sub", "test.laldump")

	df := base.NewDumpFile()
	err := df.OpenToWrite(filename)
	nazalog.Assert(nil, err)
	err = df.WriteWithType([]byte("hello"), base.DumpTypeRtpData)
	nazalog.Assert(nil, err)
	err = df.Write([]byte("world!"))
	nazalog.Assert(nil, err)
	err = df.Close()
	nazalog.Assert(nil, err)

	df = base.NewDumpFile()
	err = df.OpenToRead(filename)
	nazalog.Assert(nil, err)
	defer df.Close()

	m, err := df.ReadOneMessage()
	assert.Equal(t, nil, err)
	assert.Equal(t, base.DumpFileVer, m.Ver)
	assert.Equal(t, base.DumpTypeRtpData, m.Typ)
	assert.Equal(t, uint32(5), m.Len)
	assert.Equal(t, []byte("hello"), m.Body)

	m, err = df.ReadOneMessage()
	assert.Equal(t, nil, err)
	assert.Equal(t, base.DumpTypeDefault, m.Typ)
	assert.Equal(t, []byte("world!"), m.Body)

	_, err = df.ReadOneMessage()
	assert.Equal(t, io.EOF, err)
}

func TestDumpFile_Corrupted(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "corrupted.laldump")

	df := base.NewDumpFile()
	nazalog.Assert(nil, df.OpenToWrite(filename))
	nazalog.Assert(nil, df.Write([]byte("hello")))
	nazalog.Assert(nil, df.Close())

	// 截掉body的最后一个字节
	fi, err := os.Stat(filename)
	nazalog.Assert(nil, err)
	nazalog.Assert(nil, os.Truncate(filename, fi.Size()-1))

	df = base.NewDumpFile()
	nazalog.Assert(nil, df.OpenToRead(filename))
	defer df.Close()
	_, err = df.ReadOneMessage()
	assert.IsNotNil(t, err)
}

func TestDumpFile_TooLarge(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "toolarge.laldump")

	// 头部声明的长度远超udp包的大小
	b := make([]byte, 20)
	bele.BePutUint32(b, base.DumpFileVer)
	bele.BePutUint32(b[4:], base.DumpTypeRtpData)
	bele.BePutUint32(b[8:], 0xFFFFFFF0)
	nazalog.Assert(nil, os.WriteFile(filename, b, 0644))

	df := base.NewDumpFile()
	nazalog.Assert(nil, df.OpenToRead(filename))
	defer df.Close()
	_, err := df.ReadOneMessage()
	assert.Equal(t, true, errors.Is(err, base.ErrDumpFileCorrupted))
}

func TestDumpFile_NotOpened(t *testing.T) {
	df := base.NewDumpFile()
	assert.Equal(t, base.ErrDumpFileNotOpened, df.Write([]byte("x")))
	_, err := df.ReadOneMessage()
	assert.Equal(t, base.ErrDumpFileNotOpened, err)
	assert.Equal(t, nil, df.Close())
}
