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
	"path/filepath"

	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/rtpreorder/pkg/base"
	"github.com/q191201771/rtpreorder/pkg/relay"
)

// 从udp接收rtp包，排序后转发到另一个udp地址
//
// Usage:
//   ./bin/rtpreorder -c ./conf/rtpreorder.conf.json

var defaultConfFilenameList = []string{
	filepath.FromSlash("rtpreorder.conf.json"),
	filepath.FromSlash("./conf/rtpreorder.conf.json"),
	filepath.FromSlash("../rtpreorder.conf.json"),
	filepath.FromSlash("../conf/rtpreorder.conf.json"),
	filepath.FromSlash("../../conf/rtpreorder.conf.json"),
}

func main() {
	defer nazalog.Sync()

	confFilename := parseFlag()
	rawContent := base.WrapReadConfigFile(confFilename, defaultConfFilenameList, func() {
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  %s -c %s

Github: %s
`, os.Args[0], filepath.FromSlash("./conf/rtpreorder.conf.json"), base.GithubSite)
	})

	config, err := relay.LoadConf(rawContent)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load conf failed. err=%+v\n", err)
		base.OsExitAndWaitPressIfWindows(1)
	}

	if err := nazalog.Init(func(option *nazalog.Option) {
		*option = config.LogConfig
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initial log failed. err=%+v\n", err)
		base.OsExitAndWaitPressIfWindows(1)
	}
	base.LogoutStartInfo()
	nazalog.Infof("load conf succ. conf=%+v", *config)

	session := relay.NewSession(*config, nil)
	if err := session.Listen(); err != nil {
		nazalog.Errorf("listen failed. err=%+v", err)
		base.OsExitAndWaitPressIfWindows(1)
	}

	go base.RunSignalHandler(func() {
		_ = session.Dispose()
	})

	err = session.RunLoop()
	_ = session.Dispose()
	nazalog.Infof("bye. err=%+v", err)
}

func parseFlag() string {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	cf := flag.String("c", "", "specify conf file")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.FullInfo)
		os.Exit(0)
	}
	return *cf
}
