// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

// 版本信息相关
// 一部分版本信息使用了naza.bininfo，另外一些信息在本文件提供

// Version 整个工程的版本号。注意，该变量由外部脚本修改维护，不要手动在代码中修改
//
const Version = "v0.2.0"

// ConfVersion rtpreorder的配置文件的版本号
//
const ConfVersion = "v0.1.0"

var (
	LibraryName = "rtpreorder"
	GithubRepo  = "github.com/q191201771/rtpreorder"
	GithubSite  = "https://github.com/q191201771/rtpreorder"

	// FullInfo e.g. rtpreorder v0.2.0 (github.com/q191201771/rtpreorder)
	FullInfo = LibraryName + " " + Version + " (" + GithubRepo + ")"
)
