// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package relay

import (
	"encoding/json"
	"fmt"

	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/rtpreorder/pkg/base"
)

type Config struct {
	ConfVersion string `json:"conf_version"`

	RelayConfig   RelayConfig   `json:"relay"`
	TsProbeConfig TsProbeConfig `json:"ts_probe"`

	LogConfig nazalog.Option `json:"log"`
}

type RelayConfig struct {
	RtpAddr  string `json:"rtp_addr"`  // 接收rtp的地址，必填
	RtcpAddr string `json:"rtcp_addr"` // 接收rtcp sr并回复rr的地址，为空则不处理rtcp
	OutAddr  string `json:"out_addr"`  // 排序后的rtp包转发的地址，为空则不转发

	Capacity        int `json:"capacity"`          // 排序队列的最大容量
	DrainMargin     int `json:"drain_margin"`      // 队列中超过这么多个包时，开始按序弹出
	FlushIntervalMs int `json:"flush_interval_ms"` // 多久没收到包时，清空队列
	StatIntervalMs  int `json:"stat_interval_ms"`  // 打印统计日志的间隔，0表示不打印
	ClockRate       int `json:"clock_rate"`        // 计算jitter使用

	DumpFile string `json:"dump_file"` // 不为空时，将收到的rtp包落盘
}

type TsProbeConfig struct {
	Enable bool `json:"enable"`
}

// LoadConf 解析配置文件内容，不存在的配置项使用默认值
//
func LoadConf(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}

	if config.ConfVersion != "" && config.ConfVersion != base.ConfVersion {
		Log.Warnf("config version invalid. conf version of file=%s, the version this program expect=%s",
			config.ConfVersion, base.ConfVersion)
	}

	if !j.Exist("relay.capacity") {
		config.RelayConfig.Capacity = base.RtpPacketQueueDefaultCapacity
	}
	if !j.Exist("relay.drain_margin") {
		config.RelayConfig.DrainMargin = base.RelayDefaultDrainMargin
	}
	if !j.Exist("relay.flush_interval_ms") {
		config.RelayConfig.FlushIntervalMs = base.RelayDefaultFlushIntervalMs
	}
	if !j.Exist("relay.stat_interval_ms") {
		config.RelayConfig.StatIntervalMs = base.RelayDefaultStatIntervalMs
	}
	if !j.Exist("relay.clock_rate") {
		config.RelayConfig.ClockRate = defaultClockRate
	}

	if !j.Exist("log.level") {
		config.LogConfig.Level = nazalog.LevelDebug
	}
	if !j.Exist("log.filename") {
		config.LogConfig.Filename = "./logs/rtpreorder.log"
	}
	if !j.Exist("log.is_to_stdout") {
		config.LogConfig.IsToStdout = true
	}
	if !j.Exist("log.is_rotate_daily") {
		config.LogConfig.IsRotateDaily = true
	}
	if !j.Exist("log.short_file_flag") {
		config.LogConfig.ShortFileFlag = true
	}
	if !j.Exist("log.timestamp_flag") {
		config.LogConfig.TimestampFlag = true
	}
	if !j.Exist("log.timestamp_with_ms_flag") {
		config.LogConfig.TimestampWithMsFlag = true
	}
	if !j.Exist("log.level_flag") {
		config.LogConfig.LevelFlag = true
	}
	if !j.Exist("log.assert_behavior") {
		config.LogConfig.AssertBehavior = nazalog.AssertError
	}

	if err := config.RelayConfig.Check(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Check 检查必填项和取值范围
func (c *RelayConfig) Check() error {
	if c.RtpAddr == "" {
		return base.ErrRelayAddrEmpty
	}
	if c.Capacity < 1 {
		return base.NewErrRelayInvalidConf(fmt.Sprintf("capacity=%d", c.Capacity))
	}
	// 积累量至少要比容量小，否则在弹出之前就会因为溢出丢包
	if c.DrainMargin < 0 || c.DrainMargin >= c.Capacity {
		return base.NewErrRelayInvalidConf(fmt.Sprintf("drain_margin=%d, capacity=%d", c.DrainMargin, c.Capacity))
	}
	if c.FlushIntervalMs <= 0 {
		return base.NewErrRelayInvalidConf(fmt.Sprintf("flush_interval_ms=%d", c.FlushIntervalMs))
	}
	if c.StatIntervalMs < 0 {
		return base.NewErrRelayInvalidConf(fmt.Sprintf("stat_interval_ms=%d", c.StatIntervalMs))
	}
	if c.ClockRate <= 0 {
		return base.NewErrRelayInvalidConf(fmt.Sprintf("clock_rate=%d", c.ClockRate))
	}
	return nil
}
