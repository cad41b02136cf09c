// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/rtpreorder
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package relay_test

import (
	"errors"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
	"github.com/q191201771/rtpreorder/pkg/base"
	"github.com/q191201771/rtpreorder/pkg/relay"
)

func TestLoadConf(t *testing.T) {
	config, err := relay.LoadConf([]byte(`{
  "conf_version": "v0.1.0",
  "relay": {
    "rtp_addr": "127.0.0.1:5004",
    "out_addr": "127.0.0.1:6004",
    "capacity": 256
  },
  "log": {
    "level": 2
  }
}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, "127.0.0.1:5004", config.RelayConfig.RtpAddr)
	assert.Equal(t, "", config.RelayConfig.RtcpAddr)
	assert.Equal(t, "127.0.0.1:6004", config.RelayConfig.OutAddr)
	assert.Equal(t, 256, config.RelayConfig.Capacity)
	assert.Equal(t, base.RelayDefaultDrainMargin, config.RelayConfig.DrainMargin)
	assert.Equal(t, base.RelayDefaultFlushIntervalMs, config.RelayConfig.FlushIntervalMs)
	assert.Equal(t, base.RelayDefaultStatIntervalMs, config.RelayConfig.StatIntervalMs)
	assert.Equal(t, 90000, config.RelayConfig.ClockRate)
	assert.Equal(t, false, config.TsProbeConfig.Enable)
	assert.Equal(t, nazalog.LevelInfo, config.LogConfig.Level)
	assert.Equal(t, true, config.LogConfig.IsToStdout)

	// 显式配置为0的项不会被默认值覆盖
	config, err = relay.LoadConf([]byte(`{"relay": {"rtp_addr": ":5004", "drain_margin": 0, "stat_interval_ms": 0}}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, config.RelayConfig.DrainMargin)
	assert.Equal(t, 0, config.RelayConfig.StatIntervalMs)
	assert.Equal(t, base.RtpPacketQueueDefaultCapacity, config.RelayConfig.Capacity)
}

func TestLoadConf_Invalid(t *testing.T) {
	_, err := relay.LoadConf([]byte(`{"relay": {}}`))
	assert.Equal(t, true, errors.Is(err, base.ErrRelayAddrEmpty))

	_, err = relay.LoadConf([]byte(`{"relay": {"rtp_addr": ":5004", "capacity": 0}}`))
	assert.Equal(t, true, errors.Is(err, base.ErrRelayInvalidConf))

	_, err = relay.LoadConf([]byte(`{"relay": {"rtp_addr": ":5004", "capacity": 8, "drain_margin": 8}}`))
	assert.Equal(t, true, errors.Is(err, base.ErrRelayInvalidConf))

	_, err = relay.LoadConf([]byte(`{"relay": {"rtp_addr": ":5004", "flush_interval_ms": 0}}`))
	assert.Equal(t, true, errors.Is(err, base.ErrRelayInvalidConf))

	_, err = relay.LoadConf([]byte(`{"relay": {"rtp_addr": ":5004", "clock_rate": -1}}`))
	assert.Equal(t, true, errors.Is(err, base.ErrRelayInvalidConf))

	_, err = relay.LoadConf([]byte(`{"relay": `))
	assert.IsNotNil(t, err)
}
