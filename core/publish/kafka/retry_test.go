/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kafka

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsImmediately(t *testing.T) {
	opts := Retry{
		ShortInterval: 5 * time.Millisecond,
		ShortTotal:    time.Second,
		LongInterval:  5 * time.Millisecond,
		LongTotal:     time.Second,
	}

	var calls int
	rp := newRetryProcess(opts, make(chan struct{}), "mirror-ledgers", "建立连接", func() error {
		calls++
		return nil
	})

	require.NoError(t, rp.retry())
	require.Equal(t, 1, calls)
}

func TestRetryEventuallySucceeds(t *testing.T) {
	opts := Retry{
		ShortInterval: 5 * time.Millisecond,
		ShortTotal:    10 * time.Second,
		LongInterval:  5 * time.Millisecond,
		LongTotal:     10 * time.Second,
	}

	var calls int
	rp := newRetryProcess(opts, make(chan struct{}), "mirror-ledgers", "建立连接", func() error {
		calls++
		if calls < 3 {
			return errors.New("还没好")
		}
		return nil
	})

	require.NoError(t, rp.retry())
	require.Equal(t, 3, calls)
}

func TestRetrySwitchesToLongCycle(t *testing.T) {
	// 短周期最多容纳 1 + 20ms/5ms = 5 次尝试, 第 11 次才成功的
	// 函数必然把重试推进到长周期
	opts := Retry{
		ShortInterval: 5 * time.Millisecond,
		ShortTotal:    20 * time.Millisecond,
		LongInterval:  5 * time.Millisecond,
		LongTotal:     10 * time.Second,
	}

	var calls int
	rp := newRetryProcess(opts, make(chan struct{}), "mirror-ledgers", "建立连接", func() error {
		calls++
		if calls < 11 {
			return errors.New("还没好")
		}
		return nil
	})

	require.NoError(t, rp.retry())
	require.Equal(t, 11, calls)
}

func TestRetryHaltsOnExitSignal(t *testing.T) {
	opts := Retry{
		ShortInterval: time.Hour,
		ShortTotal:    time.Hour,
		LongInterval:  time.Hour,
		LongTotal:     time.Hour,
	}

	exit := make(chan struct{})
	close(exit)

	var calls int
	rp := newRetryProcess(opts, exit, "mirror-ledgers", "建立连接", func() error {
		calls++
		return errors.New("还没好")
	})

	// 短周期被退出信号打断后仍会进入长周期, 长周期的首次尝试
	// 失败后同样被退出信号打断
	err := rp.retry()
	require.EqualError(t, err, "接收到退出指令")
	require.Equal(t, 2, calls)
}

func TestRetryRejectsZeroInterval(t *testing.T) {
	var calls int
	rp := newRetryProcess(Retry{}, make(chan struct{}), "mirror-ledgers", "建立连接", func() error {
		calls++
		return nil
	})

	err := rp.retry()
	require.EqualError(t, err, "非法的重试间隔配置")
	require.Equal(t, 0, calls)
}
