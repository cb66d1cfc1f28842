/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelayProgression(t *testing.T) {
	p := backoffPolicy{initialDelay: 100 * time.Millisecond, maxDelay: 10 * time.Second}

	require.Equal(t, time.Duration(0), p.delay(0))
	require.Equal(t, 100*time.Millisecond, p.delay(1))
	require.InDelta(t, float64(120*time.Millisecond), float64(p.delay(2)), float64(time.Millisecond))
	require.InDelta(t, float64(144*time.Millisecond), float64(p.delay(3)), float64(time.Millisecond))

	// 间隔单调增长直至封顶
	prev := time.Duration(0)
	for i := 1; i < 60; i++ {
		d := p.delay(i)
		require.GreaterOrEqual(t, d, prev)
		require.LessOrEqual(t, d, 10*time.Second)
		prev = d
	}
	require.Equal(t, 10*time.Second, p.delay(100))
}

func TestSleeperWakesOnStop(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Now())
	s := sleeper{clock: clk}

	doneC := make(chan struct{})
	returned := make(chan struct{})
	go func() {
		s.Sleep(time.Hour, doneC)
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("等待不应在停止信号之前结束")
	case <-time.After(20 * time.Millisecond):
	}

	close(doneC)
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("停止信号没有唤醒等待")
	}
}

func TestSleeperWakesOnTimer(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Now())
	s := sleeper{clock: clk}

	returned := make(chan struct{})
	go func() {
		s.Sleep(time.Minute, make(chan struct{}))
		close(returned)
	}()

	clk.WaitForWatcherAndIncrement(time.Minute)
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("计时器到期没有唤醒等待")
	}
}
