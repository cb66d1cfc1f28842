/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flogging

import (
	"io"

	"go.uber.org/zap/zapcore"
)

const defaultLevel = zapcore.InfoLevel

// Global 是进程级日志系统单例, 所有包级记录器都从它派生。
var Global *Logging

func init() {
	logging, err := New(Config{})
	if err != nil {
		panic(err)
	}
	Global = logging
}

// Init 用给定配置初始化全局日志系统, 配置非法时 panic。
// 应在进程启动早期调用一次。
func Init(config Config) {
	err := Global.Apply(config)
	if err != nil {
		panic(err)
	}
}

// Reset 恢复默认配置, 供测试使用。
func Reset() {
	Global.Apply(Config{})
}

// LoggerLevel 获取指定记录器的生效级别名称。
func LoggerLevel(loggerName string) string {
	return Global.Level(loggerName).String()
}

// MustGetLogger 创建命名的包级日志记录器, 名称非法时 panic。
func MustGetLogger(loggerName string) *FabricLogger {
	return Global.Logger(loggerName)
}

// ActivateSpec 启用一条全局级别规约, 规约非法时 panic。
func ActivateSpec(spec string) {
	err := Global.ActivateSpec(spec)
	if err != nil {
		panic(err)
	}
}

// DefaultLevel 返回默认日志级别名称。
func DefaultLevel() string {
	return defaultLevel.String()
}

// SetWriter 替换全局输出目标并返回旧目标, 供测试捕获输出。
func SetWriter(w io.Writer) io.Writer {
	return Global.SetWriter(w)
}

// SetObserver 挂接全局日志观察器并返回旧观察器。
func SetObserver(observer Observer) Observer {
	return Global.SetObserver(observer)
}
