/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flogging

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 描述日志系统的初始化参数。
type Config struct {
	// Format 为 "json" 时输出结构化 JSON, 其余值输出控制台格式。
	Format string

	// LogSpec 为级别规约, 为空时读取 MIRROR_LOGGING_SPEC 环境变量,
	// 仍为空时使用默认级别 info。
	LogSpec string

	// Writer 为日志输出目标, 为空时写 os.Stderr。
	Writer io.Writer
}

// Logging 聚合日志级别表、编码配置和输出目标, 进程内共享一个实例。
type Logging struct {
	*LoggerLevels

	mutex    sync.RWMutex
	encoding Encoding
	writer   zapcore.WriteSyncer
	observer Observer
}

// New 创建日志系统并应用配置。
//
// 输入参数：
//   - c: 初始化参数。
//
// 返回值：
//   - *Logging: 日志系统实例。
//   - error: 配置非法时返回错误。
func New(c Config) (*Logging, error) {
	l := &Logging{
		LoggerLevels: &LoggerLevels{
			defaultLevel: defaultLevel,
		},
	}

	err := l.Apply(c)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Apply 应用配置, 可在运行期重复调用。
func (l *Logging) Apply(c Config) error {
	err := l.SetFormat(c.Format)
	if err != nil {
		return err
	}

	if c.LogSpec == "" {
		c.LogSpec = os.Getenv("MIRROR_LOGGING_SPEC")
	}
	if c.LogSpec == "" {
		c.LogSpec = defaultLevel.String()
	}
	err = l.LoggerLevels.ActivateSpec(c.LogSpec)
	if err != nil {
		return err
	}

	if c.Writer == nil {
		c.Writer = os.Stderr
	}
	l.SetWriter(c.Writer)

	return nil
}

// SetFormat 设置编码格式, "json" 或控制台。
func (l *Logging) SetFormat(format string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	switch format {
	case "json":
		l.encoding = JSON
	case "", "console":
		l.encoding = CONSOLE
	default:
		return errors.Errorf("unsupported log format: %s", format)
	}
	return nil
}

// SetWriter 替换输出目标并返回旧目标, 主要供测试捕获输出。
func (l *Logging) SetWriter(w io.Writer) io.Writer {
	var sw zapcore.WriteSyncer
	switch t := w.(type) {
	case *os.File:
		sw = zapcore.Lock(t)
	case zapcore.WriteSyncer:
		sw = t
	default:
		sw = zapcore.AddSync(w)
	}

	l.mutex.Lock()
	ow := l.writer
	l.writer = sw
	l.mutex.Unlock()

	return ow
}

// SetObserver 挂接日志观察器并返回旧观察器。
func (l *Logging) SetObserver(observer Observer) Observer {
	l.mutex.Lock()
	so := l.observer
	l.observer = observer
	l.mutex.Unlock()

	return so
}

// Write 使 Logging 本身可作为 io.Writer 使用(例如接管第三方库的输出)。
func (l *Logging) Write(b []byte) (int, error) {
	l.mutex.RLock()
	w := l.writer
	l.mutex.RUnlock()

	return w.Write(b)
}

// Sync 刷新输出缓冲。
func (l *Logging) Sync() error {
	l.mutex.RLock()
	w := l.writer
	l.mutex.RUnlock()

	return w.Sync()
}

// Encoding 返回当前生效的编码格式。
func (l *Logging) Encoding() Encoding {
	l.mutex.RLock()
	e := l.encoding
	l.mutex.RUnlock()
	return e
}

// ZapLogger 按名称创建底层 zap 日志记录器。名称非法时 panic。
func (l *Logging) ZapLogger(name string) *zap.Logger {
	if !isValidLoggerName(name) {
		panic(errors.Errorf("invalid logger name: %s", name))
	}

	l.mutex.RLock()
	core := &Core{
		LevelEnabler: l.LoggerLevels,
		Levels:       l.LoggerLevels,
		Encoders: map[Encoding]zapcore.Encoder{
			JSON:    zapcore.NewJSONEncoder(jsonEncoderConfig()),
			CONSOLE: zapcore.NewConsoleEncoder(consoleEncoderConfig()),
		},
		Selector: l,
		Output:   l,
		Observer: l,
	}
	l.mutex.RUnlock()

	return NewZapLogger(core).Named(name)
}

// Check 实现 Observer, 转发到当前挂接的观察器。
func (l *Logging) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) {
	l.mutex.RLock()
	observer := l.observer
	l.mutex.RUnlock()

	if observer != nil {
		observer.Check(e, ce)
	}
}

// WriteEntry 实现 Observer, 转发到当前挂接的观察器。
func (l *Logging) WriteEntry(e zapcore.Entry, fields []zapcore.Field) {
	l.mutex.RLock()
	observer := l.observer
	l.mutex.RUnlock()

	if observer != nil {
		observer.WriteEntry(e, fields)
	}
}

// Logger 按名称创建 FabricLogger。
func (l *Logging) Logger(name string) *FabricLogger {
	return NewFabricLogger(l.ZapLogger(name))
}

// NewZapLogger 从 core 构造 zap.Logger, 统一附带调用方信息与错误级堆栈。
func NewZapLogger(core zapcore.Core, options ...zap.Option) *zap.Logger {
	return zap.New(
		core,
		append([]zap.Option{
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		}, options...)...,
	)
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "name",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.EpochTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "name",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
